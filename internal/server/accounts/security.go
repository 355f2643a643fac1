package accounts

import "time"

// SecurityConfig carries the tunables of the account security state machine.
// The zero value is unusable; start from DefaultSecurityConfig.
type SecurityConfig struct {
	// BcryptCost is the work factor for new password hashes.
	BcryptCost int
	// LockThreshold is the failed-attempt count that triggers a lock.
	LockThreshold int
	// LockDuration is how long a triggered lock holds.
	LockDuration time.Duration
	// CodeTTL is the validity window of verification and reset codes.
	CodeTTL time.Duration
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		BcryptCost:    12,
		LockThreshold: 5,
		LockDuration:  15 * time.Minute,
		CodeTTL:       15 * time.Minute,
	}
}

// RecordFailedLogin increments the failed-attempt counter and, when the new
// count reaches the threshold, sets the lock timestamp. The counter is not
// reset by locking; only ResetLock clears it. The mutation is in-memory —
// persist it through the store's update path.
func (s *Service) RecordFailedLogin(a *Account) {
	a.FailedLoginAttempts++
	if a.FailedLoginAttempts >= s.cfg.LockThreshold {
		until := s.now().UTC().Add(s.cfg.LockDuration)
		a.LockUntil = &until
	}
}

// ResetLock clears the failed-attempt counter and the lock timestamp,
// regardless of prior state. Called on successful login (including the first
// one after a lock expires).
func (s *Service) ResetLock(a *Account) {
	a.FailedLoginAttempts = 0
	a.LockUntil = nil
}

// IsLocked reports whether the account is currently locked: LockUntil set and
// strictly in the future. Pure read; an already-expired lock evaluates as
// unlocked even while the field lingers.
func (s *Service) IsLocked(a *Account) bool {
	return a.LockUntil != nil && a.LockUntil.After(s.now())
}
