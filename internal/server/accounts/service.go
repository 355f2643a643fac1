package accounts

import (
	"context"
	"crypto/subtle"
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/tenantvault/internal/common"
	"github.com/dmitrijs2005/tenantvault/internal/cryptox"
	"github.com/dmitrijs2005/tenantvault/internal/logging"
	"github.com/dmitrijs2005/tenantvault/internal/server/auth"
	"github.com/dmitrijs2005/tenantvault/internal/server/registry"
	"github.com/dmitrijs2005/tenantvault/internal/server/store"
	"github.com/dmitrijs2005/tenantvault/internal/server/tenants"
	"github.com/dmitrijs2005/tenantvault/internal/validation"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RegisterRules is the field-constraint configuration applied to
// registration input.
func RegisterRules() *validation.RuleSet {
	return validation.NewRuleSet(
		validation.Rule{Name: "email", Kind: validation.KindString, Required: true, MaxLen: 254, Pattern: emailPattern, Normalize: NormalizeEmail},
		validation.Rule{Name: "password", Kind: validation.KindString, Required: true, MinLen: 8, MaxLen: 72},
		validation.Rule{Name: "firstname", Kind: validation.KindString, Required: true, MaxLen: 100},
		validation.Rule{Name: "lastname", Kind: validation.KindString, Required: true, MaxLen: 100},
	)
}

// Attach registers the account entity on the tenant's store (idempotent) and
// returns the store wired with the account write pipeline:
// email normalization, then hash-on-write.
func Attach(ctx context.Context, reg *registry.Registry, h *tenants.Handle, cfg SecurityConfig, logger logging.Logger) (*store.Store, error) {
	eh, err := reg.GetOrDefine(ctx, h, EntityName, Schema(), SchemaOptions())
	if err != nil {
		return nil, err
	}
	return store.New(eh, logger, NormalizeEmailHook, PasswordHook(cfg.BcryptCost)), nil
}

// Service is the account security state machine plus the flows built on it.
// All persistence goes through the generic store's CRUD surface.
type Service struct {
	store     *store.Store
	validator validation.Validator
	tokens    *auth.Issuer
	cfg       SecurityConfig
	logger    logging.Logger
	now       func() time.Time
}

func NewService(st *store.Store, v validation.Validator, tokens *auth.Issuer, cfg SecurityConfig, logger logging.Logger) *Service {
	if v == nil {
		v = RegisterRules()
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Service{
		store:     st,
		validator: v,
		tokens:    tokens,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterInput is the raw registration payload. Role defaults to RoleUser
// when empty.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

// Register validates the input, creates the account (the raw password is
// hashed by the write pipeline) and issues its first verification code. The
// code is returned to the caller for delivery; it is never logged.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, string, error) {
	normalized, verr := s.validator.Validate(map[string]any{
		"email":     in.Email,
		"password":  in.Password,
		"firstname": in.FirstName,
		"lastname":  in.LastName,
	})
	if verr != nil {
		return nil, "", verr
	}

	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, "", fmt.Errorf("%w: unknown role %q", common.ErrInvalidInput, in.Role)
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, "", fmt.Errorf("generate verification code: %w", err)
	}
	expires := s.now().UTC().Add(s.cfg.CodeTTL)

	created, err := s.store.Create(ctx, store.Entity{
		"email":                  normalized["email"],
		passwordField:            normalized["password"],
		"role":                   string(role),
		"firstname":              normalized["firstname"],
		"lastname":               normalized["lastname"],
		"is_verified":            false,
		"verify_code":            code,
		"verify_code_expires_at": expires,
		"failed_login_attempts":  0,
	})
	if err != nil {
		return nil, "", err
	}

	a := fromEntity(created)
	a.VerifyCode = code
	a.VerifyCodeExpiresAt = &expires
	s.logger.Info(ctx, "account registered", "account", a.ID)
	return a, code, nil
}

// FindByEmail resolves an account by its case- and whitespace-insensitive
// email; nil when no account matches.
func (s *Service) FindByEmail(ctx context.Context, email string) (*Account, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: empty email", common.ErrInvalidInput)
	}
	e, err := s.store.FindOne(ctx, store.Filter{"email": NormalizeEmail(email)})
	if err != nil {
		return nil, err
	}
	return fromEntity(e), nil
}

// FindByID resolves an account by primary key; nil when absent.
func (s *Service) FindByID(ctx context.Context, id string) (*Account, error) {
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromEntity(e), nil
}

// Login verifies the credentials and returns a signed session token. A
// mismatch records a failed attempt (possibly locking the account); success
// resets the lock state and stamps last_login_at.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Account, error) {
	a, err := s.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if a == nil {
		return "", nil, common.ErrInvalidCredentials
	}

	if s.IsLocked(a) {
		return "", nil, common.ErrAccountLocked
	}

	if !cryptox.CheckPassword(password, a.PasswordHash) {
		s.RecordFailedLogin(a)
		if _, perr := s.store.UpdateByID(ctx, a.ID, store.Entity{
			"failed_login_attempts": a.FailedLoginAttempts,
			"lock_until":            timePtrValue(a.LockUntil),
		}); perr != nil {
			// an unrecorded attempt would let an attacker outlast the
			// threshold, so the store failure wins over the auth failure
			return "", nil, perr
		}
		return "", nil, common.ErrInvalidCredentials
	}

	s.ResetLock(a)
	now := s.now().UTC()
	a.LastLoginAt = &now
	if _, err := s.store.UpdateByID(ctx, a.ID, store.Entity{
		"failed_login_attempts": 0,
		"lock_until":            nil,
		"last_login_at":         now,
	}); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Generate(a.ID, s.store.Handle().Store().Tenant().ID.String())
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	return token, a, nil
}

// IssueVerificationCode generates a fresh code, stamps it on the account with
// its expiry, persists both, and returns the code for delivery.
func (s *Service) IssueVerificationCode(ctx context.Context, a *Account) (string, error) {
	return s.issueCode(ctx, a, "verify_code", "verify_code_expires_at", func(code string, exp time.Time) {
		a.VerifyCode = code
		a.VerifyCodeExpiresAt = &exp
	})
}

// IssueResetCode is the reset-flow twin of IssueVerificationCode. The two
// flows use separate fields and never interfere.
func (s *Service) IssueResetCode(ctx context.Context, a *Account) (string, error) {
	return s.issueCode(ctx, a, "reset_code", "reset_code_expires_at", func(code string, exp time.Time) {
		a.ResetCode = code
		a.ResetCodeExpiresAt = &exp
	})
}

func (s *Service) issueCode(ctx context.Context, a *Account, codeCol, expCol string, apply func(string, time.Time)) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	exp := s.now().UTC().Add(s.cfg.CodeTTL)

	if _, err := s.store.UpdateByID(ctx, a.ID, store.Entity{codeCol: code, expCol: exp}); err != nil {
		return "", err
	}
	apply(code, exp)
	return code, nil
}

// VerifyAccount consumes a verification code: it succeeds only against an
// exact, unexpired match, marks the account verified, and clears the code and
// expiry so the code can never be used twice.
func (s *Service) VerifyAccount(ctx context.Context, id, code string) (*Account, error) {
	a, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, common.ErrNotFound
	}

	if !s.codeMatches(a.VerifyCode, a.VerifyCodeExpiresAt, code) {
		return nil, common.ErrCodeInvalid
	}

	updated, err := s.store.UpdateByID(ctx, a.ID, store.Entity{
		"is_verified":            true,
		"verify_code":            nil,
		"verify_code_expires_at": nil,
	})
	if err != nil {
		return nil, err
	}
	return fromEntity(updated), nil
}

// RequestPasswordReset issues a reset code for the account with the given
// email. Returns ErrNotFound when no account matches.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	a, err := s.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if a == nil {
		return "", common.ErrNotFound
	}
	return s.IssueResetCode(ctx, a)
}

// ResetPassword consumes a reset code and sets the new credential through the
// hash-on-write pipeline. The code and its expiry are cleared in the same
// save, enforcing single use.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) (*Account, error) {
	a, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, common.ErrNotFound
	}

	if !s.codeMatches(a.ResetCode, a.ResetCodeExpiresAt, code) {
		return nil, common.ErrCodeInvalid
	}

	updated, err := s.store.UpdateByID(ctx, a.ID, store.Entity{
		passwordField:           newPassword,
		"reset_code":            nil,
		"reset_code_expires_at": nil,
	})
	if err != nil {
		return nil, err
	}
	return fromEntity(updated), nil
}

// codeMatches checks a presented code against the stored one: exact match and
// expiry strictly in the future.
func (s *Service) codeMatches(stored string, expiresAt *time.Time, presented string) bool {
	if stored == "" || expiresAt == nil || presented == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) != 1 {
		return false
	}
	return expiresAt.After(s.now())
}

// Sweep clears expired locks and expired codes in bulk, using the lock_until
// index. Lock data past its window is harmless either way (IsLocked compares
// timestamps), so this is housekeeping, not correctness.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	db := s.store.Handle().Store().DB()
	table := s.store.Handle().Table()
	now := s.now().UTC()

	var total int64
	statements := []string{
		fmt.Sprintf(`UPDATE %s SET lock_until = NULL, failed_login_attempts = 0 WHERE lock_until IS NOT NULL AND lock_until <= $1`, table),
		fmt.Sprintf(`UPDATE %s SET verify_code = NULL, verify_code_expires_at = NULL WHERE verify_code_expires_at IS NOT NULL AND verify_code_expires_at <= $1`, table),
		fmt.Sprintf(`UPDATE %s SET reset_code = NULL, reset_code_expires_at = NULL WHERE reset_code_expires_at IS NOT NULL AND reset_code_expires_at <= $1`, table),
	}
	for _, stmt := range statements {
		res, err := db.ExecContext(ctx, stmt, now)
		if err != nil {
			return total, fmt.Errorf("sweep %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	return total, nil
}

// timePtrValue converts a nullable timestamp into a store value: nil stays
// nil (SQL NULL), a pointer is dereferenced.
func timePtrValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
