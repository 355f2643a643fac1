package accounts

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tenantvault/internal/common"
	"github.com/dmitrijs2005/tenantvault/internal/cryptox"
	"github.com/dmitrijs2005/tenantvault/internal/server/store"
)

// passwordField is the transient key carrying a raw credential into the write
// pipeline. The hash hook consumes it; it never reaches a row.
const passwordField = "password"

// NormalizeEmailHook rewrites the email attribute into its canonical
// lower-cased, trimmed form before any write.
func NormalizeEmailHook(ctx context.Context, prev, next store.Entity) error {
	v, present := next["email"]
	if !present {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: email must be a string", common.ErrInvalidInput)
	}
	next["email"] = NormalizeEmail(s)
	return nil
}

// PasswordHook is the hash-on-write step. When the incoming entity carries a
// raw credential, the hook replaces it with a bcrypt hash — unless the raw
// value still matches the previously persisted hash, in which case the stored
// hash is left untouched. The raw value is removed from the entity either way.
func PasswordHook(cost int) store.WriteHook {
	return func(ctx context.Context, prev, next store.Entity) error {
		v, present := next[passwordField]
		if !present {
			return nil
		}
		delete(next, passwordField)

		raw, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: password must be a string", common.ErrInvalidInput)
		}
		if raw == "" {
			return fmt.Errorf("%w: password must not be empty", common.ErrInvalidInput)
		}

		if prev != nil {
			if prevHash, _ := prev["password_hash"].(string); prevHash != "" && cryptox.CheckPassword(raw, prevHash) {
				// credential unchanged since last persisted state
				next["password_hash"] = prevHash
				return nil
			}
		}

		hash, err := cryptox.HashPassword(raw, cost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		next["password_hash"] = hash
		return nil
	}
}
