// Package accounts layers the account-security model on top of the generic
// store: credential hashing on write, failed-login lockout, and single-use
// time-boxed verification/reset codes.
package accounts

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/tenantvault/internal/server/registry"
	"github.com/dmitrijs2005/tenantvault/internal/server/store"
)

// EntityName is the logical entity registered for every tenant.
const EntityName = "accounts"

// Role is the permission level of an account.
type Role string

const (
	RoleUser    Role = "user" // lowest privilege, the default
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSupport, RoleAdmin:
		return true
	}
	return false
}

// Account is the security-bearing entity. Nullable timestamps are pointers;
// a past LockUntil means unlocked even when the field is still set.
type Account struct {
	ID                  string
	Email               string
	PasswordHash        string
	Role                Role
	FirstName           string
	LastName            string
	IsVerified          bool
	VerifyCode          string
	VerifyCodeExpiresAt *time.Time
	ResetCode           string
	ResetCodeExpiresAt  *time.Time
	FailedLoginAttempts int
	LockUntil           *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NormalizeEmail lower-cases and trims an email; all comparisons and stored
// values use this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Schema returns the attribute map registered for the account entity.
func Schema() registry.Attributes {
	return registry.Attributes{
		"email":                  {Type: registry.TypeText, NotNull: true, Unique: true},
		"password_hash":          {Type: registry.TypeText, NotNull: true},
		"role":                   {Type: registry.TypeText, NotNull: true, Default: "'user'"},
		"firstname":              {Type: registry.TypeText, NotNull: true},
		"lastname":               {Type: registry.TypeText, NotNull: true},
		"is_verified":            {Type: registry.TypeBoolean, NotNull: true, Default: "false"},
		"verify_code":            {Type: registry.TypeText},
		"verify_code_expires_at": {Type: registry.TypeTimestamp},
		"reset_code":             {Type: registry.TypeText},
		"reset_code_expires_at":  {Type: registry.TypeTimestamp},
		"failed_login_attempts":  {Type: registry.TypeInteger, NotNull: true, Default: "0"},
		"lock_until":             {Type: registry.TypeTimestamp},
		"last_login_at":          {Type: registry.TypeTimestamp},
	}
}

// SchemaOptions returns the registration options: audit timestamps plus the
// lock_until index used by the lock sweep.
func SchemaOptions() registry.Options {
	return registry.Options{
		Timestamps: true,
		Indexes: []registry.Index{
			{Name: "idx_accounts_lock_until", Columns: []string{"lock_until"}},
		},
	}
}

func fromEntity(e store.Entity) *Account {
	if e == nil {
		return nil
	}
	return &Account{
		ID:                  getString(e, "id"),
		Email:               getString(e, "email"),
		PasswordHash:        getString(e, "password_hash"),
		Role:                Role(getString(e, "role")),
		FirstName:           getString(e, "firstname"),
		LastName:            getString(e, "lastname"),
		IsVerified:          getBool(e, "is_verified"),
		VerifyCode:          getString(e, "verify_code"),
		VerifyCodeExpiresAt: getTime(e, "verify_code_expires_at"),
		ResetCode:           getString(e, "reset_code"),
		ResetCodeExpiresAt:  getTime(e, "reset_code_expires_at"),
		FailedLoginAttempts: getInt(e, "failed_login_attempts"),
		LockUntil:           getTime(e, "lock_until"),
		LastLoginAt:         getTime(e, "last_login_at"),
		CreatedAt:           getTimeValue(e, "created_at"),
		UpdatedAt:           getTimeValue(e, "updated_at"),
	}
}

func getString(e store.Entity, key string) string {
	s, _ := e[key].(string)
	return s
}

func getBool(e store.Entity, key string) bool {
	b, _ := e[key].(bool)
	return b
}

func getInt(e store.Entity, key string) int {
	switch v := e[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func getTime(e store.Entity, key string) *time.Time {
	if t, ok := e[key].(time.Time); ok {
		return &t
	}
	return nil
}

func getTimeValue(e store.Entity, key string) time.Time {
	if t := getTime(e, key); t != nil {
		return *t
	}
	return time.Time{}
}
