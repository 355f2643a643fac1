// Package auth issues and parses the HS256 session tokens handed out after a
// successful login.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/tenantvault/internal/common"
)

// Claims extends the registered claims with the account and tenant the
// session belongs to.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	TenantID  string `json:"tenant_id"`
}

// Issuer signs and verifies session tokens with a shared HMAC secret.
type Issuer struct {
	secret   []byte
	validity time.Duration
}

func NewIssuer(secret string, validity time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), validity: validity}
}

func (i *Issuer) Generate(accountID, tenantID string) (string, error) {
	jti, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		AccountID: accountID,
		TenantID:  tenantID,
	})

	return token.SignedString(i.secret)
}

// Parse verifies the signature and expiry and returns the claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, common.ErrUnauthorized
	}

	return claims, nil
}
