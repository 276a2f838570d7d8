// Package auth implements token verification for websocket clients. Tokens
// are HMAC-signed JWTs issued by the account service; this package only
// verifies them.
package auth

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/markethub/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates HS256-signed JWTs against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Decode verifies the token signature and expiry and returns the bound user
// id (the "sub" claim, falling back to "user_id"). Any verification failure
// is reported as domain.ErrUnauthorized.
func (v *Verifier) Decode(_ context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("auth: decode token: %w", domain.ErrUnauthorized)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("auth: decode token: %w", domain.ErrUnauthorized)
	}

	userID, _ := claims.GetSubject()
	if userID == "" {
		if v, ok := claims["user_id"].(string); ok {
			userID = v
		}
	}
	if userID == "" {
		return "", fmt.Errorf("auth: token has no subject: %w", domain.ErrUnauthorized)
	}

	return userID, nil
}

// Compile-time interface check.
var _ domain.TokenVerifier = (*Verifier)(nil)
