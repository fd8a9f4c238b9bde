// Package auth validates the service tokens the workflow engine presents on
// the job-submission API. Tokens are HS256 JWTs signed with a shared secret;
// there is no user model, only a caller identity claim.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonesleonard/upscaler/internal/config"
)

// ServiceTokenValidator validates bearer tokens on the submit API.
type ServiceTokenValidator interface {
	// ValidateToken checks the signature and expiry of the token and returns
	// the caller identity from its subject claim.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims carries the validated caller identity.
type Claims struct {
	// Caller is the identity of the calling system, from the subject claim.
	Caller string

	// ExpiresAt is when the token stops being valid.
	ExpiresAt time.Time
}

// hmacValidator implements ServiceTokenValidator using HMAC-SHA signing.
type hmacValidator struct {
	signingKey []byte
	clockSkew  time.Duration // tolerated drift between signer and validator clocks
}

var _ ServiceTokenValidator = (*hmacValidator)(nil)

// NewServiceTokenValidator creates a validator for tokens signed with the
// configured shared secret.
func NewServiceTokenValidator(cfg config.AuthConfig) (ServiceTokenValidator, error) {
	if len(cfg.ServiceTokenSecret) < 32 {
		return nil, fmt.Errorf("service token secret must be at least 32 characters")
	}

	return &hmacValidator{
		signingKey: []byte(cfg.ServiceTokenSecret),
		clockSkew:  2 * time.Minute,
	}, nil
}

// ValidateToken checks signature, algorithm, and expiry.
func (v *hmacValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.signingKey, nil
		},
		jwt.WithLeeway(v.clockSkew),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &Claims{
		Caller:    claims.Subject,
		ExpiresAt: expiresAt,
	}, nil
}
