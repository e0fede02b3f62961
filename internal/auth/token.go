package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	Role      Role   `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It carries only the
// identity id; authority is re-resolved on every rotation.
type RefreshClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// signer mints and verifies HS256 tokens with a shared secret.
type signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func (s signer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now().UTC()
	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

// SignAccess mints an access token carrying the identity id and role.
func (s signer) SignAccess(userID string, role Role, ttl time.Duration) (string, error) {
	claims := AccessClaims{
		Role:             role,
		TokenType:        tokenTypeAccess,
		RegisteredClaims: s.registered(userID, ttl),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// SignRefresh mints a refresh token carrying only the identity id.
func (s signer) SignRefresh(userID string, ttl time.Duration) (string, error) {
	claims := RefreshClaims{
		TokenType:        tokenTypeRefresh,
		RegisteredClaims: s.registered(userID, ttl),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s signer) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, ErrInvalidToken
	}
	return s.secret, nil
}

// VerifyAccess validates an access token and returns its claims.
func (s signer) VerifyAccess(token string) (*AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{}, s.keyFunc,
		jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.TokenType != tokenTypeAccess {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns its claims. Storage
// equality against the identity's slot is the caller's responsibility.
func (s signer) VerifyRefresh(token string) (*RefreshClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &RefreshClaims{}, s.keyFunc,
		jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*RefreshClaims)
	if !ok || !parsed.Valid || claims.TokenType != tokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
