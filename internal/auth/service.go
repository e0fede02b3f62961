package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"societyos.org/internal/ids"
)

const (
	defaultIssuer     = "societyos"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Service is the session issuer: it authenticates credentials against the
// identity store and mints, rotates and revokes session tokens.
type Service struct {
	store Store
	now   func() time.Time

	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithSecret sets the HS256 signing secret. Required.
func WithSecret(secret string) ServiceOption {
	return func(s *Service) error {
		if strings.TrimSpace(secret) == "" {
			return errors.New("auth: signing secret is required")
		}
		s.secret = []byte(secret)
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime. The cookie max-age on the
// login response follows this value.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the session issuer.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	svc := &Service{
		store:      store,
		now:        time.Now,
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if len(svc.secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	return svc, nil
}

// RefreshTTL reports the configured refresh token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) signer() signer {
	return signer{secret: s.secret, issuer: s.issuer, now: s.now}
}

// Register validates and persists a new identity. The only side effect is the
// stored record.
func (s *Service) Register(ctx context.Context, p Profile) (*User, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Name == "" || p.Phone == "" || p.Email == "" || strings.TrimSpace(p.Password) == "" {
		return nil, fmt.Errorf("%w: all fields are required", ErrInvalidInput)
	}
	if p.Role == "" {
		p.Role = RoleMember
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, p.Role)
	}

	if _, err := s.store.FindByPhone(ctx, p.Phone); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.FindByEmail(ctx, p.Email); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           ids.New(),
		Name:         p.Name,
		Phone:        p.Phone,
		Email:        p.Email,
		PasswordHash: hash,
		Role:         p.Role,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Session is the result of a successful login.
type Session struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *User
}

// Login authenticates phone+password and issues a fresh token pair. The
// refresh token is persisted onto the identity record, overwriting any prior
// value: an earlier session for the same identity turns stale on its next
// refresh attempt.
func (s *Service) Login(ctx context.Context, phone, password string) (*Session, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil, fmt.Errorf("%w: phone and password are required", ErrInvalidInput)
	}
	user, err := s.store.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		// Same error regardless of how the comparison failed.
		return nil, ErrUnauthorized
	}

	sig := s.signer()
	access, err := sig.SignAccess(user.ID, user.Role, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := sig.SignRefresh(user.ID, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, err
	}
	user.RefreshToken = refresh
	return &Session{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: s.now().UTC().Add(s.refreshTTL),
		User:             user,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is not rotated or re-persisted; it stays valid until expiry,
// logout, or a later login supersedes it.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", ErrMissingToken
	}
	claims, err := s.signer().VerifyRefresh(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}
	user, err := s.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrStaleToken
		}
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		return "", ErrStaleToken
	}
	return s.signer().SignAccess(user.ID, user.Role, s.accessTTL)
}

// Logout clears the session slot of the identity owning the presented token.
// A token that matches no identity still logs out successfully: the operation
// is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return ErrMissingToken
	}
	user, err := s.store.FindByRefreshToken(ctx, refreshToken)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.SetRefreshToken(ctx, user.ID, "")
}

// AuthenticateToken validates an access token and resolves its principal.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.signer().VerifyAccess(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	user, err := s.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	return NewPrincipal(user), nil
}
