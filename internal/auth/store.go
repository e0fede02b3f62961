package auth

import "context"

// Store describes persistence operations required by the identity subsystem.
type Store interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByRefreshToken resolves the identity holding the exact token value.
	FindByRefreshToken(ctx context.Context, token string) (*User, error)

	// SetRefreshToken overwrites the identity's session slot. An empty token
	// clears it. Last write wins; the superseded session turns stale.
	SetRefreshToken(ctx context.Context, userID, token string) error

	// SetSociety backpatches the society reference onto an identity.
	SetSociety(ctx context.Context, userID, societyID string) error

	// Delete removes an identity. Used only as a compensating action when a
	// multi-step society creation fails partway.
	Delete(ctx context.Context, userID string) error
}
