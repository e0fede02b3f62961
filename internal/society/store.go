package society

import "context"

// Store describes persistence operations of the membership registry. Every
// method is a single atomic write or read; multi-step flows are composed in
// the service with compensating actions.
type Store interface {
	Create(ctx context.Context, s *Society) error
	Find(ctx context.Context, id string) (*Society, error)

	// Delete removes a society. Compensating action only.
	Delete(ctx context.Context, id string) error

	// AddMember appends one member to the roster as a single atomic insert.
	// Adding the same member twice is a no-op.
	AddMember(ctx context.Context, societyID, userID string) error

	// Members returns the current roster snapshot.
	Members(ctx context.Context, societyID string) ([]string, error)
}
