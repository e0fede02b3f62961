package billing

import "context"

// Store describes persistence operations of the billing ledger.
type Store interface {
	CreateCharge(ctx context.Context, c *Charge) error
	FindCharge(ctx context.Context, id string) (*Charge, error)

	// ChargesByCreator returns charges created by the given identity, newest
	// first. An empty result is not an error.
	ChargesByCreator(ctx context.Context, creatorID string) ([]Charge, error)

	// EnsureObligation inserts the obligation unless one already exists for
	// its (charge, member) pair. Idempotent: safe to retry after a partial
	// fan-out without duplicating rows.
	EnsureObligation(ctx context.Context, o *Obligation) error

	FindObligation(ctx context.Context, id string) (*Obligation, error)

	// ObligationsByMember returns the member's obligations joined with their
	// parent charge, ordered by obligation creation time descending.
	ObligationsByMember(ctx context.Context, memberID string) ([]MemberSettlement, error)

	// ObligationsByCharge returns obligations for a charge filtered by
	// status; empty status means all.
	ObligationsByCharge(ctx context.Context, chargeID string, status ObligationStatus) ([]Obligation, error)

	// SettleObligation transitions pending -> paid atomically. Returns
	// ErrAlreadyPaid when the row is not pending anymore.
	SettleObligation(ctx context.Context, id string, amountPaid int64, externalRef string) (*Obligation, error)
}
