package billing

import (
	"errors"
	"time"
)

// Charge is a billing event issued by a society manager, e.g. monthly
// maintenance. Amounts are in minor units (paise); no floats. A charge is
// immutable once created.
type Charge struct {
	ID          string    `json:"id"`
	SocietyID   string    `json:"societyId"`
	Title       string    `json:"title"`
	IssueDate   time.Time `json:"issueDate"`
	DueDate     time.Time `json:"dueDate"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ObligationStatus is the settlement state of one member's share of a charge.
type ObligationStatus string

const (
	StatusPending ObligationStatus = "pending"
	StatusPaid    ObligationStatus = "paid"
)

// Obligation tracks one member's settlement of one charge. Exactly one
// obligation exists per (charge, member-at-creation-time) pair; status moves
// pending -> paid and never back.
type Obligation struct {
	ID                 string           `json:"id"`
	ChargeID           string           `json:"chargeId"`
	MemberID           string           `json:"memberId"`
	Status             ObligationStatus `json:"status"`
	AmountPaid         int64            `json:"amountPaid,omitempty"`
	PaidAt             *time.Time       `json:"paidAt,omitempty"`
	ExternalPaymentRef string           `json:"externalPaymentRef,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// MemberSettlement is the flattened member-facing view: an obligation joined
// with its parent charge.
type MemberSettlement struct {
	ObligationID string           `json:"id"`
	ChargeID     string           `json:"paymentId"`
	Title        string           `json:"title"`
	Amount       int64            `json:"amount"`
	DueDate      time.Time        `json:"dueDate"`
	IssueDate    time.Time        `json:"issueDate"`
	Description  string           `json:"description"`
	Status       ObligationStatus `json:"status"`
	PaidAt       *time.Time       `json:"paidAt,omitempty"`
	AmountPaid   int64            `json:"amountPaid,omitempty"`
}

var (
	ErrNotFound      = errors.New("billing: not found")
	ErrInvalidInput  = errors.New("billing: invalid input")
	ErrInvalidAmount = errors.New("billing: amount must be > 0")
	ErrAlreadyPaid   = errors.New("billing: obligation already settled")

	// ErrFanoutIncomplete reports that a charge exists but some roster
	// members lack an obligation. Distinct from generic failures so
	// operators can reconcile; ReconcileCharge retries the fan-out.
	ErrFanoutIncomplete = errors.New("billing: fan-out incomplete")
)
