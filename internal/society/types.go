package society

import (
	"errors"
	"time"
)

// Society is a tenant grouping of member identities under one manager. The
// roster lives in a separate relation (see Store.AddMember) so concurrent
// admissions never read-modify-write a shared array.
type Society struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	PinCode   string    `json:"pinCode"`
	ManagerID string    `json:"managerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile carries the caller-supplied fields of a new society.
type Profile struct {
	Name    string
	Address string
	City    string
	State   string
	PinCode string
}

var (
	ErrNotFound     = errors.New("society: not found")
	ErrInvalidInput = errors.New("society: invalid input")
)
