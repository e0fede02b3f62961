package auth

import "time"

// Role drives the permission set of an identity. See permissions.go for the
// mapping; handlers never branch on the raw role string.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User is a registered identity. Phone and email are unique; email is stored
// lowercased. PasswordHash is bcrypt, plaintext is never persisted.
//
// RefreshToken is a single mutable slot holding the currently valid refresh
// token. Overwriting it on login invalidates any earlier session: the service
// supports at most one live session per identity. A multi-device redesign
// must replace this slot with a keyed session table.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	SocietyID    string    `json:"societyId,omitempty"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile carries the caller-supplied fields of a new identity.
type Profile struct {
	Name     string
	Phone    string
	Email    string
	Password string
	Role     Role
}
