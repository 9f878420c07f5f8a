package models

// Role distinguishes administrators from regular borrowers. It is stored as a
// plain string column but compared only through the typed constants below.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleRegular Role = "regular"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleRegular
}

// IsAdmin reports whether the role grants administrative capabilities.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Actor identifies who is invoking an operation. Services receive it
// explicitly instead of reading identity from ambient request state.
type Actor struct {
	ID   string
	Role Role
}

// CanDecideLoans reports whether the actor may approve or reject requests.
func (a Actor) CanDecideLoans() bool {
	return a.Role.IsAdmin()
}

// CanActOn reports whether the actor may operate on a loan owned by userID.
// Admins may act on any loan, borrowers only on their own.
func (a Actor) CanActOn(userID string) bool {
	return a.Role.IsAdmin() || a.ID == userID
}
