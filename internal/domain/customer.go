package domain

import "github.com/google/uuid"

type Address struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
}

type Customer struct {
	ID      uuid.UUID
	Name    string
	Email   string
	Address *Address
}

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleCustomer Role = "CUSTOMER"
)

// Principal is the acting user as established by the auth collaborator.
// The core trusts it; verification is out of scope.
type Principal struct {
	CustomerID uuid.UUID
	Role       Role
}

// Elevated reports whether the principal bypasses ownership checks.
func (p Principal) Elevated() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}
