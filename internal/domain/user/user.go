package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Roles assignable to a user account.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when signing up with an already registered email.
	ErrEmailTaken = errors.New("user already exists")
)

// Address is the user's default shipping address.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// User is a registered account. PasswordHash is a bcrypt hash and never
// leaves the API boundary.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Address      Address
	PhoneNumber  string
	CreatedAt    time.Time
}

// IsAdmin reports whether the user may perform administrative operations.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ProfileUpdate holds the mutable profile fields. Nil fields are left as-is.
type ProfileUpdate struct {
	Name        *string
	Email       *string
	Address     *Address
	PhoneNumber *string
}

// Repository defines persistence operations for user accounts.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
}
