// Package identity manages PayFlex users, their DID identities, and the
// alias registry that maps phone numbers and short names to canonical DIDs.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DIDPrefix is the canonical identity namespace for PayFlex users.
const DIDPrefix = "did:bw:"

var (
	// ErrUserNotFound is returned when no user exists for a DID or phone number.
	ErrUserNotFound = errors.New("user not found")
	// ErrAliasNotFound is returned when an alias resolves to no registered DID.
	ErrAliasNotFound = errors.New("alias not found")
	// ErrUserExists is returned when creating a user whose DID is already registered.
	ErrUserExists = errors.New("user already exists")
)

// User is a registered PayFlex account holder.
type User struct {
	DID         string    `json:"did"`
	PhoneNumber string    `json:"phoneNumber"`
	Name        string    `json:"name"`
	Balance     float64   `json:"balance"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store persists users and the alias registry.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByDID(ctx context.Context, did string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	UpdateBalance(ctx context.Context, did string, balance float64) error

	// SaveAlias registers an alias (phone number, short name) for a DID,
	// overwriting any previous binding.
	SaveAlias(ctx context.Context, alias, did string) error
	// LookupAlias returns the DID bound to an alias, or ErrAliasNotFound.
	LookupAlias(ctx context.Context, alias string) (string, error)
}

// IsDID reports whether s is already a canonical DID rather than an alias.
func IsDID(s string) bool {
	return strings.HasPrefix(s, DIDPrefix)
}
