package identity

import (
	"context"
	"log/slog"
)

// Service resolves aliases to canonical DIDs and answers balance queries.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an identity service backed by the given store.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Resolve maps a recipient alias to a canonical DID. Inputs that already
// carry the DID prefix pass through untouched, even when no user row exists
// for them yet; everything else goes through the alias registry, falling
// back to phone-number lookup.
func (s *Service) Resolve(ctx context.Context, alias string) (string, error) {
	if IsDID(alias) {
		return alias, nil
	}

	did, err := s.store.LookupAlias(ctx, alias)
	if err == nil {
		return did, nil
	}

	// Phone numbers double as implicit aliases.
	u, uerr := s.store.GetByPhone(ctx, alias)
	if uerr == nil {
		return u.DID, nil
	}

	s.logger.Debug("alias resolution failed", "alias", alias)
	return "", ErrAliasNotFound
}

// GetByDID returns the user registered under a DID.
func (s *Service) GetByDID(ctx context.Context, did string) (*User, error) {
	return s.store.GetByDID(ctx, did)
}

// GetByPhone returns the user registered under a phone number.
func (s *Service) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return s.store.GetByPhone(ctx, phone)
}

// Balance returns the current balance for a DID.
func (s *Service) Balance(ctx context.Context, did string) (float64, error) {
	u, err := s.store.GetByDID(ctx, did)
	if err != nil {
		return 0, err
	}
	return u.Balance, nil
}

// Register creates a user and binds their phone number as an alias.
func (s *Service) Register(ctx context.Context, u *User) error {
	if err := s.store.Create(ctx, u); err != nil {
		return err
	}
	if u.PhoneNumber != "" {
		if err := s.store.SaveAlias(ctx, u.PhoneNumber, u.DID); err != nil {
			return err
		}
	}
	s.logger.Info("user registered", "did", u.DID, "phone", u.PhoneNumber)
	return nil
}
