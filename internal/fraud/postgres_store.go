package fraud

import (
	"context"
	"database/sql"
	"fmt"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL. One row per DID; saves
// overwrite in place.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed fraud score store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Latest(ctx context.Context, did string) (*Score, error) {
	var s Score
	err := p.db.QueryRowContext(ctx, `
		SELECT did, composite, updated_at FROM fraud_scores WHERE did = $1
	`, did).Scan(&s.DID, &s.Composite, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fraud score: %w", err)
	}
	return &s, nil
}

func (p *PostgresStore) Save(ctx context.Context, score *Score) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO fraud_scores (did, composite, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (did) DO UPDATE SET
			composite  = EXCLUDED.composite,
			updated_at = EXCLUDED.updated_at
	`, score.DID, score.Composite, score.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save fraud score: %w", err)
	}
	return nil
}
