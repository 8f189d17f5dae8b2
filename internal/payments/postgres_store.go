package payments

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, tx *Transaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, from_did, to_did, amount, fee, channel, status,
			alias_used, provider_ref, initiated_at, completed_at
		) VALUES ($1, $2, $3, $4::NUMERIC(20,2), $5::NUMERIC(20,2), $6, $7, $8, $9, $10, $11)
	`,
		tx.ID, tx.FromDID, tx.ToDID, tx.Amount, tx.Fee, tx.Channel, tx.Status,
		nullStr(tx.AliasUsed), nullStr(tx.ProviderRef), tx.InitiatedAt, nullTime(tx.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, from_did, to_did, amount, fee, channel, status,
			alias_used, provider_ref, initiated_at, completed_at
		FROM transactions WHERE id = $1
	`, id)
	return scanTransaction(row)
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id, status string, completedAt time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE transactions SET status = $2, completed_at = $3 WHERE id = $1
	`, id, status, nullTime(completedAt))
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (p *PostgresStore) ListByDID(ctx context.Context, did string, limit int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, from_did, to_did, amount, fee, channel, status,
			alias_used, provider_ref, initiated_at, completed_at
		FROM transactions
		WHERE from_did = $1 OR to_did = $1
		ORDER BY initiated_at DESC LIMIT $2
	`, did, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// scannable abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scannable interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scannable) (*Transaction, error) {
	var tx Transaction
	var aliasUsed, providerRef sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&tx.ID, &tx.FromDID, &tx.ToDID, &tx.Amount, &tx.Fee, &tx.Channel, &tx.Status,
		&aliasUsed, &providerRef, &tx.InitiatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	tx.AliasUsed = aliasUsed.String
	tx.ProviderRef = providerRef.String
	if completedAt.Valid {
		tx.CompletedAt = completedAt.Time
	}
	return &tx, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
