package identity

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

// NewPostgresStore creates a new PostgreSQL-backed identity store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	result, err := p.db.ExecContext(ctx, `
		INSERT INTO users (did, phone_number, name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4::NUMERIC(20,2), $5, $6)
		ON CONFLICT (did) DO NOTHING
	`, u.DID, u.PhoneNumber, u.Name, u.Balance, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserExists
	}
	return nil
}

func (p *PostgresStore) GetByDID(ctx context.Context, did string) (*User, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT did, phone_number, name, balance, created_at, updated_at
		FROM users WHERE did = $1
	`, did)
	return scanUser(row)
}

func (p *PostgresStore) GetByPhone(ctx context.Context, phone string) (*User, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT did, phone_number, name, balance, created_at, updated_at
		FROM users WHERE phone_number = $1
		ORDER BY created_at DESC LIMIT 1
	`, phone)
	return scanUser(row)
}

func (p *PostgresStore) UpdateBalance(ctx context.Context, did string, balance float64) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET balance = $2::NUMERIC(20,2), updated_at = $3 WHERE did = $1
	`, did, balance, time.Now())
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) SaveAlias(ctx context.Context, alias, did string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO aliases (alias, did, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (alias) DO UPDATE SET did = EXCLUDED.did
	`, alias, did)
	if err != nil {
		return fmt.Errorf("save alias: %w", err)
	}
	return nil
}

func (p *PostgresStore) LookupAlias(ctx context.Context, alias string) (string, error) {
	var did string
	err := p.db.QueryRowContext(ctx, `
		SELECT did FROM aliases WHERE alias = $1
	`, alias).Scan(&did)
	if err == sql.ErrNoRows {
		return "", ErrAliasNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup alias: %w", err)
	}
	return did, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&u.DID, &u.PhoneNumber, &u.Name, &u.Balance, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if createdAt.Valid {
		u.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = updatedAt.Time
	}
	return &u, nil
}
