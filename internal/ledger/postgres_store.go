package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL. Event IDs come from
// the ledger_events BIGSERIAL column, so they stay monotonic across restarts.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, event *Event) error {
	meta, err := marshalMetadata(event.Metadata)
	if err != nil {
		return err
	}
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO ledger_events (did, event_type, amount, reference, counterparty, metadata, created_at)
		VALUES ($1, $2, $3::NUMERIC(20,2), $4, $5, $6, $7)
		RETURNING event_id
	`, event.DID, event.EventType, event.Amount,
		nullString(event.Reference), nullString(event.Counterparty), meta, event.Timestamp,
	).Scan(&event.EventID)
	if err != nil {
		return fmt.Errorf("append ledger event: %w", err)
	}
	return nil
}

func (p *PostgresStore) AppendPair(ctx context.Context, out, in *Event) error {
	if out == nil || in == nil {
		return ErrEmptyPair
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if out.Reference != "" {
		var exists bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM ledger_events WHERE reference = $1)
		`, out.Reference).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check reference: %w", err)
		}
		if exists {
			return nil // already recorded, retry is a no-op
		}
	}

	for _, e := range []*Event{out, in} {
		meta, merr := marshalMetadata(e.Metadata)
		if merr != nil {
			return merr
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO ledger_events (did, event_type, amount, reference, counterparty, metadata, created_at)
			VALUES ($1, $2, $3::NUMERIC(20,2), $4, $5, $6, $7)
			RETURNING event_id
		`, e.DID, e.EventType, e.Amount,
			nullString(e.Reference), nullString(e.Counterparty), meta, e.Timestamp,
		).Scan(&e.EventID)
		if err != nil {
			return fmt.Errorf("append pair leg: %w", err)
		}
	}

	return tx.Commit()
}

func (p *PostgresStore) Query(ctx context.Context, did string, q Query) ([]*Event, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT event_id, did, event_type, amount, reference, counterparty, metadata, created_at
		FROM ledger_events WHERE did = $1`)
	args := []interface{}{did}

	if q.EventType != "" {
		args = append(args, q.EventType)
		sb.WriteString(" AND event_type = $" + strconv.Itoa(len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		sb.WriteString(" AND created_at >= $" + strconv.Itoa(len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		sb.WriteString(" AND created_at <= $" + strconv.Itoa(len(args)))
	}
	sb.WriteString(" ORDER BY created_at DESC, event_id DESC")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	rows, err := p.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Event
	for rows.Next() {
		var e Event
		var reference, counterparty sql.NullString
		var meta []byte
		if err := rows.Scan(&e.EventID, &e.DID, &e.EventType, &e.Amount,
			&reference, &counterparty, &meta, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		e.Reference = reference.String
		e.Counterparty = counterparty.String
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}

func (p *PostgresStore) HasReference(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM ledger_events WHERE reference = $1)
	`, reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return exists, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
