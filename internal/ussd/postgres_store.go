package ussd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	var tempData []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT session_id, phone_number, current_menu, temp_data,
			initiated_at, last_interaction_at, is_active,
			last_text, last_response, last_keep_session
		FROM ussd_sessions WHERE session_id = $1
	`, sessionID).Scan(
		&sess.SessionID, &sess.PhoneNumber, &sess.CurrentMenu, &tempData,
		&sess.InitiatedAt, &sess.LastInteractionAt, &sess.Active,
		&sess.LastText, &sess.LastResponse, &sess.LastKeepSession,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess.TempData = make(map[string]string)
	if len(tempData) > 0 {
		if err := json.Unmarshal(tempData, &sess.TempData); err != nil {
			return nil, fmt.Errorf("decode temp data: %w", err)
		}
	}
	return &sess, nil
}

func (p *PostgresStore) Upsert(ctx context.Context, session *Session) error {
	tempData, err := json.Marshal(session.TempData)
	if err != nil {
		return fmt.Errorf("encode temp data: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO ussd_sessions (
			session_id, phone_number, current_menu, temp_data,
			initiated_at, last_interaction_at, is_active,
			last_text, last_response, last_keep_session
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO UPDATE SET
			current_menu        = EXCLUDED.current_menu,
			temp_data           = EXCLUDED.temp_data,
			last_interaction_at = EXCLUDED.last_interaction_at,
			is_active           = EXCLUDED.is_active,
			last_text           = EXCLUDED.last_text,
			last_response       = EXCLUDED.last_response,
			last_keep_session   = EXCLUDED.last_keep_session
	`,
		session.SessionID, session.PhoneNumber, session.CurrentMenu, tempData,
		session.InitiatedAt, session.LastInteractionAt, session.Active,
		session.LastText, session.LastResponse, session.LastKeepSession,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}
