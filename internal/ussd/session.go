// Package ussd implements the carrier-facing menu protocol: short
// request/response turns correlated by a session ID, backed by a persisted
// per-session state machine that drives the payment pipeline.
package ussd

import (
	"context"
	"errors"
	"time"
)

// Menu states. A session starts at MAIN_MENU and either walks the send-money
// steps or terminates on a read-only query.
const (
	MenuMain          = "MAIN_MENU"
	MenuSendRecipient = "SEND_MONEY_STEP1"
	MenuSendAmount    = "SEND_MONEY_STEP2"
)

// ErrSessionNotFound is returned when no session exists for a session ID.
var ErrSessionNotFound = errors.New("ussd session not found")

// Session is one in-progress USSD dialogue. LastText and LastResponse hold
// the most recently processed turn so a carrier retransmit of a terminal
// turn can be replayed without re-running its side effects.
type Session struct {
	SessionID         string            `json:"sessionId"`
	PhoneNumber       string            `json:"phoneNumber"`
	CurrentMenu       string            `json:"currentMenu"`
	TempData          map[string]string `json:"tempData"`
	InitiatedAt       time.Time         `json:"initiatedAt"`
	LastInteractionAt time.Time         `json:"lastInteractionAt"`
	Active            bool              `json:"active"`
	LastText          string            `json:"lastText"`
	LastResponse      string            `json:"lastResponse"`
	LastKeepSession   bool              `json:"lastKeepSession"`
}

// Store persists sessions. Upsert overwrites the whole row; callers hold the
// per-session lock across the load-mutate-save cycle.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Upsert(ctx context.Context, session *Session) error
}
