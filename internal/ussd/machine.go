package ussd

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/payflex/payflex/internal/fraud"
	"github.com/payflex/payflex/internal/identity"
	"github.com/payflex/payflex/internal/metrics"
	"github.com/payflex/payflex/internal/payments"
	"github.com/payflex/payflex/internal/syncutil"
	"github.com/payflex/payflex/internal/traces"
)

// maxResponseBytes is the common gateway display limit for one USSD reply.
const maxResponseBytes = 182

// Reply texts. The orchestrator's outcome messages pass through with a
// Success:/Error: prefix, matching what subscribers see on other channels.
const (
	textMainMenu         = "1. Send Money\n2. Check Fraud Score\n3. View Balance\n4. Exit"
	textPromptRecipient  = "Enter recipient phone or DID:"
	textPromptAmount     = "Enter amount to send:"
	textInvalidInput     = "Invalid input. Returning to main menu."
	textInvalidAmount    = "Invalid amount. Enter amount to send:"
	textGoodbye          = "Session ended. Goodbye."
	textSenderNotFound   = "Error: Sender not found."
	textUserNotFound     = "Error: User not found."
	textServiceUnavail   = "Error: Service unavailable. Try again later."
	textTransferFailed   = "Error: Unable to process transfer."
)

// Turn is one inbound carrier request.
type Turn struct {
	SessionID   string
	PhoneNumber string
	Text        string
	SourceIP    string
}

// Reply is the two-field response the gateway expects. KeepSession false
// tells the carrier to tear down the dialogue after display.
type Reply struct {
	Response    string `json:"response"`
	KeepSession bool   `json:"keepSession"`
}

// Machine runs the per-session menu state machine.
type Machine struct {
	store        Store
	identity     *identity.Service
	scorer       *fraud.Scorer
	orchestrator *payments.Orchestrator
	locks        *syncutil.ContextShardedMutex
	logger       *slog.Logger
}

// NewMachine wires the session machine.
func NewMachine(
	store Store,
	idsvc *identity.Service,
	scorer *fraud.Scorer,
	orchestrator *payments.Orchestrator,
	logger *slog.Logger,
) *Machine {
	return &Machine{
		store:        store,
		identity:     idsvc,
		scorer:       scorer,
		orchestrator: orchestrator,
		locks:        syncutil.NewContextShardedMutex(),
		logger:       logger,
	}
}

// Handle processes one turn. Turns for the same session ID are serialized on
// a per-session lock, so at most one payment dispatch can happen per turn
// even under carrier retransmission. The updated session is persisted before
// the reply is returned.
func (m *Machine) Handle(ctx context.Context, turn Turn) (*Reply, error) {
	ctx, span := traces.StartSpan(ctx, "ussd.Handle", traces.SessionID(turn.SessionID))
	defer span.End()

	unlock, err := m.locks.LockContext(ctx, turn.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := time.Now()
	sess, err := m.store.Get(ctx, turn.SessionID)
	if err == ErrSessionNotFound {
		sess = m.newSession(turn, now)
	} else if err != nil {
		return nil, err
	}

	if !sess.Active {
		// Terminal session. An identical retransmit replays the stored reply
		// without side effects; anything else is treated as a fresh dialogue.
		if sess.LastText == turn.Text {
			return &Reply{Response: sess.LastResponse, KeepSession: sess.LastKeepSession}, nil
		}
		sess = m.newSession(turn, now)
	}

	reply, err := m.transition(ctx, sess, turn)
	if err != nil {
		return nil, err
	}
	reply.Response = truncate(reply.Response)

	sess.LastInteractionAt = now
	sess.LastText = turn.Text
	sess.LastResponse = reply.Response
	sess.LastKeepSession = reply.KeepSession
	sess.Active = reply.KeepSession

	// Write-then-respond: the session must be durable before the carrier
	// sees the reply.
	if err := m.store.Upsert(ctx, sess); err != nil {
		return nil, err
	}

	metrics.USSDTurnsTotal.WithLabelValues(sess.CurrentMenu).Inc()
	return reply, nil
}

func (m *Machine) newSession(turn Turn, now time.Time) *Session {
	return &Session{
		SessionID:         turn.SessionID,
		PhoneNumber:       turn.PhoneNumber,
		CurrentMenu:       MenuMain,
		TempData:          make(map[string]string),
		InitiatedAt:       now,
		LastInteractionAt: now,
		Active:            true,
	}
}

// transition applies one turn to the session and produces the reply. It
// mutates sess; the caller persists it.
func (m *Machine) transition(ctx context.Context, sess *Session, turn Turn) (*Reply, error) {
	token := latestToken(turn.Text)

	// Empty text always restarts at the main menu, whatever the prior state.
	if token == "" {
		sess.CurrentMenu = MenuMain
		return &Reply{Response: textMainMenu, KeepSession: true}, nil
	}

	switch sess.CurrentMenu {
	case MenuSendRecipient:
		sess.TempData["recipient"] = token
		sess.CurrentMenu = MenuSendAmount
		return &Reply{Response: textPromptAmount, KeepSession: true}, nil

	case MenuSendAmount:
		return m.dispatchTransfer(ctx, sess, turn, token)

	default: // MenuMain
		return m.mainMenu(ctx, sess, turn, token)
	}
}

func (m *Machine) mainMenu(ctx context.Context, sess *Session, turn Turn, token string) (*Reply, error) {
	switch {
	case strings.HasPrefix(token, "1"):
		sess.CurrentMenu = MenuSendRecipient
		return &Reply{Response: textPromptRecipient, KeepSession: true}, nil

	case strings.HasPrefix(token, "2"):
		user, err := m.identity.GetByPhone(ctx, turn.PhoneNumber)
		if err == identity.ErrUserNotFound {
			return m.endSession(sess, "not_found", textUserNotFound), nil
		}
		if err != nil {
			return nil, err
		}
		score, err := m.scorer.Latest(ctx, user.DID)
		if err != nil {
			return nil, err
		}
		return m.endSession(sess, "completed", fmt.Sprintf("Your Fraud Score is %d.", score)), nil

	case strings.HasPrefix(token, "3"):
		user, err := m.identity.GetByPhone(ctx, turn.PhoneNumber)
		if err == identity.ErrUserNotFound {
			return m.endSession(sess, "not_found", textUserNotFound), nil
		}
		if err != nil {
			return nil, err
		}
		return m.endSession(sess, "completed",
			fmt.Sprintf("Your balance is P %s.", formatAmount(user.Balance))), nil

	case strings.HasPrefix(token, "4"):
		return m.endSession(sess, "exit", textGoodbye), nil

	default:
		sess.CurrentMenu = MenuMain
		return &Reply{Response: textInvalidInput, KeepSession: true}, nil
	}
}

// dispatchTransfer runs the final send-money turn. Malformed or non-positive
// amounts keep the session at the amount prompt so the subscriber can retry;
// everything past that point terminates the dialogue.
func (m *Machine) dispatchTransfer(ctx context.Context, sess *Session, turn Turn, token string) (*Reply, error) {
	amount, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return &Reply{Response: textInvalidAmount, KeepSession: true}, nil
	}

	sender, err := m.identity.GetByPhone(ctx, turn.PhoneNumber)
	if err == identity.ErrUserNotFound {
		return m.endSession(sess, "error", textSenderNotFound), nil
	}
	if err != nil {
		return nil, err
	}

	outcome, err := m.orchestrator.Send(ctx, payments.SendRequest{
		SenderDID:      sender.DID,
		RecipientAlias: sess.TempData["recipient"],
		Amount:         amount,
		Channel:        payments.ChannelUSSD,
		SourceIP:       turn.SourceIP,
	})
	if err != nil {
		m.logger.Error("ussd transfer failed", "sessionId", sess.SessionID, "error", err)
		switch err {
		case fraud.ErrExternalScoringUnavailable:
			return m.endSession(sess, "error", textServiceUnavail), nil
		case fraud.ErrSubjectNotFound:
			return m.endSession(sess, "error", textSenderNotFound), nil
		default:
			return m.endSession(sess, "error", textTransferFailed), nil
		}
	}

	if outcome.Success {
		return m.endSession(sess, "completed", "Success: "+outcome.Message), nil
	}
	return m.endSession(sess, "completed", "Error: "+outcome.Message), nil
}

func (m *Machine) endSession(sess *Session, reason, response string) *Reply {
	sess.Active = false
	metrics.USSDSessionsEndedTotal.WithLabelValues(reason).Inc()
	return &Reply{Response: response, KeepSession: false}
}

// latestToken treats the carrier's accumulated "1*267...*50" text as a
// sequence and returns the newest entry.
func latestToken(text string) string {
	parts := strings.Split(text, "*")
	return strings.TrimSpace(parts[len(parts)-1])
}

// formatAmount renders a balance without trailing zeros (250 not 250.00,
// 12.5 not 12.50).
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// truncate clips a reply to the gateway display limit.
func truncate(s string) string {
	if len(s) <= maxResponseBytes {
		return s
	}
	return s[:maxResponseBytes]
}
