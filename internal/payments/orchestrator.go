package payments

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/payflex/payflex/internal/fraud"
	"github.com/payflex/payflex/internal/gsma"
	"github.com/payflex/payflex/internal/identity"
	"github.com/payflex/payflex/internal/idgen"
	"github.com/payflex/payflex/internal/ledger"
	"github.com/payflex/payflex/internal/metrics"
	"github.com/payflex/payflex/internal/realtime"
	"github.com/payflex/payflex/internal/traces"
)

// User-facing outcome messages. The USSD surface relays these verbatim.
const (
	MsgAmountInvalid    = "Amount must be greater than zero."
	MsgFraudBlocked     = "Transfer blocked due to high fraud risk."
	MsgRecipientMissing = "Recipient not found."
	MsgTransferComplete = "Transfer complete."
	MsgCompleteAtURL    = "Please complete payment at: "
)

// Gateway initializes provider payments and polls their status.
// *gsma.Client is the production implementation.
type Gateway interface {
	Initialize(ctx context.Context, req gsma.InitializeRequest) (*gsma.InitializeResult, error)
	Status(ctx context.Context, transactionID string) (string, error)
}

// SendRequest describes one transfer attempt.
type SendRequest struct {
	SenderDID      string  `json:"senderDid"`
	RecipientAlias string  `json:"recipientAlias"`
	Amount         float64 `json:"amount"`
	Channel        string  `json:"channel"`
	SourceIP       string  `json:"-"`
}

// Outcome is the caller-visible result of a transfer attempt. Success false
// with a message is a business rejection, not an infrastructure error.
type Outcome struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId,omitempty"`
	PaymentURL    string `json:"paymentUrl,omitempty"`
}

// Orchestrator runs the full transfer pipeline: amount gate, fraud gate,
// alias resolution, channel dispatch, transaction record, ledger pair.
type Orchestrator struct {
	store    Store
	identity *identity.Service
	fraud    *fraud.Scorer
	gateway  Gateway
	ledger   *ledger.Recorder
	hub      *realtime.Hub
	currency string
	feePct   float64
	logger   *slog.Logger
}

// NewOrchestrator wires the transfer pipeline. hub may be nil when realtime
// streaming is disabled.
func NewOrchestrator(
	store Store,
	idsvc *identity.Service,
	scorer *fraud.Scorer,
	gateway Gateway,
	recorder *ledger.Recorder,
	hub *realtime.Hub,
	currency string,
	feePct float64,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		identity: idsvc,
		fraud:    scorer,
		gateway:  gateway,
		ledger:   recorder,
		hub:      hub,
		currency: currency,
		feePct:   feePct,
		logger:   logger,
	}
}

// Send runs one transfer attempt end to end.
//
// Gate order is fixed: the amount check runs before anything that touches
// storage or the network, and the fraud gate runs before alias resolution.
// A rejected transfer leaves no transaction row and no ledger events.
// A fraud-vendor outage aborts with an error rather than letting the
// transfer through unscored.
func (o *Orchestrator) Send(ctx context.Context, req SendRequest) (*Outcome, error) {
	ctx, span := traces.StartSpan(ctx, "payments.Send",
		traces.Subject(req.SenderDID),
		traces.Amount(req.Amount),
		traces.Channel(req.Channel),
	)
	defer span.End()

	if req.Amount <= 0 {
		return &Outcome{Success: false, Message: MsgAmountInvalid}, nil
	}

	assessment, err := o.fraud.Assess(ctx, req.SenderDID, req.SourceIP)
	if err != nil {
		return nil, err
	}
	if assessment.Blocked {
		metrics.PaymentsTotal.WithLabelValues(req.Channel, "blocked").Inc()
		if o.hub != nil {
			o.hub.BroadcastFraudBlock(map[string]interface{}{
				"did":   req.SenderDID,
				"score": assessment.CompositeScore,
			})
		}
		o.logger.Warn("transfer blocked by fraud gate",
			"sender", req.SenderDID,
			"composite", assessment.CompositeScore,
		)
		return &Outcome{Success: false, Message: MsgFraudBlocked}, nil
	}

	toDID, err := o.identity.Resolve(ctx, req.RecipientAlias)
	if err == identity.ErrAliasNotFound {
		metrics.PaymentsTotal.WithLabelValues(req.Channel, "rejected").Inc()
		return &Outcome{Success: false, Message: MsgRecipientMissing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}

	tx := &Transaction{
		ID:          idgen.WithPrefix("txn_"),
		FromDID:     req.SenderDID,
		ToDID:       toDID,
		Amount:      req.Amount,
		Fee:         round2(req.Amount * o.feePct),
		Channel:     strings.ToUpper(req.Channel),
		AliasUsed:   req.RecipientAlias,
		InitiatedAt: time.Now(),
	}

	if strings.EqualFold(req.Channel, ChannelOrangeMoney) {
		return o.sendViaProvider(ctx, req, tx, toDID)
	}
	return o.sendInternal(ctx, req, tx, toDID)
}

// sendViaProvider hands the payment to the mobile money gateway. The
// transaction stays PENDING until the subscriber completes it; no ledger
// events are written yet.
func (o *Orchestrator) sendViaProvider(ctx context.Context, req SendRequest, tx *Transaction, toDID string) (*Outcome, error) {
	phone := req.RecipientAlias
	if u, err := o.identity.GetByDID(ctx, toDID); err == nil && u.PhoneNumber != "" {
		phone = u.PhoneNumber
	}

	result, err := o.gateway.Initialize(ctx, gsma.InitializeRequest{
		Amount:            req.Amount,
		Currency:          o.currency,
		SubscriberPhone:   phone,
		ExternalReference: tx.ID,
	})
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues(req.Channel, "error").Inc()
		return nil, err
	}

	tx.Status = StatusPending
	tx.ProviderRef = result.TransactionID
	if err := o.store.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	metrics.PaymentsTotal.WithLabelValues(req.Channel, "pending").Inc()
	if o.hub != nil {
		o.hub.BroadcastPaymentPending(map[string]interface{}{
			"from":   tx.FromDID,
			"to":     tx.ToDID,
			"amount": tx.Amount,
			"txId":   tx.ID,
		})
	}
	o.logger.Info("provider payment initialized",
		"txId", tx.ID,
		"providerRef", tx.ProviderRef,
		"amount", tx.Amount,
	)
	return &Outcome{
		Success:       true,
		Message:       MsgCompleteAtURL + result.PaymentURL,
		TransactionID: tx.ID,
		PaymentURL:    result.PaymentURL,
	}, nil
}

// sendInternal settles the transfer immediately: COMPLETED transaction plus
// exactly one balanced ledger pair keyed by the transaction ID.
func (o *Orchestrator) sendInternal(ctx context.Context, req SendRequest, tx *Transaction, toDID string) (*Outcome, error) {
	tx.Status = StatusCompleted
	tx.CompletedAt = time.Now()
	if err := o.store.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	err := o.ledger.RecordTransferPair(ctx, tx.FromDID, toDID, tx.Amount, tx.ID,
		map[string]string{"channel": tx.Channel})
	if err != nil {
		return nil, fmt.Errorf("record ledger pair: %w", err)
	}

	metrics.PaymentsTotal.WithLabelValues(req.Channel, "completed").Inc()
	if o.hub != nil {
		o.hub.BroadcastTransfer(map[string]interface{}{
			"from":   tx.FromDID,
			"to":     tx.ToDID,
			"amount": tx.Amount,
			"txId":   tx.ID,
		})
	}
	o.logger.Info("transfer completed",
		"txId", tx.ID,
		"from", tx.FromDID,
		"to", tx.ToDID,
		"amount", tx.Amount,
	)
	return &Outcome{Success: true, Message: MsgTransferComplete, TransactionID: tx.ID}, nil
}

// Get returns a transaction by ID.
func (o *Orchestrator) Get(ctx context.Context, id string) (*Transaction, error) {
	return o.store.Get(ctx, id)
}

// ListByDID returns recent transactions involving a DID, newest first.
func (o *Orchestrator) ListByDID(ctx context.Context, did string, limit int) ([]*Transaction, error) {
	return o.store.ListByDID(ctx, did, limit)
}

// Refresh polls the gateway for a pending provider payment and settles it.
// A SUCCESS status completes the transaction and writes the ledger pair; the
// pair is keyed by transaction ID, so repeated refreshes stay idempotent.
func (o *Orchestrator) Refresh(ctx context.Context, id string) (*Transaction, error) {
	tx, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusPending || tx.ProviderRef == "" {
		return tx, nil
	}

	status, err := o.gateway.Status(ctx, tx.ProviderRef)
	if err != nil {
		return nil, err
	}

	switch status {
	case gsma.StatusSuccess:
		now := time.Now()
		if err := o.store.UpdateStatus(ctx, tx.ID, StatusCompleted, now); err != nil {
			return nil, err
		}
		err = o.ledger.RecordTransferPair(ctx, tx.FromDID, tx.ToDID, tx.Amount, tx.ID,
			map[string]string{"channel": tx.Channel})
		if err != nil {
			return nil, fmt.Errorf("record ledger pair: %w", err)
		}
		tx.Status = StatusCompleted
		tx.CompletedAt = now
		if o.hub != nil {
			o.hub.BroadcastTransfer(map[string]interface{}{
				"from":   tx.FromDID,
				"to":     tx.ToDID,
				"amount": tx.Amount,
				"txId":   tx.ID,
			})
		}
		o.logger.Info("provider payment settled", "txId", tx.ID)
	case gsma.StatusFailed:
		now := time.Now()
		if err := o.store.UpdateStatus(ctx, tx.ID, StatusFailed, now); err != nil {
			return nil, err
		}
		tx.Status = StatusFailed
		tx.CompletedAt = now
		o.logger.Warn("provider payment failed", "txId", tx.ID)
	}
	return tx, nil
}

// round2 rounds to two decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
