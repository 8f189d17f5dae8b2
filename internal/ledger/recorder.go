package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/payflex/payflex/internal/metrics"
)

// Recorder is the write/read surface the rest of the service uses. It wraps a
// Store with logging and instrumentation.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends a single event, stamping the timestamp if unset.
func (r *Recorder) Record(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := r.store.Append(ctx, event); err != nil {
		return err
	}
	metrics.LedgerEventsTotal.WithLabelValues(event.EventType).Inc()
	r.logger.Info("ledger event recorded",
		"eventId", event.EventID,
		"type", event.EventType,
		"did", event.DID,
		"amount", event.Amount,
	)
	return nil
}

// RecordTransferPair writes the two legs of a completed transfer: a
// TRANSFER_OUT for the sender and a TRANSFER_IN for the recipient, both
// stamped with the same timestamp and reference. A reference already present
// in the ledger makes this a no-op, so callers can safely retry.
func (r *Recorder) RecordTransferPair(ctx context.Context, fromDID, toDID string, amount float64, reference string, metadata map[string]string) error {
	now := time.Now()
	out := &Event{
		DID:          fromDID,
		EventType:    EventTransferOut,
		Amount:       amount,
		Reference:    reference,
		Counterparty: toDID,
		Metadata:     metadata,
		Timestamp:    now,
	}
	in := &Event{
		DID:          toDID,
		EventType:    EventTransferIn,
		Amount:       amount,
		Reference:    reference,
		Counterparty: fromDID,
		Metadata:     metadata,
		Timestamp:    now,
	}
	if err := r.store.AppendPair(ctx, out, in); err != nil {
		return err
	}
	metrics.LedgerEventsTotal.WithLabelValues(EventTransferOut).Inc()
	metrics.LedgerEventsTotal.WithLabelValues(EventTransferIn).Inc()
	r.logger.Info("transfer pair recorded",
		"from", fromDID,
		"to", toDID,
		"amount", amount,
		"reference", reference,
	)
	return nil
}

// Query returns events for a DID, newest first (timestamp descending, event ID
// descending on ties).
func (r *Recorder) Query(ctx context.Context, did string, q Query) ([]*Event, error) {
	return r.store.Query(ctx, did, q)
}
