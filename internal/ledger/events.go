// Package ledger provides the append-only financial event log. Every completed
// value movement lands here as an immutable event; transfers always land as a
// balanced TRANSFER_OUT/TRANSFER_IN pair sharing one reference.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Event types recorded in the ledger.
const (
	EventTransferIn    = "TRANSFER_IN"
	EventTransferOut   = "TRANSFER_OUT"
	EventUtilityPay    = "UTILITY_PAYMENT"
	EventLoanDisburse  = "LOAN_DISBURSE"
	EventLoanRepayment = "LOAN_REPAYMENT"
	EventMerchantFee   = "MERCHANT_FEE"
	EventDisbursement  = "DISBURSEMENT"
)

// ErrEmptyPair is returned when a pair append is attempted with a missing leg.
var ErrEmptyPair = errors.New("ledger pair requires both legs")

// Event is an immutable ledger entry. EventID is assigned by the store and is
// strictly monotonic within a store instance.
type Event struct {
	EventID      int64             `json:"eventId"`
	DID          string            `json:"did"`
	EventType    string            `json:"eventType"`
	Amount       float64           `json:"amount"`
	Reference    string            `json:"reference,omitempty"`
	Counterparty string            `json:"counterparty,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Query filters a ledger read. Zero values mean "no constraint".
type Query struct {
	EventType string
	From      time.Time
	To        time.Time
	Limit     int
}

// Store persists and queries ledger events. Append assigns EventID.
// AppendPair writes both legs atomically and is idempotent on the shared
// reference: retrying a pair whose reference is already recorded is a no-op.
type Store interface {
	Append(ctx context.Context, event *Event) error
	AppendPair(ctx context.Context, out, in *Event) error
	Query(ctx context.Context, did string, q Query) ([]*Event, error)
	HasReference(ctx context.Context, reference string) (bool, error)
}
