// Package payments orchestrates money transfers across channels: the fraud
// gate, alias resolution, provider dispatch, and the transaction record.
package payments

import (
	"context"
	"errors"
	"time"
)

// Channels a transfer can be dispatched over.
const (
	ChannelOrangeMoney = "orange_money"
	ChannelBank        = "bank"
	ChannelWallet      = "wallet"
	ChannelQR          = "qr"
	ChannelUSSD        = "ussd"
)

// Transaction statuses.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// ErrTransactionNotFound is returned when no transaction exists for an ID.
var ErrTransactionNotFound = errors.New("transaction not found")

// Transaction is the persisted record of one transfer attempt.
type Transaction struct {
	ID          string    `json:"id"`
	FromDID     string    `json:"fromDid"`
	ToDID       string    `json:"toDid"`
	Amount      float64   `json:"amount"`
	Fee         float64   `json:"fee"`
	Channel     string    `json:"channel"`
	Status      string    `json:"status"`
	AliasUsed   string    `json:"aliasUsed,omitempty"`
	ProviderRef string    `json:"providerRef,omitempty"`
	InitiatedAt time.Time `json:"initiatedAt"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
}

// Store persists transactions.
type Store interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	UpdateStatus(ctx context.Context, id, status string, completedAt time.Time) error
	ListByDID(ctx context.Context, did string, limit int) ([]*Transaction, error)
}
