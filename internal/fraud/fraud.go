// Package fraud scores transfer risk. A composite score blends the internal
// behavioural score with an external vendor signal; transfers are blocked
// above a fixed threshold. When the vendor is unreachable the assessment
// fails closed rather than scoring the subject clean.
package fraud

import (
	"context"
	"errors"
	"time"
)

// BlockThreshold is the composite score above which transfers are blocked.
// The comparison is strictly greater-than: a score of exactly 80 passes.
const BlockThreshold = 80

// Weights for the composite blend.
const (
	internalWeight = 0.7
	externalWeight = 0.3
)

var (
	// ErrScoreNotFound is returned when no score has been persisted for a DID.
	ErrScoreNotFound = errors.New("fraud score not found")
	// ErrSubjectNotFound is returned when the subject DID resolves to no
	// known account.
	ErrSubjectNotFound = errors.New("fraud subject not found")
	// ErrExternalScoringUnavailable is returned when the vendor cannot be
	// reached. Callers must treat this as a hard failure, never as a zero score.
	ErrExternalScoringUnavailable = errors.New("external fraud scoring unavailable")
)

// Score is the persisted composite score for a subject. Saving overwrites any
// previous row; only the latest score is kept.
type Score struct {
	DID       string    `json:"did"`
	Composite int       `json:"composite"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Assessment is the outcome of a full fraud check.
type Assessment struct {
	DID            string    `json:"did"`
	InternalScore  int       `json:"internalScore"`
	ExternalScore  int       `json:"externalScore"`
	CompositeScore int       `json:"compositeScore"`
	Blocked        bool      `json:"blocked"`
	AssessedAt     time.Time `json:"assessedAt"`
}

// Store persists the latest composite score per DID.
type Store interface {
	Latest(ctx context.Context, did string) (*Score, error)
	Save(ctx context.Context, score *Score) error
}

// ExternalScorer fetches a risk score from a third-party vendor.
type ExternalScorer interface {
	Score(ctx context.Context, did, phone, ip string) (int, error)
}
