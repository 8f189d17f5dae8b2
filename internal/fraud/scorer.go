package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/payflex/payflex/internal/identity"
	"github.com/payflex/payflex/internal/metrics"
	"github.com/payflex/payflex/internal/traces"
)

// SubjectDirectory confirms the subject exists and supplies the contact
// details forwarded to the vendor.
type SubjectDirectory interface {
	GetByDID(ctx context.Context, did string) (*identity.User, error)
}

// Scorer runs full fraud assessments and persists the resulting composite.
type Scorer struct {
	store    Store
	external ExternalScorer
	subjects SubjectDirectory
	logger   *slog.Logger
}

// NewScorer creates a scorer over the given store, vendor client, and
// subject directory.
func NewScorer(store Store, external ExternalScorer, subjects SubjectDirectory, logger *slog.Logger) *Scorer {
	return &Scorer{store: store, external: external, subjects: subjects, logger: logger}
}

// Latest returns the last persisted composite score for a DID, or 0 when the
// subject has never been assessed.
func (s *Scorer) Latest(ctx context.Context, did string) (int, error) {
	score, err := s.store.Latest(ctx, did)
	if err == ErrScoreNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return score.Composite, nil
}

// Assess blends the internal score with the vendor signal, persists the new
// composite, and decides whether the subject is blocked. A vendor failure
// aborts the assessment with ErrExternalScoringUnavailable; it never degrades
// to a silent zero.
func (s *Scorer) Assess(ctx context.Context, did, ip string) (*Assessment, error) {
	ctx, span := traces.StartSpan(ctx, "fraud.Assess", traces.Subject(did))
	defer span.End()

	subject, err := s.subjects.GetByDID(ctx, did)
	if err == identity.ErrUserNotFound {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve subject: %w", err)
	}

	internal, err := s.Latest(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("internal score: %w", err)
	}

	external, err := s.external.Score(ctx, did, subject.PhoneNumber, ip)
	if err != nil {
		s.logger.Warn("external scoring failed", "did", did, "error", err)
		return nil, ErrExternalScoringUnavailable
	}

	composite := Composite(internal, external)
	assessment := &Assessment{
		DID:            did,
		InternalScore:  internal,
		ExternalScore:  external,
		CompositeScore: composite,
		Blocked:        composite > BlockThreshold,
		AssessedAt:     time.Now(),
	}

	if err := s.store.Save(ctx, &Score{
		DID:       did,
		Composite: composite,
		UpdatedAt: assessment.AssessedAt,
	}); err != nil {
		return nil, fmt.Errorf("save score: %w", err)
	}

	decision := "allow"
	if assessment.Blocked {
		decision = "block"
	}
	metrics.FraudAssessmentsTotal.WithLabelValues(decision).Inc()
	s.logger.Info("fraud assessment",
		"did", did,
		"internal", internal,
		"external", external,
		"composite", composite,
		"blocked", assessment.Blocked,
	)
	return assessment, nil
}

// Composite blends internal and external scores 70/30, rounded half away
// from zero.
func Composite(internal, external int) int {
	return int(math.Round(internalWeight*float64(internal) + externalWeight*float64(external)))
}
