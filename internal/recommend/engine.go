// Package recommend generates ranked, explained hair-care recommendations
// from a profile and situational context.
//
// Generation runs as a fixed sequence of stages (products, routines,
// education, remedy, lifestyle). A stage that fails or panics is logged and
// skipped; the others still contribute, so callers always get a best-effort
// list. Seasonal overlays are applied after generation and the result is
// ranked with a stable three-key sort.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tresses/internal/analyzer"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/metrics"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/reranking"
)

// Confidence bounds for generated recommendations.
const (
	BaseConfidence = 0.7
	MaxConfidence  = 0.95
	confidenceStep = 0.1
)

// stage produces one family of recommendations.
type stage struct {
	name string
	run  func(ctx context.Context, r *request) ([]Recommendation, error)
}

// request is the per-call state shared between stages.
type request struct {
	Context
	needs analyzer.NeedsAnalysis
}

// Engine is safe for concurrent use; it holds no per-request state.
type Engine struct {
	kb       *knowledge.Store
	catalog  Catalog
	feedback FeedbackStore
	newID    func() string
	stages   []stage
}

type Option func(*Engine)

func WithCatalog(c Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

func WithFeedbackStore(s FeedbackStore) Option {
	return func(e *Engine) { e.feedback = s }
}

// WithIDGenerator replaces the uuid-based recommendation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func New(kb *knowledge.Store, opts ...Option) *Engine {
	e := &Engine{
		kb:       kb,
		catalog:  DefaultProducts,
		feedback: NewMemoryFeedbackStore(),
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	e.stages = []stage{
		{"product", e.productStage},
		{"routine", e.routineStage},
		{"education", e.educationStage},
		{"remedy", e.remedyStage},
		{"lifestyle", e.lifestyleStage},
	}
	return e
}

// Generate returns ranked recommendations for c. It never fails: stage
// errors reduce the list instead.
func (e *Engine) Generate(ctx context.Context, c Context) []Recommendation {
	start := time.Now()
	r := &request{Context: c, needs: analyzer.Analyze(c.Profile)}

	var recs []Recommendation
	for _, s := range e.stages {
		recs = append(recs, e.runStage(ctx, s, r)...)
	}

	for i := range recs {
		recs[i].ID = e.newID()
		applySeasonalAdjustment(&recs[i], c.Season)
	}

	recs = e.rank(recs, c.Profile.Cultural)

	for _, rec := range recs {
		metrics.RecordRecommendation(string(rec.Type))
	}
	metrics.RecommendationDuration.Observe(time.Since(start).Seconds())
	slog.Debug("recommendations generated", "user", c.Profile.ID, "count", len(recs), "season", c.Season)
	return recs
}

func (e *Engine) runStage(ctx context.Context, s stage, r *request) (recs []Recommendation) {
	defer func() {
		if p := recover(); p != nil {
			slog.Warn("recommend: stage panicked, skipping", "stage", s.name, "panic", p)
			metrics.RecordStageFailure(s.name)
			recs = nil
		}
	}()
	out, err := s.run(ctx, r)
	if err != nil {
		slog.Warn("recommend: stage failed, skipping", "stage", s.name, "error", err)
		metrics.RecordStageFailure(s.name)
		return nil
	}
	return out
}

func (e *Engine) rank(recs []Recommendation, cp profile.CulturalProfile) []Recommendation {
	rr := reranking.NewReranker(cp.RespectLevel == profile.RespectHigh)
	bg := string(cp.Background)
	return reranking.Apply(rr, recs, func(rec Recommendation) reranking.Keys {
		return reranking.Keys{
			Priority:          rec.Priority.Rank(),
			Confidence:        rec.Confidence,
			CulturalRelevance: reranking.CulturalRelevance(rec.CulturalContext, rec.Type == TypeRemedy, bg),
		}
	})
}

// calculateConfidence starts at BaseConfidence and adds bounded increments
// for profile completeness, personalization level and the user's historical
// satisfaction with t. The result never exceeds MaxConfidence.
func (e *Engine) calculateConfidence(ctx context.Context, p profile.Profile, t Type) float64 {
	c := BaseConfidence +
		profile.Completeness(p)*confidenceStep +
		p.AI.PersonalizationLevel*confidenceStep +
		e.satisfaction(ctx, p, t)*confidenceStep
	return math.Min(round2(c), MaxConfidence)
}

// satisfaction prefers the feedback store and falls back to the profile's
// own feedback patterns.
func (e *Engine) satisfaction(ctx context.Context, p profile.Profile, t Type) float64 {
	st, err := e.feedback.FeedbackStats(ctx, p.ID, t)
	if err != nil {
		slog.Warn("recommend: feedback lookup failed", "user", p.ID, "type", t, "error", err)
	}
	if err == nil && st.Total > 0 {
		return st.Rate()
	}
	if fp, ok := p.AI.FeedbackPatterns[string(t)]; ok && fp.Total > 0 {
		return float64(fp.Positive) / float64(fp.Total)
	}
	return 0
}

// RecordFeedback stores a feedback event for later confidence scoring.
func (e *Engine) RecordFeedback(ctx context.Context, f Feedback) error {
	if f.UserID == "" || f.RecommendationID == "" {
		return fmt.Errorf("feedback requires user and recommendation ids")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if err := e.feedback.RecordFeedback(ctx, f); err != nil {
		return fmt.Errorf("recording feedback: %w", err)
	}
	metrics.RecordFeedback(string(f.RecommendationType), f.Satisfied())
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
