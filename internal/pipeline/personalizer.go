// Package pipeline wires the profile store, analyzer, cultural advisor and
// recommendation engine into the request paths the service exposes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/tresses/internal/advisor"
	"github.com/kalambet/tresses/internal/analyzer"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/recommend"
)

// ErrUnknownUser is returned by operations that cannot proceed without a
// stored profile. Recommend does not use it: an unknown user gets no
// recommendations.
var ErrUnknownUser = errors.New("pipeline: unknown user")

// ErrInvalidFeedback is returned for feedback with missing ids or a rating
// outside 1..5.
var ErrInvalidFeedback = errors.New("pipeline: invalid feedback")

// Metadata captures diagnostic information about one recommendation request.
type Metadata struct {
	ProfileFound       bool    `json:"profile_found"`
	NeedsConfidence    float64 `json:"needs_confidence"`
	TopConcern         string  `json:"top_concern,omitempty"`
	AnalysisDurationMs int64   `json:"analysis_duration_ms"`
	GenerateDurationMs int64   `json:"generate_duration_ms"`
}

type Request struct {
	UserID  string             `json:"user_id"`
	Season  recommend.Season   `json:"season,omitempty"`
	Weather *recommend.Weather `json:"weather,omitempty"`
}

// Personalizer orchestrates profile lookup, needs analysis and
// recommendation generation.
type Personalizer struct {
	profiles *profile.Manager
	engine   *recommend.Engine
	advisor  *advisor.Advisor
	now      func() time.Time
}

func NewPersonalizer(profiles *profile.Manager, engine *recommend.Engine, adv *advisor.Advisor) *Personalizer {
	return &Personalizer{profiles: profiles, engine: engine, advisor: adv, now: time.Now}
}

// Recommend loads the profile, analyzes its needs and generates ranked
// recommendations. An unknown user yields an empty list and no error.
func (p *Personalizer) Recommend(ctx context.Context, req Request) ([]recommend.Recommendation, Metadata, error) {
	var meta Metadata

	prof, ok, err := p.profiles.Get(ctx, req.UserID)
	if err != nil {
		return nil, meta, fmt.Errorf("loading profile: %w", err)
	}
	if !ok {
		slog.Debug("pipeline: no profile, returning no recommendations", "user_id", req.UserID)
		return []recommend.Recommendation{}, meta, nil
	}
	meta.ProfileFound = true

	start := time.Now()
	needs := analyzer.Analyze(prof)
	meta.AnalysisDurationMs = time.Since(start).Milliseconds()
	meta.NeedsConfidence = needs.ConfidenceScore
	if c, ok := needs.TopConcern(); ok {
		meta.TopConcern = c.Type
	}

	start = time.Now()
	recs := p.engine.Generate(ctx, recommend.Context{
		Profile:            prof,
		Season:             req.Season,
		Weather:            req.Weather,
		RecentInteractions: recommend.RecentTail(prof.AI.InteractionHistory),
	})
	meta.GenerateDurationMs = time.Since(start).Milliseconds()
	return recs, meta, nil
}

// Needs returns the needs analysis for a stored profile. ok is false for an
// unknown user.
func (p *Personalizer) Needs(ctx context.Context, userID string) (analyzer.NeedsAnalysis, bool, error) {
	prof, ok, err := p.profiles.Get(ctx, userID)
	if err != nil || !ok {
		return analyzer.NeedsAnalysis{}, false, err
	}
	return analyzer.Analyze(prof), true, nil
}

// Guidance returns cultural guidance for a stored profile. ok is false for
// an unknown user.
func (p *Personalizer) Guidance(ctx context.Context, userID string, c advisor.Context) (advisor.Guidance, bool, error) {
	prof, ok, err := p.profiles.Get(ctx, userID)
	if err != nil || !ok {
		return advisor.Guidance{}, false, err
	}
	return p.advisor.ProvideCulturalGuidance(prof, c), true, nil
}

// Feedback records a verdict on a recommendation and feeds it back into the
// user's AI learning state.
func (p *Personalizer) Feedback(ctx context.Context, f recommend.Feedback) error {
	if f.UserID == "" || f.RecommendationID == "" || f.Rating < 1 || f.Rating > 5 {
		return ErrInvalidFeedback
	}
	if f.At.IsZero() {
		f.At = p.now()
	}

	if _, ok, err := p.profiles.Get(ctx, f.UserID); err != nil {
		return fmt.Errorf("loading profile: %w", err)
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, f.UserID)
	}

	if err := p.engine.RecordFeedback(ctx, f); err != nil {
		return err
	}
	_, _, err := p.profiles.UpdateAILearning(ctx, f.UserID, profile.Interaction{
		Kind:               profile.KindFeedback,
		RecommendationID:   f.RecommendationID,
		RecommendationType: string(f.RecommendationType),
		Rated:              true,
		Satisfied:          f.Satisfied(),
		At:                 f.At,
	})
	if err != nil {
		return fmt.Errorf("updating AI learning: %w", err)
	}

	// Rating an education piece means the user has seen that topic.
	if f.RecommendationType == recommend.TypeEducation && f.Category != "" {
		_, _, err = p.profiles.UpdateAILearning(ctx, f.UserID, profile.Interaction{
			Kind:  profile.KindEducationViewed,
			Topic: f.Category,
			At:    f.At,
		})
		if err != nil {
			return fmt.Errorf("recording education view: %w", err)
		}
	}
	return nil
}
