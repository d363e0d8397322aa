package recommend

import (
	"context"
	"strings"
	"time"

	"github.com/kalambet/tresses/internal/profile"
)

// Type is the kind of a recommendation.
type Type string

const (
	TypeProduct   Type = "product"
	TypeRoutine   Type = "routine"
	TypeRemedy    Type = "remedy"
	TypeEducation Type = "education"
	TypeLifestyle Type = "lifestyle"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities for sorting; lower ranks first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	}
	return 2
}

type Season string

const (
	SeasonSpring    Season = "spring"
	SeasonSummer    Season = "summer"
	SeasonAutumn    Season = "autumn"
	SeasonWinter    Season = "winter"
	SeasonHarmattan Season = "harmattan"
	SeasonDry       Season = "dry"
	SeasonRainy     Season = "rainy"
)

// ParseSeason returns the season named by s and whether it is known.
func ParseSeason(s string) (Season, bool) {
	switch v := Season(strings.ToLower(strings.TrimSpace(s))); v {
	case SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter, SeasonHarmattan, SeasonDry, SeasonRainy:
		return v, true
	case "fall":
		return SeasonAutumn, true
	}
	return "", false
}

// Alternative is a secondary option attached to a recommendation.
type Alternative struct {
	Title             string  `json:"title"`
	ProductID         string  `json:"product_id,omitempty"`
	PracticeID        string  `json:"practice_id,omitempty"`
	Confidence        float64 `json:"confidence"`
	CulturalRelevance float64 `json:"cultural_relevance"`
}

type SeasonalAdjustment struct {
	Season                Season   `json:"season"`
	Reason                string   `json:"reason"`
	ModifiedInstructions  []string `json:"modified_instructions"`
	AlternativeProductIDs []string `json:"alternative_product_ids,omitempty"`
}

// Recommendation is a single scored, explained suggestion. It is created
// fresh for each request and never stored.
type Recommendation struct {
	ID                 string              `json:"id"`
	Type               Type                `json:"type"`
	Category           string              `json:"category"`
	Title              string              `json:"title"`
	Confidence         float64             `json:"confidence"`
	Reasoning          string              `json:"reasoning"`
	CulturalContext    string              `json:"cultural_context,omitempty"`
	Attribution        string              `json:"attribution,omitempty"`
	Alternatives       []Alternative       `json:"alternatives,omitempty"`
	ExpectedOutcome    string              `json:"expected_outcome"`
	Timeline           string              `json:"timeline"`
	Priority           Priority            `json:"priority"`
	ProductIDs         []string            `json:"product_ids,omitempty"`
	PracticeID         string              `json:"practice_id,omitempty"`
	Steps              []string            `json:"steps,omitempty"`
	SeasonalAdjustment *SeasonalAdjustment `json:"seasonal_adjustment,omitempty"`
}

type Weather struct {
	Humidity    float64 `json:"humidity"`    // relative, 0..1
	Temperature float64 `json:"temperature"` // degrees Celsius
}

// Context is everything the engine needs for one request.
// RecentInteractions is oldest first; see RecentTail.
type Context struct {
	Profile            profile.Profile
	Season             Season
	Weather            *Weather
	RecentInteractions []profile.Interaction
}

// RecentWindow is how many interactions count as recent.
const RecentWindow = 10

// RecentTail returns the last RecentWindow interactions of history.
func RecentTail(history []profile.Interaction) []profile.Interaction {
	return history[max(len(history)-RecentWindow, 0):]
}

type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// Catalog resolves display names for product ids. Product identity is
// otherwise opaque to the engine.
type Catalog interface {
	Product(ctx context.Context, id string) (Product, bool, error)
}

// Feedback is a user's verdict on a recommendation.
type Feedback struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	RecommendationID   string    `json:"recommendation_id"`
	RecommendationType Type      `json:"recommendation_type"`
	Category           string    `json:"category,omitempty"`
	Rating             int       `json:"rating"` // 1..5
	Comment            string    `json:"comment,omitempty"`
	At                 time.Time `json:"at"`
}

// Satisfied reports whether the feedback counts as positive.
func (f Feedback) Satisfied() bool { return f.Rating >= 4 }

type FeedbackStats struct {
	Positive int `json:"positive"`
	Total    int `json:"total"`
}

// Rate is the share of positive feedback, or 0 with no feedback.
func (s FeedbackStats) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Positive) / float64(s.Total)
}

// FeedbackStore keeps feedback history per user and recommendation type.
type FeedbackStore interface {
	RecordFeedback(ctx context.Context, f Feedback) error
	FeedbackStats(ctx context.Context, userID string, t Type) (FeedbackStats, error)
}
