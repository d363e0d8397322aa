// Package composer assembles conversational replies from an intent, the
// user's profile and the recommendations produced for this turn.
package composer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/tresses/internal/intent"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/metrics"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/recommend"
)

const (
	defaultMaxMessageChars = 1200

	// DefaultConfidence is used when a reply carries no recommendation.
	DefaultConfidence = 0.7
	// FallbackConfidence marks the human-escalation reply.
	FallbackConfidence = 0.5
)

type Style string

const (
	StyleConcise  Style = "concise"
	StyleDetailed Style = "detailed"
)

type Suggestion struct {
	Action string `json:"action"`
	Label  string `json:"label"`
}

// CulturalInsight is extra narrative about a surfaced practice, delivered as
// a delayed follow-up.
type CulturalInsight struct {
	PracticeID   string `json:"practice_id"`
	Title        string `json:"title"`
	Significance string `json:"significance"`
	History      string `json:"history"`
	Attribution  string `json:"attribution"`
}

// Response is what the conversation transport renders.
type Response struct {
	Message         string                     `json:"message"`
	Suggestions     []Suggestion               `json:"suggestions"`
	Confidence      float64                    `json:"confidence"`
	Intent          intent.Type                `json:"intent,omitempty"`
	PracticeID      string                     `json:"practice_id,omitempty"`
	Attribution     string                     `json:"attribution,omitempty"`
	Recommendations []recommend.Recommendation `json:"recommendations,omitempty"`
	CulturalInsight *CulturalInsight           `json:"cultural_insight,omitempty"`
	Escalated       bool                       `json:"escalated,omitempty"`
}

// Composer builds replies. Every practice named in a reply is attributed.
type Composer struct {
	kb              *knowledge.Store
	MaxMessageChars int
}

// New creates a Composer. If maxMessageChars <= 0 the default (1200) is used.
func New(kb *knowledge.Store, maxMessageChars int) *Composer {
	if maxMessageChars <= 0 {
		maxMessageChars = defaultMaxMessageChars
	}
	return &Composer{kb: kb, MaxMessageChars: maxMessageChars}
}

// Request is the input for one reply.
type Request struct {
	Intent          intent.Intent
	Profile         profile.Profile
	Recommendations []recommend.Recommendation
	Style           Style
}

// Compose renders the template for req.Intent. An error means the reply
// could not be built; callers fall back to Fallback.
func (c *Composer) Compose(req Request) (Response, error) {
	t, ok := templates[req.Intent.Type]
	if !ok {
		t = templates[intent.GeneralInquiry]
	}

	practiceID := t.practiceID
	if t.pickPractice != nil {
		practiceID = t.pickPractice(c.kb, req.Profile)
	}

	var sections []string
	sections = append(sections, t.opening)

	resp := Response{
		Suggestions: append([]Suggestion(nil), t.suggestions...),
		Confidence:  DefaultConfidence,
		Intent:      req.Intent.Type,
	}

	if practiceID != "" {
		pr, ok := c.kb.Practice(practiceID)
		if !ok {
			return Response{}, fmt.Errorf("template practice %q: %w", practiceID, knowledge.ErrPracticeNotFound)
		}
		attribution, err := c.kb.GenerateProperAttribution(practiceID)
		if err != nil {
			return Response{}, fmt.Errorf("attributing %s: %w", practiceID, err)
		}
		resp.PracticeID = practiceID
		resp.Attribution = attribution
		sections = append(sections, t.practiceLine(pr))
		if insightAllowed(req.Profile.Cultural) && pr.RichContext() {
			resp.CulturalInsight = &CulturalInsight{
				PracticeID:   pr.ID,
				Title:        "The story behind " + pr.Name,
				Significance: pr.CulturalSignificance,
				History:      pr.History,
				Attribution:  attribution,
			}
		}
	}

	if rec, ok := pickRecommendation(req.Recommendations, intent.Topic(req.Intent.Type)); ok {
		resp.Confidence = rec.Confidence
		resp.Recommendations = topN(req.Recommendations, 3)
		sections = append(sections, personalLine(rec, req.Style))
	}
	if resp.Attribution != "" {
		sections = append(sections, resp.Attribution)
	}

	resp.Message = c.fit(sections)
	c.check(resp.Message)
	return resp, nil
}

// Fallback is the terminal reply used when composition fails.
func Fallback() Response {
	return Response{
		Message:     "I'm sorry, I'm having trouble putting together a good answer right now. Would you like to talk to someone from our support team?",
		Suggestions: []Suggestion{{Action: "talk_to_human", Label: "Talk to human support"}},
		Confidence:  FallbackConfidence,
		Escalated:   true,
	}
}

// insightAllowed gates cultural narrative the same way cultural
// considerations are gated.
func insightAllowed(cp profile.CulturalProfile) bool {
	return cp.RespectLevel == profile.RespectHigh || cp.Background.HeritageGroup()
}

// pickRecommendation prefers a recommendation in the intent's own category,
// then the top-ranked one.
func pickRecommendation(recs []recommend.Recommendation, topic string) (recommend.Recommendation, bool) {
	if len(recs) == 0 {
		return recommend.Recommendation{}, false
	}
	for _, r := range recs {
		if r.Category == topic {
			return r, true
		}
	}
	return recs[0], true
}

func personalLine(rec recommend.Recommendation, style Style) string {
	if style == StyleDetailed {
		return fmt.Sprintf("Based on your profile, I'd start with %s. %s Expected: %s (%s).",
			rec.Title, rec.Reasoning, rec.ExpectedOutcome, rec.Timeline)
	}
	return fmt.Sprintf("Based on your profile, I'd start with %s.", rec.Title)
}

func topN(recs []recommend.Recommendation, n int) []recommend.Recommendation {
	if len(recs) <= n {
		return recs
	}
	return recs[:n]
}

// fit joins sections in order, dropping middle sections that would exceed
// the message budget. The first and last sections are always kept, so the
// attribution goes last.
func (c *Composer) fit(sections []string) string {
	if len(sections) == 0 {
		return ""
	}
	out := sections[0]
	last := len(sections) - 1
	for i, s := range sections[1:] {
		idx := i + 1
		if idx == last || len(out)+1+len(s) <= c.MaxMessageChars {
			out += " " + s
		}
	}
	return out
}

func (c *Composer) check(msg string) {
	res := c.kb.ValidateCulturalSensitivity(msg)
	metrics.RecordSensitivityCheck(res.IsAppropriate)
	if !res.IsAppropriate {
		slog.Warn("composer: reply failed sensitivity check", "concerns", res.Concerns)
	}
}

// joinLower is used by templates to name a practice's ingredients.
func joinLower(ings []knowledge.Ingredient) string {
	names := make([]string, len(ings))
	for i, ing := range ings {
		names[i] = strings.ToLower(ing.Name)
	}
	return strings.Join(names, " and ")
}
