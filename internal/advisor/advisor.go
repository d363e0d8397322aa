// Package advisor decides which traditional and cultural content a user sees
// and how it must be framed. Every practice it surfaces carries attribution.
package advisor

import (
	"log/slog"
	"strings"

	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/profile"
)

// Bundle identifies a group of cultural recommendations.
type Bundle string

const (
	BundleTraditionalFirst Bundle = "traditional_first"
	BundleCulturalHeritage Bundle = "cultural_heritage"
)

type Severity string

const (
	SeverityCritical  Severity = "critical"
	SeverityImportant Severity = "important"
	SeverityAdvisory  Severity = "advisory"
)

const bundleSize = 3

// SurfacedPractice is a practice prepared for user-facing output.
type SurfacedPractice struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Origin          string `json:"origin"`
	Attribution     string `json:"attribution"`
	SeasonalVariant string `json:"seasonal_variant,omitempty"`
	Sacred          bool   `json:"sacred,omitempty"`
}

type BundleRecommendation struct {
	Bundle    Bundle             `json:"bundle"`
	Title     string             `json:"title"`
	Rationale string             `json:"rationale"`
	Practices []SurfacedPractice `json:"practices"`
}

type Consideration struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Detail   string   `json:"detail"`
}

// Context narrows guidance to a topic and season. Both are optional.
type Context struct {
	Topic  string `json:"topic,omitempty"`
	Season string `json:"season,omitempty"`
}

type Guidance struct {
	Recommendations       []BundleRecommendation `json:"recommendations"`
	RespectConsiderations []Consideration        `json:"respect_considerations"`
	Proverb               *knowledge.Proverb     `json:"proverb,omitempty"`
	SeasonalNotes         []string               `json:"seasonal_notes,omitempty"`
	Education             Education              `json:"education"`
}

// Advisor composes cultural guidance from the knowledge base.
type Advisor struct {
	kb *knowledge.Store
}

func New(kb *knowledge.Store) *Advisor {
	return &Advisor{kb: kb}
}

// ProvideCulturalGuidance builds guidance for p. The traditional-first bundle
// requires a high respect level and the cultural-heritage bundle requires a
// Ghanaian or West African background; the two gates are independent.
func (a *Advisor) ProvideCulturalGuidance(p profile.Profile, c Context) Guidance {
	var g Guidance

	if p.Cultural.RespectLevel == profile.RespectHigh {
		if b, ok := a.traditionalFirst(c); ok {
			g.Recommendations = append(g.Recommendations, b)
		}
	}
	if heritageBundleFor(p.Cultural.Background) {
		if b, ok := a.culturalHeritage(p.Cultural.Background, c); ok {
			g.Recommendations = append(g.Recommendations, b)
		}
	}

	g.RespectConsiderations = respectConsiderations(p.Cultural.RespectLevel)

	topic := c.Topic
	if topic == "" {
		topic = "cultural"
	}
	if pv, ok := a.kb.ProverbFor(topic); ok {
		g.Proverb = &pv
	}
	if c.Season != "" {
		g.SeasonalNotes = a.kb.SeasonalNotes(c.Season)
	}
	g.Education = a.GetCulturalEducation(topic, levelForAdoption(len(p.Cultural.TraditionalPractices)))

	a.selfCheck(g)
	return g
}

func heritageBundleFor(b profile.Background) bool {
	return b == profile.BackgroundGhanaian || b == profile.BackgroundWestAfrican
}

func (a *Advisor) traditionalFirst(c Context) (BundleRecommendation, bool) {
	candidates := a.practicesForTopic(c.Topic)
	practices := a.surface(candidates, c.Season, bundleSize)
	if len(practices) == 0 {
		return BundleRecommendation{}, false
	}
	return BundleRecommendation{
		Bundle:    BundleTraditionalFirst,
		Title:     "Start with time-tested heritage care",
		Rationale: "These practices are shared with permission from the communities that keep them and are offered before commercial alternatives.",
		Practices: practices,
	}, true
}

func (a *Advisor) culturalHeritage(bg profile.Background, c Context) (BundleRecommendation, bool) {
	practices := a.surface(a.kb.ForRegion(string(bg)), c.Season, bundleSize)
	if len(practices) == 0 {
		return BundleRecommendation{}, false
	}
	return BundleRecommendation{
		Bundle:    BundleCulturalHeritage,
		Title:     "Practices from your heritage",
		Rationale: "Hair care rooted in " + heritageLabel(bg) + " communities, credited to their knowledge keepers.",
		Practices: practices,
	}, true
}

// practicesForTopic returns practices addressing topic first, then the rest
// of the knowledge base in load order.
func (a *Advisor) practicesForTopic(topic string) []knowledge.Practice {
	all := a.kb.Practices()
	if topic == "" {
		return all
	}
	var matched, rest []knowledge.Practice
	for _, p := range all {
		if addresses(p, topic) {
			matched = append(matched, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(matched, rest...)
}

func addresses(p knowledge.Practice, topic string) bool {
	topic = strings.ToLower(topic)
	for _, c := range p.Concerns {
		if c == topic {
			return true
		}
	}
	return strings.Contains(strings.ToLower(p.Name), topic)
}

// surface attaches attribution to up to limit practices. A practice whose
// attribution cannot be generated is never shown.
func (a *Advisor) surface(practices []knowledge.Practice, season string, limit int) []SurfacedPractice {
	var out []SurfacedPractice
	for _, p := range practices {
		if len(out) == limit {
			break
		}
		attr, err := a.kb.GenerateProperAttribution(p.ID)
		if err != nil {
			slog.Warn("advisor: attribution failed, dropping practice", "practice", p.ID, "error", err)
			continue
		}
		out = append(out, SurfacedPractice{
			ID:              p.ID,
			Name:            p.Name,
			Description:     p.Description,
			Origin:          p.Origin,
			Attribution:     attr,
			SeasonalVariant: p.Usage.Seasonal[strings.ToLower(season)],
			Sacred:          p.Sacred,
		})
	}
	return out
}

func respectConsiderations(level profile.RespectLevel) []Consideration {
	var out []Consideration
	if level == profile.RespectHigh {
		out = append(out, Consideration{
			Severity: SeverityCritical,
			Title:    "Sacred practices",
			Detail:   "Some practices carry ceremonial meaning. Approach them with respect, learn their context from the community and do not reproduce ceremonial patterns for commercial use.",
		})
	}
	out = append(out, Consideration{
		Severity: SeverityImportant,
		Title:    "Honor knowledge originators",
		Detail:   "Credit the communities and elders who shared each practice, and prefer products whose proceeds support them.",
	})
	if level != profile.RespectHigh {
		out = append(out, Consideration{
			Severity: SeverityAdvisory,
			Title:    "Learn before adopting",
			Detail:   "Read the history of a practice and the permissions attached to it before making it part of your routine.",
		})
	}
	return out
}

func heritageLabel(bg profile.Background) string {
	if bg == profile.BackgroundGhanaian {
		return "Ghanaian"
	}
	return "West African"
}

// selfCheck runs the sensitivity validator over generated framing text. The
// text is static, so a failure means the templates need fixing.
func (a *Advisor) selfCheck(g Guidance) {
	var parts []string
	for _, r := range g.Recommendations {
		parts = append(parts, r.Title, r.Rationale)
	}
	for _, c := range g.RespectConsiderations {
		parts = append(parts, c.Title, c.Detail)
	}
	if res := a.kb.ValidateCulturalSensitivity(strings.Join(parts, ". ")); !res.IsAppropriate {
		slog.Warn("advisor: guidance failed sensitivity check", "concerns", res.Concerns)
	}
}
