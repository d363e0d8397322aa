// Package analyzer turns a user profile into a structured hair-needs analysis.
// The analysis is a pure function of the profile: no clock, no randomness.
package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/kalambet/tresses/internal/profile"
)

// Concern types derived from condition scores, in tie-break priority order.
const (
	ConcernMoisture = "moisture"
	ConcernStrength = "strength"
	ConcernGrowth   = "growth"
)

// Cutoffs below which a condition score raises a primary concern.
const (
	MoistureThreshold = 0.6
	StrengthThreshold = 0.6
	GrowthThreshold   = 0.5
)

type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Concern is a single identified need.
type Concern struct {
	Type        string  `json:"type"`
	Severity    float64 `json:"severity"`
	Level       Level   `json:"level"`
	Source      string  `json:"source"` // condition, lifestyle, declared
	Description string  `json:"description"`
}

// Priorities buckets concern and goal identifiers by urgency.
type Priorities struct {
	Immediate []string `json:"immediate"`
	ShortTerm []string `json:"short_term"`
	LongTerm  []string `json:"long_term"`
}

// NeedsAnalysis is the structured output of Analyze.
type NeedsAnalysis struct {
	PrimaryConcerns        []Concern  `json:"primary_concerns"`
	SecondaryConcerns      []Concern  `json:"secondary_concerns"`
	CulturalConsiderations []string   `json:"cultural_considerations"`
	LifestyleImpacts       []string   `json:"lifestyle_impacts"`
	Priorities             Priorities `json:"priorities"`
	ConfidenceScore        float64    `json:"confidence_score"`
}

// TopConcern returns the highest-severity primary concern, if any.
func (n NeedsAnalysis) TopConcern() (Concern, bool) {
	if len(n.PrimaryConcerns) == 0 {
		return Concern{}, false
	}
	return n.PrimaryConcerns[0], true
}

var concernRank = map[string]int{
	ConcernMoisture: 0,
	ConcernStrength: 1,
	ConcernGrowth:   2,
}

// Analyze computes the needs analysis for p.
func Analyze(p profile.Profile) NeedsAnalysis {
	primary := primaryConcerns(p.Hair.Condition)
	out := NeedsAnalysis{
		PrimaryConcerns:        primary,
		SecondaryConcerns:      secondaryConcerns(p, primary),
		CulturalConsiderations: culturalConsiderations(p.Cultural),
		LifestyleImpacts:       lifestyleImpacts(p.Lifestyle),
		ConfidenceScore:        profile.Completeness(p),
	}
	out.Priorities = prioritize(out, p.Hair.Goals)
	return out
}

func primaryConcerns(c profile.Condition) []Concern {
	var out []Concern
	if c.Moisture < MoistureThreshold {
		out = append(out, conditionConcern(ConcernMoisture, c.Moisture))
	}
	if c.Strength < StrengthThreshold {
		out = append(out, conditionConcern(ConcernStrength, c.Strength))
	}
	if c.Growth < GrowthThreshold {
		out = append(out, conditionConcern(ConcernGrowth, c.Growth))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return concernRank[out[i].Type] < concernRank[out[j].Type]
	})
	return out
}

func conditionConcern(kind string, score float64) Concern {
	sev := round2(1 - score)
	return Concern{
		Type:        kind,
		Severity:    sev,
		Level:       levelFor(sev),
		Source:      "condition",
		Description: fmt.Sprintf("%s score %.2f is below the healthy range", kind, score),
	}
}

func secondaryConcerns(p profile.Profile, primary []Concern) []Concern {
	var out []Concern
	add := func(kind string, sev float64, desc string) {
		out = append(out, Concern{Type: kind, Severity: sev, Level: levelFor(sev), Source: "lifestyle", Description: desc})
	}

	cl := p.Lifestyle.Climate
	if cl.Region != "" || cl.Humidity > 0 {
		switch {
		case cl.Humidity < 0.3:
			add("environmental_dryness", 0.5, "low ambient humidity draws moisture from the hair shaft")
		case cl.Humidity > 0.8:
			add("humidity_frizz", 0.3, "high humidity swells the cuticle and causes frizz")
		}
	}
	if cl.Temperature >= 30 {
		add("heat_exposure", 0.4, "sustained heat and sun exposure weaken the cuticle")
	}
	if p.Lifestyle.StressLevel == "high" {
		add("stress_shedding", 0.5, "high stress is associated with increased shedding")
	}
	if p.Lifestyle.SleepPattern == "poor" {
		add("recovery", 0.2, "poor sleep slows scalp recovery")
	}

	seen := make(map[string]bool, len(primary))
	for _, c := range primary {
		seen[c.Type] = true
	}
	for _, declared := range p.Hair.Concerns {
		if seen[declared] {
			continue
		}
		seen[declared] = true
		out = append(out, Concern{
			Type: declared, Severity: 0.3, Level: LevelMedium, Source: "declared",
			Description: "reported by the user",
		})
	}
	return out
}

// culturalConsiderations is hard-gated: nothing is emitted unless the user
// holds a high respect level or a recognized heritage background.
func culturalConsiderations(c profile.CulturalProfile) []string {
	if c.RespectLevel != profile.RespectHigh && !c.Background.HeritageGroup() {
		return nil
	}
	out := []string{"honor the origins of any traditional practice that is suggested"}
	if c.Background.HeritageGroup() {
		out = append(out, fmt.Sprintf("prefer practices rooted in %s heritage where they fit", humanize(string(c.Background))))
	}
	if len(c.TraditionalPractices) > 0 {
		out = append(out, "build on practices already in use before introducing new ones")
	}
	if c.Language != "" && c.Language != "en" {
		out = append(out, fmt.Sprintf("offer explanations in %s where possible", c.Language))
	}
	return out
}

func lifestyleImpacts(l profile.LifestyleFactors) []string {
	var out []string
	switch l.ExerciseFrequency {
	case "daily":
		out = append(out, "daily exercise means frequent sweat; favour gentle co-washing")
	case "weekly":
		out = append(out, "weekly exercise fits a mid-week refresh")
	}
	if l.WorkEnvironment == "outdoor" {
		out = append(out, "outdoor work calls for UV and wind protection")
	}
	if l.StressLevel == "high" {
		out = append(out, "stress management supports scalp health")
	}
	if l.Diet != "" {
		out = append(out, fmt.Sprintf("%s diet informs internal nutrition advice", l.Diet))
	}
	return out
}

func prioritize(n NeedsAnalysis, goals []string) Priorities {
	var pr Priorities
	for _, c := range n.PrimaryConcerns {
		if c.Level == LevelHigh {
			pr.Immediate = append(pr.Immediate, c.Type)
		} else {
			pr.ShortTerm = append(pr.ShortTerm, c.Type)
		}
	}
	for _, c := range n.SecondaryConcerns {
		pr.ShortTerm = append(pr.ShortTerm, c.Type)
	}
	pr.LongTerm = append(pr.LongTerm, goals...)
	return pr
}

func levelFor(sev float64) Level {
	switch {
	case sev >= 0.5:
		return LevelHigh
	case sev >= 0.3:
		return LevelMedium
	default:
		return LevelLow
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func humanize(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == '_' {
			b[i] = ' '
		}
	}
	return string(b)
}
