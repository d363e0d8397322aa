package analyzer

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/tresses/internal/profile"
)

func baseProfile() profile.Profile {
	return profile.Profile{
		ID: "u1",
		Hair: profile.HairProfile{
			Type:      profile.HairCoily,
			Texture:   profile.TextureCoarse,
			Porosity:  profile.PorosityHigh,
			Density:   profile.DensityThick,
			Length:    profile.LengthMedium,
			Condition: profile.Condition{Health: 0.8, Moisture: 0.8, Strength: 0.8, Growth: 0.8},
		},
		Cultural: profile.CulturalProfile{
			Background:   profile.BackgroundNotSpecified,
			RespectLevel: profile.RespectHigh,
		},
	}
}

func TestAnalyze_ScenarioMoistureOnly(t *testing.T) {
	p := baseProfile()
	p.Hair.Condition.Moisture = 0.4

	got := Analyze(p)

	if len(got.PrimaryConcerns) != 1 {
		t.Fatalf("primary concerns = %+v, want exactly one", got.PrimaryConcerns)
	}
	c := got.PrimaryConcerns[0]
	if c.Type != ConcernMoisture {
		t.Errorf("type = %q, want moisture", c.Type)
	}
	if c.Severity != 0.6 {
		t.Errorf("severity = %v, want 0.6", c.Severity)
	}
	if c.Level != LevelHigh {
		t.Errorf("level = %q, want high", c.Level)
	}
	if len(got.CulturalConsiderations) == 0 {
		t.Error("high respect level should produce cultural considerations")
	}
}

func TestAnalyze_SortBySeverityThenPriority(t *testing.T) {
	p := baseProfile()
	p.Hair.Condition.Moisture = 0.3
	p.Hair.Condition.Strength = 0.3
	p.Hair.Condition.Growth = 0.1

	got := Analyze(p)

	var order []string
	for _, c := range got.PrimaryConcerns {
		order = append(order, c.Type)
	}
	want := []string{ConcernGrowth, ConcernMoisture, ConcernStrength}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("concern order mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_TieBreakOrder(t *testing.T) {
	p := baseProfile()
	p.Hair.Condition.Growth = 0.45
	p.Hair.Condition.Strength = 0.45
	p.Hair.Condition.Moisture = 0.45

	got := Analyze(p)
	want := []string{ConcernMoisture, ConcernStrength, ConcernGrowth}
	for i, c := range got.PrimaryConcerns {
		if c.Type != want[i] {
			t.Errorf("position %d = %q, want %q", i, c.Type, want[i])
		}
	}
}

func TestAnalyze_CulturalGate(t *testing.T) {
	p := baseProfile()
	p.Cultural.RespectLevel = profile.RespectLow

	if got := Analyze(p); len(got.CulturalConsiderations) != 0 {
		t.Errorf("low respect, unspecified background: got %v, want none", got.CulturalConsiderations)
	}

	p.Cultural.Background = profile.BackgroundGhanaian
	if got := Analyze(p); len(got.CulturalConsiderations) == 0 {
		t.Error("heritage background should open the cultural gate")
	}
}

func TestAnalyze_SecondaryFromLifestyle(t *testing.T) {
	p := baseProfile()
	p.Lifestyle = profile.LifestyleFactors{
		Climate:     profile.Climate{Region: "Tamale", Humidity: 0.2, Temperature: 34},
		StressLevel: "high",
	}
	p.Hair.Concerns = []string{"breakage"}

	got := Analyze(p)

	types := map[string]bool{}
	for _, c := range got.SecondaryConcerns {
		types[c.Type] = true
	}
	for _, want := range []string{"environmental_dryness", "heat_exposure", "stress_shedding", "breakage"} {
		if !types[want] {
			t.Errorf("missing secondary concern %q in %+v", want, got.SecondaryConcerns)
		}
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	p := baseProfile()
	p.Hair.Condition.Moisture = 0.2
	p.Hair.Condition.LastAssessed = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.Hair.Goals = []string{"length_retention"}
	p.Lifestyle.StressLevel = "high"

	first := Analyze(p)
	second := Analyze(p)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Analyze not idempotent (-first +second):\n%s", diff)
	}
}

func TestAnalyze_Priorities(t *testing.T) {
	p := baseProfile()
	p.Hair.Condition.Moisture = 0.3 // severity 0.7, high
	p.Hair.Condition.Growth = 0.4   // severity 0.6, high
	p.Hair.Condition.Strength = 0.55
	p.Hair.Goals = []string{"length_retention"}

	got := Analyze(p).Priorities
	if diff := cmp.Diff([]string{ConcernMoisture, ConcernGrowth}, got.Immediate); diff != "" {
		t.Errorf("immediate mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{ConcernStrength}, got.ShortTerm); diff != "" {
		t.Errorf("short term mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"length_retention"}, got.LongTerm); diff != "" {
		t.Errorf("long term mismatch (-want +got):\n%s", diff)
	}
}
