package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/profile"
)

// --- helpers ---

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	kb, err := knowledge.Load()
	if err != nil {
		t.Fatalf("loading knowledge base: %v", err)
	}
	n := 0
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	})}, opts...)
	return New(kb, opts...)
}

func dryProfile(respect profile.RespectLevel) profile.Profile {
	return profile.Profile{
		ID: "u1",
		Hair: profile.HairProfile{
			Type:     profile.HairCoily,
			Porosity: profile.PorosityHigh,
			Condition: profile.Condition{
				Health: 0.8, Moisture: 0.35, Strength: 0.8, Growth: 0.8,
			},
		},
		Cultural: profile.CulturalProfile{
			Background:   profile.BackgroundGhanaian,
			RespectLevel: respect,
		},
	}
}

func kinds(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = string(r.Type) + ":" + r.Category
	}
	return out
}

func find(recs []Recommendation, typ Type, category string) (Recommendation, bool) {
	for _, r := range recs {
		if r.Type == typ && r.Category == category {
			return r, true
		}
	}
	return Recommendation{}, false
}

type errCatalog struct{}

func (errCatalog) Product(context.Context, string) (Product, bool, error) {
	return Product{}, false, errors.New("catalog down")
}

type errFeedback struct{}

func (errFeedback) RecordFeedback(context.Context, Feedback) error { return errors.New("write failed") }
func (errFeedback) FeedbackStats(context.Context, string, Type) (FeedbackStats, error) {
	return FeedbackStats{}, errors.New("read failed")
}

// --- tests ---

func TestGenerate_DryHairHighRespect(t *testing.T) {
	e := newTestEngine(t)

	recs := e.Generate(context.Background(), Context{Profile: dryProfile(profile.RespectHigh)})

	want := []string{"product:moisture", "remedy:moisture", "routine:daily_routine"}
	if diff := cmp.Diff(want, kinds(recs)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	prod := recs[0]
	if prod.Priority != PriorityHigh {
		t.Errorf("moisture 0.35 should be high priority, got %s", prod.Priority)
	}
	if prod.Title != "Shea Moisture Cream" {
		t.Errorf("title = %q, want catalog name", prod.Title)
	}
	if !strings.Contains(prod.Reasoning, "0.35") {
		t.Errorf("reasoning should cite the score: %q", prod.Reasoning)
	}

	remedy := recs[1]
	if remedy.PracticeID != "shea-butter-sealing" {
		t.Errorf("remedy practice = %q", remedy.PracticeID)
	}
	if !strings.Contains(remedy.Attribution, "Dagomba") {
		t.Errorf("remedy must carry attribution, got %q", remedy.Attribution)
	}
	if len(remedy.Alternatives) == 0 || remedy.Alternatives[0].PracticeID != "neem-scalp-treatment" {
		t.Errorf("expected neem as remedy alternative, got %+v", remedy.Alternatives)
	}
}

func TestGenerate_CulturalKeyOnlyForHighRespect(t *testing.T) {
	e := newTestEngine(t)

	recs := e.Generate(context.Background(), Context{Profile: dryProfile(profile.RespectLow)})

	// Equal priority and confidence: generation order (routine before remedy).
	want := []string{"product:moisture", "routine:daily_routine", "remedy:moisture"}
	if diff := cmp.Diff(want, kinds(recs)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_ConfidenceBounds(t *testing.T) {
	fb := NewMemoryFeedbackStore()
	e := newTestEngine(t, WithFeedbackStore(fb))
	ctx := context.Background()

	full := dryProfile(profile.RespectHigh)
	full.Hair.Texture = profile.TextureCoarse
	full.Hair.Density = profile.DensityThick
	full.Hair.Length = profile.LengthLong
	full.Hair.Concerns = []string{"dryness"}
	full.Hair.Goals = []string{"growth"}
	full.Hair.Condition.LastAssessed = time.Now()
	full.Lifestyle.StressLevel = "high"
	full.AI.PersonalizationLevel = 1
	for _, typ := range []Type{TypeProduct, TypeRoutine, TypeRemedy, TypeEducation, TypeLifestyle} {
		if err := fb.RecordFeedback(ctx, Feedback{UserID: "u1", RecommendationID: "x", RecommendationType: typ, Rating: 5}); err != nil {
			t.Fatal(err)
		}
	}

	empty := profile.Profile{ID: "u2"}

	for name, p := range map[string]profile.Profile{"full": full, "empty": empty} {
		recs := e.Generate(ctx, Context{Profile: p})
		if len(recs) == 0 {
			t.Fatalf("%s: expected recommendations", name)
		}
		for _, r := range recs {
			if r.Confidence < BaseConfidence || r.Confidence > MaxConfidence {
				t.Errorf("%s: %s confidence %v out of bounds", name, r.Type, r.Confidence)
			}
		}
	}

	if got := e.calculateConfidence(ctx, full, TypeProduct); got != MaxConfidence {
		t.Errorf("full profile confidence = %v, want cap %v", got, MaxConfidence)
	}
	if got := e.calculateConfidence(ctx, empty, TypeProduct); got != BaseConfidence {
		t.Errorf("empty profile confidence = %v, want base %v", got, BaseConfidence)
	}
}

func TestCalculateConfidence_FeedbackFallsBackToProfilePatterns(t *testing.T) {
	e := newTestEngine(t, WithFeedbackStore(errFeedback{}))

	p := profile.Profile{ID: "u1", AI: profile.AIProfile{
		FeedbackPatterns: map[string]profile.FeedbackPattern{"routine": {Positive: 1, Total: 2}},
	}}
	if got := e.calculateConfidence(context.Background(), p, TypeRoutine); got != 0.75 {
		t.Errorf("confidence = %v, want 0.75", got)
	}
}

func TestGenerate_StageFailureIsIsolated(t *testing.T) {
	e := newTestEngine(t)
	e.stages = append([]stage{
		{"broken", func(context.Context, *request) ([]Recommendation, error) {
			return nil, errors.New("boom")
		}},
		{"panicky", func(context.Context, *request) ([]Recommendation, error) {
			panic("unexpected")
		}},
	}, e.stages...)

	recs := e.Generate(context.Background(), Context{Profile: dryProfile(profile.RespectHigh)})
	if len(recs) != 3 {
		t.Fatalf("expected the three healthy recommendations, got %v", kinds(recs))
	}
}

func TestGenerate_RoutinesByHealth(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		health       float64
		wantWeekly   bool
		wantPriority Priority
	}{
		{0.9, false, ""},
		{0.6, true, PriorityMedium},
		{0.3, true, PriorityHigh},
	}
	for _, tt := range tests {
		p := dryProfile(profile.RespectHigh)
		p.Hair.Condition.Health = tt.health
		recs := e.Generate(context.Background(), Context{Profile: p})

		if _, ok := find(recs, TypeRoutine, CategoryDailyRoutine); !ok {
			t.Errorf("health %v: daily routine missing", tt.health)
		}
		weekly, ok := find(recs, TypeRoutine, CategoryWeeklyTreatment)
		if ok != tt.wantWeekly {
			t.Errorf("health %v: weekly present = %v, want %v", tt.health, ok, tt.wantWeekly)
		}
		if ok && weekly.Priority != tt.wantPriority {
			t.Errorf("health %v: weekly priority = %s, want %s", tt.health, weekly.Priority, tt.wantPriority)
		}
	}
}

func TestGenerate_GrowthGoalWithoutDeficit(t *testing.T) {
	e := newTestEngine(t)

	p := dryProfile(profile.RespectHigh)
	p.Hair.Goals = []string{"growth"}
	recs := e.Generate(context.Background(), Context{Profile: p})

	growth, ok := find(recs, TypeProduct, CategoryGrowth)
	if !ok {
		t.Fatal("growth goal should trigger a growth product")
	}
	if growth.Priority != PriorityLow {
		t.Errorf("priority = %s, want low", growth.Priority)
	}
}

func TestGenerate_ReasoningUsesWeather(t *testing.T) {
	e := newTestEngine(t)

	recs := e.Generate(context.Background(), Context{
		Profile: dryProfile(profile.RespectHigh),
		Weather: &Weather{Humidity: 0.2, Temperature: 34},
	})
	prod, _ := find(recs, TypeProduct, CategoryMoisture)
	if !strings.Contains(prod.Reasoning, "20%") {
		t.Errorf("reasoning should mention humidity: %q", prod.Reasoning)
	}
}

func educationTopicsOf(recs []Recommendation) []string {
	var topics []string
	for _, r := range recs {
		if r.Type == TypeEducation {
			topics = append(topics, r.Category)
		}
	}
	return topics
}

func TestGenerate_EducationSkipsCoveredTopics(t *testing.T) {
	e := newTestEngine(t)

	p := dryProfile(profile.RespectHigh)
	p.AI.InteractionHistory = []profile.Interaction{
		{Kind: profile.KindEducationViewed, Topic: "moisture"},
	}
	recent := []profile.Interaction{
		{Kind: profile.KindMessage, Topic: "moisture"},
		{Kind: profile.KindMessage, Topic: "routine"},
		{Kind: profile.KindMessage, Topic: "routine"},
		{Kind: profile.KindMessage, Topic: "protective_styling"},
	}
	recs := e.Generate(context.Background(), Context{Profile: p, RecentInteractions: recent})

	// Equal keys keep generation order, which is newest topic first.
	if diff := cmp.Diff([]string{"protective_styling", "routine"}, educationTopicsOf(recs)); diff != "" {
		t.Errorf("education topics (-want +got):\n%s", diff)
	}
}

func TestGenerate_NoEducationForGeneralChat(t *testing.T) {
	e := newTestEngine(t)

	recent := []profile.Interaction{
		{Kind: profile.KindMessage, Topic: "general"},
		{Kind: profile.KindMessage, Topic: "general"},
		{Kind: profile.KindMessage, Topic: "scalp_care"},
	}
	recs := e.Generate(context.Background(), Context{Profile: dryProfile(profile.RespectHigh), RecentInteractions: recent})
	if topics := educationTopicsOf(recs); len(topics) != 0 {
		t.Errorf("education for topics without content: %v", topics)
	}
}

func TestGenerate_EducationPrefersNewestTopic(t *testing.T) {
	e := newTestEngine(t)

	recent := []profile.Interaction{
		{Kind: profile.KindMessage, Topic: "hair_loss"},
		{Kind: profile.KindMessage, Topic: "moisture"},
		{Kind: profile.KindMessage, Topic: "cultural"},
		{Kind: profile.KindMessage, Topic: "product"},
		{Kind: profile.KindMessage, Topic: "routine"},
	}
	recs := e.Generate(context.Background(), Context{Profile: dryProfile(profile.RespectHigh), RecentInteractions: recent})
	if diff := cmp.Diff([]string{"routine", "product", "cultural"}, educationTopicsOf(recs)); diff != "" {
		t.Errorf("education topics (-want +got):\n%s", diff)
	}
}

func TestRecentTail(t *testing.T) {
	history := make([]profile.Interaction, 25)
	for i := range history {
		history[i].Topic = fmt.Sprintf("t%d", i)
	}
	tail := RecentTail(history)
	if len(tail) != RecentWindow || tail[len(tail)-1].Topic != "t24" || tail[0].Topic != "t15" {
		t.Errorf("tail = %v", tail)
	}
	if got := RecentTail(history[:3]); len(got) != 3 {
		t.Errorf("short history tail = %d", len(got))
	}
}

func TestGenerate_SeasonalAdjustment(t *testing.T) {
	e := newTestEngine(t)

	recs := e.Generate(context.Background(), Context{Profile: dryProfile(profile.RespectHigh), Season: SeasonHarmattan})

	prod, _ := find(recs, TypeProduct, CategoryMoisture)
	if prod.SeasonalAdjustment == nil || prod.SeasonalAdjustment.AlternativeProductIDs[0] != "prod-raw-shea-butter" {
		t.Errorf("expected harmattan overlay on moisture product, got %+v", prod.SeasonalAdjustment)
	}
	remedy, _ := find(recs, TypeRemedy, CategoryMoisture)
	if remedy.SeasonalAdjustment == nil || !strings.Contains(remedy.SeasonalAdjustment.ModifiedInstructions[0], "daily") {
		t.Errorf("remedy should use the practice's own harmattan variant, got %+v", remedy.SeasonalAdjustment)
	}

	recs = e.Generate(context.Background(), Context{Profile: dryProfile(profile.RespectHigh), Season: SeasonAutumn})
	for _, r := range recs {
		if r.SeasonalAdjustment != nil {
			t.Errorf("autumn has no overlays, %s got one", r.Category)
		}
	}
}

func TestGenerate_CatalogFailureFallsBackToID(t *testing.T) {
	e := newTestEngine(t, WithCatalog(errCatalog{}))

	recs := e.Generate(context.Background(), Context{Profile: dryProfile(profile.RespectHigh)})
	prod, ok := find(recs, TypeProduct, CategoryMoisture)
	if !ok {
		t.Fatal("catalog failure must not drop the product")
	}
	if prod.Title != "prod-shea-moisture-cream" {
		t.Errorf("title = %q, want product id", prod.Title)
	}
}

func TestGenerate_AssignsIDs(t *testing.T) {
	e := newTestEngine(t)

	recs := e.Generate(context.Background(), Context{Profile: dryProfile(profile.RespectHigh)})
	seen := make(map[string]bool)
	for _, r := range recs {
		if r.ID == "" || seen[r.ID] {
			t.Errorf("bad or duplicate id %q", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestRecordFeedback(t *testing.T) {
	fb := NewMemoryFeedbackStore()
	e := newTestEngine(t, WithFeedbackStore(fb))
	ctx := context.Background()

	if err := e.RecordFeedback(ctx, Feedback{UserID: "u1"}); err == nil {
		t.Error("expected error for missing recommendation id")
	}
	for _, rating := range []int{5, 2} {
		if err := e.RecordFeedback(ctx, Feedback{UserID: "u1", RecommendationID: "r1", RecommendationType: TypeRemedy, Rating: rating}); err != nil {
			t.Fatalf("RecordFeedback: %v", err)
		}
	}
	st, _ := fb.FeedbackStats(ctx, "u1", TypeRemedy)
	if st != (FeedbackStats{Positive: 1, Total: 2}) {
		t.Errorf("stats = %+v", st)
	}

	bad := newTestEngine(t, WithFeedbackStore(errFeedback{}))
	if err := bad.RecordFeedback(ctx, Feedback{UserID: "u1", RecommendationID: "r1"}); err == nil {
		t.Error("expected store error to propagate")
	}
}

func TestParseSeason(t *testing.T) {
	if s, ok := ParseSeason(" Harmattan "); !ok || s != SeasonHarmattan {
		t.Errorf("got %q, %v", s, ok)
	}
	if s, ok := ParseSeason("fall"); !ok || s != SeasonAutumn {
		t.Errorf("fall should map to autumn, got %q", s)
	}
	if _, ok := ParseSeason("monsoon"); ok {
		t.Error("monsoon is not a known season")
	}
}
