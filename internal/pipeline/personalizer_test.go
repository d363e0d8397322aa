package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/kalambet/tresses/internal/advisor"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/recommend"
)

type fixture struct {
	p        *Personalizer
	profiles *profile.Manager
	feedback *recommend.MemoryFeedbackStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	kb, err := knowledge.Load()
	if err != nil {
		t.Fatalf("loading knowledge base: %v", err)
	}
	profiles := profile.NewManager(profile.NewMemoryStore())
	fb := recommend.NewMemoryFeedbackStore()
	eng := recommend.New(kb, recommend.WithFeedbackStore(fb), recommend.WithCatalog(recommend.DefaultProducts))
	return fixture{p: NewPersonalizer(profiles, eng, advisor.New(kb)), profiles: profiles, feedback: fb}
}

func (f fixture) createDryProfile(t *testing.T, id string) {
	t.Helper()
	_, err := f.profiles.Create(context.Background(), id, profile.Patch{
		Hair: &profile.HairProfile{
			Condition: profile.Condition{Health: 0.5, Moisture: 0.4, Strength: 0.8, Growth: 0.8},
		},
		Cultural: &profile.CulturalProfile{Background: profile.BackgroundGhanaian, RespectLevel: profile.RespectHigh},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestRecommend_UnknownUser(t *testing.T) {
	f := newFixture(t)

	recs, meta, err := f.p.Recommend(context.Background(), Request{UserID: "ghost"})
	if err != nil {
		t.Fatalf("unknown user must not be an error: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("recs = %v, want empty non-nil list", recs)
	}
	if meta.ProfileFound {
		t.Error("ProfileFound = true for unknown user")
	}
}

func TestRecommend_FullPipeline(t *testing.T) {
	f := newFixture(t)
	f.createDryProfile(t, "u1")

	recs, meta, err := f.p.Recommend(context.Background(), Request{UserID: "u1", Season: recommend.SeasonHarmattan})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("expected recommendations for a dry profile")
	}
	if !meta.ProfileFound || meta.TopConcern != "moisture" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.NeedsConfidence <= 0 {
		t.Errorf("needs confidence = %v", meta.NeedsConfidence)
	}
	for _, r := range recs {
		if r.Confidence < recommend.BaseConfidence || r.Confidence > recommend.MaxConfidence {
			t.Errorf("%s confidence %v out of bounds", r.Title, r.Confidence)
		}
		if r.Type == recommend.TypeRemedy && r.Attribution == "" {
			t.Errorf("remedy %s has no attribution", r.Title)
		}
	}
}

func TestNeedsAndGuidance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, ok, err := f.p.Needs(ctx, "ghost"); ok || err != nil {
		t.Errorf("Needs(ghost) = %v, %v", ok, err)
	}
	if _, ok, err := f.p.Guidance(ctx, "ghost", advisor.Context{}); ok || err != nil {
		t.Errorf("Guidance(ghost) = %v, %v", ok, err)
	}

	f.createDryProfile(t, "u1")
	needs, ok, err := f.p.Needs(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("Needs = %v, %v", ok, err)
	}
	top, _ := needs.TopConcern()
	if top.Type != "moisture" || top.Severity != 0.6 {
		t.Errorf("top concern = %+v, want moisture 0.6", top)
	}

	g, ok, err := f.p.Guidance(ctx, "u1", advisor.Context{Topic: "moisture", Season: "harmattan"})
	if err != nil || !ok {
		t.Fatalf("Guidance = %v, %v", ok, err)
	}
	if len(g.Recommendations) != 2 {
		t.Errorf("bundles = %d, want traditional-first and cultural-heritage", len(g.Recommendations))
	}
}

func TestFeedback_UpdatesStoreAndLearning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createDryProfile(t, "u1")

	for _, rating := range []int{5, 4, 1} {
		err := f.p.Feedback(ctx, recommend.Feedback{UserID: "u1", RecommendationID: "rec-1", RecommendationType: recommend.TypeProduct, Rating: rating})
		if err != nil {
			t.Fatalf("Feedback(%d): %v", rating, err)
		}
	}

	st, err := f.feedback.FeedbackStats(ctx, "u1", recommend.TypeProduct)
	if err != nil {
		t.Fatalf("FeedbackStats: %v", err)
	}
	if st.Total != 3 || st.Positive != 2 {
		t.Errorf("stats = %+v, want 2/3", st)
	}

	p, _, _ := f.profiles.Get(ctx, "u1")
	fp := p.AI.FeedbackPatterns["product"]
	if fp.Total != 3 || fp.Positive != 2 {
		t.Errorf("feedback pattern = %+v", fp)
	}
	if p.AI.PersonalizationLevel <= 0 {
		t.Errorf("personalization level not updated: %v", p.AI.PersonalizationLevel)
	}
}

func TestFeedback_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fb   recommend.Feedback
		want error
	}{
		{"rating too high", recommend.Feedback{UserID: "u1", RecommendationID: "r", Rating: 6}, ErrInvalidFeedback},
		{"rating zero", recommend.Feedback{UserID: "u1", RecommendationID: "r"}, ErrInvalidFeedback},
		{"no recommendation", recommend.Feedback{UserID: "u1", Rating: 3}, ErrInvalidFeedback},
		{"unknown user", recommend.Feedback{UserID: "ghost", RecommendationID: "r", Rating: 3}, ErrUnknownUser},
	}
	for _, tt := range tests {
		if err := f.p.Feedback(ctx, tt.fb); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func hasEducation(recs []recommend.Recommendation, topic string) bool {
	for _, r := range recs {
		if r.Type == recommend.TypeEducation && r.Category == topic {
			return true
		}
	}
	return false
}

func TestFeedback_EducationMarksTopicViewed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createDryProfile(t, "u1")

	if _, _, err := f.profiles.UpdateAILearning(ctx, "u1", profile.Interaction{Kind: profile.KindMessage, Topic: "routine"}); err != nil {
		t.Fatalf("UpdateAILearning: %v", err)
	}
	recs, _, err := f.p.Recommend(ctx, Request{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !hasEducation(recs, "routine") {
		t.Fatal("expected routine education before it was viewed")
	}

	err = f.p.Feedback(ctx, recommend.Feedback{UserID: "u1", RecommendationID: "edu-1", RecommendationType: recommend.TypeEducation, Category: "routine", Rating: 5})
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}

	p, _, _ := f.profiles.Get(ctx, "u1")
	var viewed bool
	for _, in := range p.AI.InteractionHistory {
		if in.Kind == profile.KindEducationViewed && in.Topic == "routine" {
			viewed = true
		}
	}
	if !viewed {
		t.Errorf("no education_viewed interaction in %+v", p.AI.InteractionHistory)
	}

	recs, _, err = f.p.Recommend(ctx, Request{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if hasEducation(recs, "routine") {
		t.Error("routine education offered again after it was viewed")
	}
}

func TestRecommend_EducationFollowsNewestTopics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createDryProfile(t, "u1")

	// An old topic followed by a full window of newer chat pushes it out.
	topics := []string{"hair_loss"}
	for range recommend.RecentWindow - 1 {
		topics = append(topics, "general")
	}
	topics = append(topics, "product")
	for _, topic := range topics {
		if _, _, err := f.profiles.UpdateAILearning(ctx, "u1", profile.Interaction{Kind: profile.KindMessage, Topic: topic}); err != nil {
			t.Fatalf("UpdateAILearning: %v", err)
		}
	}

	recs, _, err := f.p.Recommend(ctx, Request{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !hasEducation(recs, "product") {
		t.Error("newest topic missing from education")
	}
	if hasEducation(recs, "hair_loss") {
		t.Error("topic outside the recent window still produced education")
	}
}
