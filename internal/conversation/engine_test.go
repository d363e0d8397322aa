package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/kalambet/tresses/internal/composer"
	"github.com/kalambet/tresses/internal/followup"
	"github.com/kalambet/tresses/internal/intent"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/recommend"
	"github.com/kalambet/tresses/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingRecommender struct {
	inner Recommender
	calls int
	panic bool
}

func (c *countingRecommender) Generate(ctx context.Context, rc recommend.Context) []recommend.Recommendation {
	c.calls++
	if c.panic {
		panic("catalog exploded")
	}
	return c.inner.Generate(ctx, rc)
}

type failingProfiles struct{ Profiles }

func (failingProfiles) Get(context.Context, string) (profile.Profile, bool, error) {
	return profile.Profile{}, false, errors.New("record store offline")
}

type harness struct {
	engine   *Engine
	clock    *followup.FakeClock
	queue    *followup.TimerQueue
	rec      *countingRecommender
	profiles *profile.Manager
	stores   *MemoryStores
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	kb, err := knowledge.Load()
	if err != nil {
		t.Fatalf("loading knowledge base: %v", err)
	}

	h := &harness{
		clock:    followup.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		rec:      &countingRecommender{inner: recommend.New(kb)},
		profiles: profile.NewManager(profile.NewMemoryStore()),
		stores:   NewMemoryStores(),
	}
	h.queue = followup.NewTimerQueue(followup.DelivererFunc(func(ctx context.Context, m followup.Message) error {
		return h.engine.Deliver(ctx, m)
	}), h.clock)
	t.Cleanup(h.queue.Close)

	h.engine = New(h.profiles, h.rec, composer.New(kb, 0), h.stores, cfg,
		WithFollowups(h.queue),
		WithJourneyStore(h.stores),
		WithNow(h.clock.Now),
	)
	return h
}

func (h *harness) say(t *testing.T, conv, msg string) composer.Response {
	t.Helper()
	resp, err := h.engine.HandleMessage(context.Background(), Request{ConversationID: conv, UserID: "u1", Message: msg})
	if err != nil {
		t.Fatalf("HandleMessage(%q): %v", msg, err)
	}
	return resp
}

func (h *harness) memory(t *testing.T, conv string) Memory {
	t.Helper()
	mem, ok, err := h.engine.Memory(context.Background(), conv)
	if err != nil || !ok {
		t.Fatalf("Memory(%s) = %v, %v", conv, ok, err)
	}
	return mem
}

func TestHandleMessage_HairLoss(t *testing.T) {
	h := newHarness(t, Config{})

	resp := h.say(t, "c1", "I have hair loss")

	if resp.Intent != intent.HairLossConcern {
		t.Errorf("intent = %s", resp.Intent)
	}
	msg := strings.ToLower(resp.Message)
	if !strings.Contains(msg, "neem") || !strings.Contains(msg, "shea") {
		t.Errorf("reply should reference neem and shea: %s", resp.Message)
	}
	var acts []string
	for _, s := range resp.Suggestions {
		acts = append(acts, s.Action)
	}
	if diff := cmp.Diff([]string{"learn_neem", "view_products", "create_routine"}, acts); diff != "" {
		t.Errorf("suggestions (-want +got):\n%s", diff)
	}
	if resp.Confidence < 0.7 || resp.Confidence > 0.95 {
		t.Errorf("confidence = %v", resp.Confidence)
	}

	p, ok, err := h.profiles.Get(context.Background(), "u1")
	if err != nil || !ok {
		t.Fatalf("profile not created on first contact: %v, %v", ok, err)
	}
	if len(p.AI.InteractionHistory) != 1 || p.AI.InteractionHistory[0].Topic != "hair_loss" {
		t.Errorf("interaction history = %+v", p.AI.InteractionHistory)
	}

	mem := h.memory(t, "c1")
	if mem.State != StateActive || len(mem.ShortTerm) != 1 {
		t.Errorf("memory = %s with %d turns", mem.State, len(mem.ShortTerm))
	}
	if mem.CulturalContext.RespectLevel != profile.RespectHigh {
		t.Errorf("cultural context = %+v", mem.CulturalContext)
	}
}

func TestHandleMessage_OneRecommenderCallPerTurn(t *testing.T) {
	h := newHarness(t, Config{})

	for i, msg := range []string{"hello", "my hair is dry", "what is a good routine?"} {
		h.say(t, "c1", msg)
		if h.rec.calls != i+1 {
			t.Fatalf("after turn %d: recommender calls = %d", i+1, h.rec.calls)
		}
	}
}

func TestHandleMessage_ShortTermWindow(t *testing.T) {
	h := newHarness(t, Config{})

	for i := 1; i <= 11; i++ {
		h.say(t, "c1", fmt.Sprintf("message %d about my routine", i))
	}

	mem := h.memory(t, "c1")
	if len(mem.ShortTerm) != DefaultWindow {
		t.Fatalf("short-term length = %d, want %d", len(mem.ShortTerm), DefaultWindow)
	}
	if got := mem.ShortTerm[0].UserMessage; got != "message 2 about my routine" {
		t.Errorf("oldest kept turn = %q, want the 2nd message", got)
	}
	if got := mem.ShortTerm[9].UserMessage; got != "message 11 about my routine" {
		t.Errorf("newest turn = %q", got)
	}
}

func TestHandleMessage_JourneyRecordsFirstOccurrence(t *testing.T) {
	h := newHarness(t, Config{})

	h.say(t, "c1", "my hair is dry")
	h.say(t, "c1", "still so dry")
	h.say(t, "c2", "tell me about the history of shea")

	j, err := h.engine.Journey(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Journey: %v", err)
	}
	var got []intent.Type
	for _, m := range j {
		got = append(got, m.Intent)
	}
	if diff := cmp.Diff([]intent.Type{intent.MoistureConcern, intent.CulturalInquiry}, got); diff != "" {
		t.Errorf("journey (-want +got):\n%s", diff)
	}
}

func TestHandleMessage_CulturalInsightFollowUp(t *testing.T) {
	h := newHarness(t, Config{})

	resp := h.say(t, "c1", "I have hair loss")
	if resp.CulturalInsight == nil {
		t.Fatal("expected a cultural insight for a high-respect user")
	}
	if h.queue.Pending() != 1 {
		t.Fatalf("pending follow-ups = %d, want 1", h.queue.Pending())
	}

	h.clock.Advance(DefaultFollowupDelay)

	mem := h.memory(t, "c1")
	if len(mem.ShortTerm) != 2 {
		t.Fatalf("turns = %d, want reply plus follow-up", len(mem.ShortTerm))
	}
	last := mem.ShortTerm[1]
	if !last.FollowUp || last.UserMessage != "" {
		t.Errorf("follow-up turn = %+v", last)
	}
	if !strings.Contains(last.BotMessage, resp.CulturalInsight.Attribution) {
		t.Errorf("follow-up must carry the attribution: %s", last.BotMessage)
	}
}

// A follow-up is not ordered against user messages: one sent before the
// timer fires lands first.
func TestHandleMessage_FollowUpAfterLaterMessage(t *testing.T) {
	h := newHarness(t, Config{})

	h.say(t, "c1", "I have hair loss")
	h.clock.Advance(time.Second)
	h.say(t, "c1", "what routine should I use?")
	h.clock.Advance(DefaultFollowupDelay)

	mem := h.memory(t, "c1")
	var kinds []string
	for _, turn := range mem.ShortTerm {
		if turn.FollowUp {
			kinds = append(kinds, "followup")
		} else {
			kinds = append(kinds, string(turn.Intent))
		}
	}
	want := []string{"hair_loss_concern", "routine_help", "followup"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("turn order (-want +got):\n%s", diff)
	}
}

func TestHandleMessage_NoInsightWhenOptedOut(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	if _, err := h.profiles.Create(ctx, "u1", profile.Patch{Cultural: &profile.CulturalProfile{RespectLevel: profile.RespectLow}}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp := h.say(t, "c1", "I have hair loss")
	if resp.CulturalInsight != nil || h.queue.Pending() != 0 {
		t.Error("no follow-up expected for an opted-out user")
	}
}

func TestHandleMessage_PanicEscalates(t *testing.T) {
	h := newHarness(t, Config{})
	h.rec.panic = true

	resp := h.say(t, "c1", "I have hair loss")
	if !resp.Escalated || resp.Confidence != composer.FallbackConfidence {
		t.Fatalf("response = %+v, want fallback", resp)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].Action != "talk_to_human" {
		t.Errorf("suggestions = %+v", resp.Suggestions)
	}

	mem := h.memory(t, "c1")
	if len(mem.ShortTerm) != 1 || mem.ShortTerm[0].BotMessage != resp.Message {
		t.Errorf("fallback turn should still be recorded: %+v", mem.ShortTerm)
	}
	j, _ := h.engine.Journey(context.Background(), "u1")
	if len(j) != 0 {
		t.Errorf("escalated turn recorded a milestone: %+v", j)
	}
}

func TestHandleMessage_ProfileErrorEscalates(t *testing.T) {
	kb, err := knowledge.Load()
	if err != nil {
		t.Fatalf("loading knowledge base: %v", err)
	}
	e := New(failingProfiles{}, recommend.New(kb), composer.New(kb, 0), NewMemoryStores(), Config{})

	resp, err := e.HandleMessage(context.Background(), Request{ConversationID: "c1", UserID: "u1", Message: "hi"})
	if err != nil {
		t.Fatalf("HandleMessage error: %v", err)
	}
	if !resp.Escalated {
		t.Errorf("response = %+v, want fallback", resp)
	}
}

func TestHandleMessage_InvalidRequests(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	for _, req := range []Request{
		{UserID: "u1", Message: "hi"},
		{ConversationID: "c1", Message: "hi"},
		{ConversationID: "c1", UserID: "u1", Message: "   "},
	} {
		if _, err := h.engine.HandleMessage(ctx, req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%+v: err = %v, want ErrInvalidRequest", req, err)
		}
	}

	h.say(t, "c1", "hi")
	_, err := h.engine.HandleMessage(ctx, Request{ConversationID: "c1", UserID: "intruder", Message: "hi"})
	if !errors.Is(err, ErrWrongUser) {
		t.Errorf("err = %v, want ErrWrongUser", err)
	}
}

func TestMemory_IdleAndReactivate(t *testing.T) {
	h := newHarness(t, Config{IdleTimeout: 10 * time.Minute})

	h.say(t, "c1", "hello")
	h.clock.Advance(9 * time.Minute)
	if s := h.memory(t, "c1").State; s != StateActive {
		t.Errorf("state = %s before timeout", s)
	}

	h.clock.Advance(time.Minute)
	if s := h.memory(t, "c1").State; s != StateIdle {
		t.Errorf("state = %s after timeout, want idle", s)
	}

	h.say(t, "c1", "back again")
	if s := h.memory(t, "c1").State; s != StateActive {
		t.Errorf("state = %s after new message, want active", s)
	}
}

func TestSetPreferences_DetailedStyle(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	if err := h.engine.SetPreferences(ctx, "missing", Preferences{}); !errors.Is(err, ErrUnknownConversation) {
		t.Errorf("err = %v, want ErrUnknownConversation", err)
	}

	h.say(t, "c1", "hello")
	if err := h.engine.SetPreferences(ctx, "c1", Preferences{Style: composer.StyleDetailed}); err != nil {
		t.Fatalf("SetPreferences: %v", err)
	}
	if got := h.memory(t, "c1").Preferences.Style; got != composer.StyleDetailed {
		t.Errorf("style = %s", got)
	}
}

func TestDeliver_UnknownConversation(t *testing.T) {
	h := newHarness(t, Config{})
	err := h.engine.Deliver(context.Background(), followup.Message{ConversationID: "ghost"})
	if !errors.Is(err, ErrUnknownConversation) {
		t.Errorf("err = %v, want ErrUnknownConversation", err)
	}
}

func TestLock_EntriesDroppedAfterUse(t *testing.T) {
	h := newHarness(t, Config{})
	for i := range 5 {
		h.say(t, fmt.Sprintf("c%d", i), "how do I build a routine?")
	}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := h.engine.lock("shared")
			unlock()
		}()
	}
	wg.Wait()

	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	if n := len(h.engine.locks); n != 0 {
		t.Errorf("%d conversation locks left behind", n)
	}
}

func TestRecent_WindowEndsWithCurrentMessage(t *testing.T) {
	var history []profile.Interaction
	for i := range 15 {
		history = append(history, profile.Interaction{Kind: profile.KindMessage, Topic: fmt.Sprintf("t%d", i)})
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	got := recent(history, intent.Intent{Type: intent.RoutineHelp}, now)
	if len(got) != recommend.RecentWindow {
		t.Fatalf("len = %d, want %d", len(got), recommend.RecentWindow)
	}
	if got[0].Topic != "t6" {
		t.Errorf("oldest = %q, want t6", got[0].Topic)
	}
	if last := got[len(got)-1]; last.Topic != "routine" || !last.At.Equal(now) {
		t.Errorf("newest = %+v, want current routine message", last)
	}
	if history[14].Topic != "t14" {
		t.Error("history was modified")
	}
}

func TestSQLStore(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := NewSQLStore(db)
	ctx := context.Background()

	if _, ok, err := s.LoadMemory(ctx, "c1"); ok || err != nil {
		t.Fatalf("LoadMemory on empty store = %v, %v", ok, err)
	}

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mem := Memory{
		ID:        "c1",
		UserID:    "u1",
		State:     StateActive,
		ShortTerm: []Turn{{UserMessage: "hi", BotMessage: "hello", Intent: intent.GeneralInquiry, Confidence: 0.7, At: at}},
		Preferences: Preferences{
			Style: composer.StyleDetailed,
		},
		CulturalContext: CulturalContext{Background: profile.BackgroundGhanaian, RespectLevel: profile.RespectHigh},
		CreatedAt:       at,
		LastActivity:    at,
	}
	if err := s.SaveMemory(ctx, mem); err != nil {
		t.Fatalf("SaveMemory: %v", err)
	}
	got, ok, err := s.LoadMemory(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("LoadMemory = %v, %v", ok, err)
	}
	if diff := cmp.Diff(mem, got); diff != "" {
		t.Errorf("memory (-want +got):\n%s", diff)
	}

	for _, it := range []intent.Type{intent.MoistureConcern, intent.MoistureConcern, intent.RoutineHelp} {
		if _, err := s.AppendMilestone(ctx, "u1", Milestone{Intent: it, ConversationID: "c1", At: at}); err != nil {
			t.Fatalf("AppendMilestone: %v", err)
		}
		at = at.Add(time.Minute)
	}
	j, err := s.Journey(ctx, "u1")
	if err != nil {
		t.Fatalf("Journey: %v", err)
	}
	if len(j) != 2 || j[0].Intent != intent.MoistureConcern || j[1].Intent != intent.RoutineHelp {
		t.Errorf("journey = %+v", j)
	}
}
