// Package conversation runs the chat loop: classify the inbound message,
// compose a reply with one personalization call, keep short-term memory and
// schedule cultural-insight follow-ups.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/tresses/internal/composer"
	"github.com/kalambet/tresses/internal/followup"
	"github.com/kalambet/tresses/internal/intent"
	"github.com/kalambet/tresses/internal/metrics"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/recommend"
)

const (
	DefaultWindow        = 10
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultFollowupDelay = 3 * time.Second
)

var (
	ErrInvalidRequest      = errors.New("conversation: conversation id, user id and message are required")
	ErrWrongUser           = errors.New("conversation: conversation belongs to another user")
	ErrUnknownConversation = errors.New("conversation: unknown conversation")
)

// Profiles is the subset of profile.Manager the engine uses.
type Profiles interface {
	Get(ctx context.Context, id string) (profile.Profile, bool, error)
	Create(ctx context.Context, id string, draft profile.Patch) (profile.Profile, error)
	UpdateAILearning(ctx context.Context, id string, in profile.Interaction) (profile.Profile, bool, error)
}

// Recommender is the personalization hook, called once per turn.
type Recommender interface {
	Generate(ctx context.Context, c recommend.Context) []recommend.Recommendation
}

type Config struct {
	Window        int
	IdleTimeout   time.Duration
	FollowupDelay time.Duration
}

type Option func(*Engine)

// WithFollowups enables cultural-insight follow-ups.
func WithFollowups(s followup.Scheduler) Option {
	return func(e *Engine) { e.followups = s }
}

func WithJourneyStore(s JourneyStore) Option {
	return func(e *Engine) { e.journeys = s }
}

func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	profiles    Profiles
	recommender Recommender
	composer    *composer.Composer
	classifier  *intent.Extractor
	memories    MemoryStore
	journeys    JourneyStore
	followups   followup.Scheduler
	now         func() time.Time
	cfg         Config

	mu    sync.Mutex
	locks map[string]*convLock
}

// convLock serializes turns of one conversation. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type convLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an Engine. Zero Config fields take the package defaults.
func New(profiles Profiles, rec Recommender, comp *composer.Composer, memories MemoryStore, cfg Config, opts ...Option) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.FollowupDelay <= 0 {
		cfg.FollowupDelay = DefaultFollowupDelay
	}
	e := &Engine{
		profiles:    profiles,
		recommender: rec,
		composer:    comp,
		classifier:  intent.NewExtractor(),
		memories:    memories,
		journeys:    NewMemoryStores(),
		now:         time.Now,
		cfg:         cfg,
		locks:       make(map[string]*convLock),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request is one inbound user message.
type Request struct {
	ConversationID string
	UserID         string
	Message        string
	Season         recommend.Season
	Weather        *recommend.Weather
}

// HandleMessage processes one turn. Failures while building the reply are
// not returned: the caller gets the escalation fallback instead. The error
// is reserved for invalid requests.
func (e *Engine) HandleMessage(ctx context.Context, req Request) (composer.Response, error) {
	if req.ConversationID == "" || req.UserID == "" || strings.TrimSpace(req.Message) == "" {
		return composer.Response{}, ErrInvalidRequest
	}

	unlock := e.lock(req.ConversationID)
	defer unlock()

	now := e.now()
	mem, err := e.loadOrCreate(ctx, req.ConversationID, req.UserID, now)
	if err != nil {
		return e.escalate("loading memory", err), nil
	}
	if mem.UserID != req.UserID {
		return composer.Response{}, ErrWrongUser
	}

	p, err := e.profileFor(ctx, req.UserID)
	if err != nil {
		return e.escalate("loading profile", err), nil
	}

	in := e.classifier.Extract(req.Message)
	resp := e.reply(ctx, req, p, in, mem)

	mem.ShortTerm = evict(append(mem.ShortTerm, Turn{
		UserMessage: req.Message,
		BotMessage:  resp.Message,
		Intent:      in.Type,
		PracticeID:  resp.PracticeID,
		Confidence:  resp.Confidence,
		At:          now,
	}), e.cfg.Window)
	mem.State = StateActive
	mem.LastActivity = now
	mem.CulturalContext = CulturalContext{
		Background:       p.Cultural.Background,
		RespectLevel:     p.Cultural.RespectLevel,
		AdoptedPractices: p.Cultural.TraditionalPractices,
	}
	if err := e.memories.SaveMemory(ctx, mem); err != nil {
		slog.Warn("conversation: saving memory failed", "conversation_id", mem.ID, "error", err)
	}

	if !resp.Escalated {
		e.recordJourney(ctx, req.UserID, Milestone{Intent: in.Type, ConversationID: mem.ID, At: now})
	}
	if _, _, err := e.profiles.UpdateAILearning(ctx, req.UserID, profile.Interaction{
		Kind:  profile.KindMessage,
		Topic: intent.Topic(in.Type),
		At:    now,
	}); err != nil {
		slog.Warn("conversation: updating AI learning failed", "user_id", req.UserID, "error", err)
	}
	if resp.CulturalInsight != nil {
		e.scheduleInsight(ctx, mem, resp.CulturalInsight)
	}

	metrics.RecordMessage(string(in.Type))
	return resp, nil
}

// reply runs the personalization hook and the composer. Any error or panic
// becomes the escalation fallback.
func (e *Engine) reply(ctx context.Context, req Request, p profile.Profile, in intent.Intent, mem Memory) (resp composer.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = e.escalate("composing reply", fmt.Errorf("panic: %v", r))
		}
	}()

	recs := e.recommender.Generate(ctx, recommend.Context{
		Profile:            p,
		Season:             req.Season,
		Weather:            req.Weather,
		RecentInteractions: recent(p.AI.InteractionHistory, in, e.now()),
	})

	out, err := e.composer.Compose(composer.Request{
		Intent:          in,
		Profile:         p,
		Recommendations: recs,
		Style:           mem.Preferences.Style,
	})
	if err != nil {
		return e.escalate("composing reply", err)
	}
	return out
}

func (e *Engine) escalate(step string, err error) composer.Response {
	slog.Warn("conversation: escalating to human support", "step", step, "error", err)
	metrics.ConversationEscalations.Inc()
	return composer.Fallback()
}

func (e *Engine) loadOrCreate(ctx context.Context, id, userID string, now time.Time) (Memory, error) {
	mem, ok, err := e.memories.LoadMemory(ctx, id)
	if err != nil {
		return Memory{}, err
	}
	if !ok {
		return Memory{
			ID:          id,
			UserID:      userID,
			State:       StateCreated,
			Preferences: Preferences{Style: composer.StyleConcise},
			CreatedAt:   now,
		}, nil
	}
	return mem, nil
}

// profileFor loads the user's profile, creating a default one on first
// contact.
func (e *Engine) profileFor(ctx context.Context, userID string) (profile.Profile, error) {
	p, ok, err := e.profiles.Get(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}
	if ok {
		return p, nil
	}
	slog.Debug("conversation: creating profile on first contact", "user_id", userID)
	return e.profiles.Create(ctx, userID, profile.Patch{})
}

func (e *Engine) recordJourney(ctx context.Context, userID string, m Milestone) {
	added, err := e.journeys.AppendMilestone(ctx, userID, m)
	if err != nil {
		slog.Warn("conversation: recording milestone failed", "user_id", userID, "intent", m.Intent, "error", err)
		return
	}
	if added {
		slog.Debug("conversation: journey milestone", "user_id", userID, "intent", m.Intent)
	}
}

func (e *Engine) scheduleInsight(ctx context.Context, mem Memory, ins *composer.CulturalInsight) {
	if e.followups == nil {
		return
	}
	msg := followup.Message{
		ConversationID: mem.ID,
		UserID:         mem.UserID,
		Kind:           followup.KindCulturalInsight,
		Title:          ins.Title,
		Body:           strings.TrimSpace(ins.Significance + " " + ins.History),
		Attribution:    ins.Attribution,
	}
	if _, err := e.followups.Schedule(ctx, msg, e.cfg.FollowupDelay); err != nil {
		slog.Warn("conversation: scheduling follow-up failed", "conversation_id", mem.ID, "error", err)
	}
}

// Deliver appends a due follow-up to its conversation as a bot turn. It
// implements followup.Deliverer. The follow-up may land after user turns
// that were sent while it was pending.
func (e *Engine) Deliver(ctx context.Context, msg followup.Message) error {
	unlock := e.lock(msg.ConversationID)
	defer unlock()

	mem, ok, err := e.memories.LoadMemory(ctx, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("loading conversation %s: %w", msg.ConversationID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConversation, msg.ConversationID)
	}

	text := msg.Title + ". " + msg.Body
	if msg.Attribution != "" {
		text += " " + msg.Attribution
	}
	mem.ShortTerm = evict(append(mem.ShortTerm, Turn{BotMessage: text, FollowUp: true, At: e.now()}), e.cfg.Window)
	return e.memories.SaveMemory(ctx, mem)
}

// Memory returns a conversation's memory with its state evaluated against
// the idle timeout.
func (e *Engine) Memory(ctx context.Context, id string) (Memory, bool, error) {
	mem, ok, err := e.memories.LoadMemory(ctx, id)
	if err != nil || !ok {
		return Memory{}, ok, err
	}
	mem.State = e.stateAt(mem, e.now())
	return mem, true, nil
}

// Journey returns the user's long-term milestones.
func (e *Engine) Journey(ctx context.Context, userID string) ([]Milestone, error) {
	return e.journeys.Journey(ctx, userID)
}

// SetPreferences replaces a conversation's reply preferences.
func (e *Engine) SetPreferences(ctx context.Context, id string, prefs Preferences) error {
	unlock := e.lock(id)
	defer unlock()

	mem, ok, err := e.memories.LoadMemory(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConversation, id)
	}
	mem.Preferences = prefs
	return e.memories.SaveMemory(ctx, mem)
}

func (e *Engine) stateAt(mem Memory, now time.Time) State {
	if mem.State == StateActive && now.Sub(mem.LastActivity) >= e.cfg.IdleTimeout {
		return StateIdle
	}
	return mem.State
}

func (e *Engine) lock(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &convLock{}
		e.locks[id] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(e.locks, id)
		}
		e.mu.Unlock()
	}
}

// evict keeps the newest window turns.
func evict(turns []Turn, window int) []Turn {
	if len(turns) <= window {
		return turns
	}
	return append([]Turn(nil), turns[len(turns)-window:]...)
}

// recent is the interaction slice handed to the recommender: the tail of the
// profile's history plus the current message.
func recent(history []profile.Interaction, in intent.Intent, now time.Time) []profile.Interaction {
	out := append([]profile.Interaction(nil), recommend.RecentTail(history)...)
	out = append(out, profile.Interaction{Kind: profile.KindMessage, Topic: intent.Topic(in.Type), At: now})
	return recommend.RecentTail(out)
}
