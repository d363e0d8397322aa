package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RecordStore defines the storage operations the Manager needs. Implemented
// by storage.Store and MemoryStore. GetProfile reports ok=false for an
// unknown id.
type RecordStore interface {
	GetProfile(ctx context.Context, id string) (Profile, bool, error)
	PutProfile(ctx context.Context, p Profile) error
	DeleteProfile(ctx context.Context, id string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const (
	maxInteractionHistory = 100
	satisfactionWindow    = 10
	experiencePerEntry    = 0.002
	maxExperienceBonus    = 0.2
	satisfactionWeight    = 0.8
)

type cacheEntry struct {
	profile  Profile
	cachedAt time.Time
}

// Manager provides cached, structured access to user profiles held in a
// RecordStore. Concurrent writes to the same id are last-write-wins.
type Manager struct {
	store RecordStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store RecordStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store RecordStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// Get returns the profile for id. ok is false when the user is unknown.
func (m *Manager) Get(ctx context.Context, id string) (Profile, bool, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if e, hit := m.cache[id]; hit && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		p := deepCopyProfile(&e.profile)
		m.mu.RUnlock()
		return p, true, nil
	}
	m.mu.RUnlock()

	p, ok, err := m.store.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, false, fmt.Errorf("loading profile %q: %w", id, err)
	}
	if !ok {
		return Profile{}, false, nil
	}

	m.mu.Lock()
	m.cache[id] = cacheEntry{profile: deepCopyProfile(&p), cachedAt: m.clock.Now()}
	m.mu.Unlock()
	return p, true, nil
}

// Create builds a profile for id from the sections present in draft, filling
// every omitted field with its default, and persists it.
func (m *Manager) Create(ctx context.Context, id string, draft Patch) (Profile, error) {
	now := m.clock.Now()
	p := Profile{ID: id, CreatedAt: now, LastActive: now}
	applyPatch(&p, draft)
	normalize(&p)

	if err := m.put(ctx, p); err != nil {
		return Profile{}, fmt.Errorf("creating profile %q: %w", id, err)
	}
	return p, nil
}

// Update shallow-merges patch into the stored profile and stamps LastActive.
// ok is false (and err nil) when the user is unknown.
func (m *Manager) Update(ctx context.Context, id string, patch Patch) (Profile, bool, error) {
	return m.mutate(ctx, id, func(p *Profile) {
		applyPatch(p, patch)
	})
}

// Delete removes a profile. Only called on explicit user request.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()

	if err := m.store.DeleteProfile(ctx, id); err != nil {
		return fmt.Errorf("deleting profile %q: %w", id, err)
	}
	return nil
}

// AnalyzeHairCharacteristics derives categorical hair attributes from raw
// assessment signals and stores them on the profile. Missing or out-of-range
// signals leave the corresponding attribute as it was, so a partial
// assessment only updates what it measured.
func (m *Manager) AnalyzeHairCharacteristics(ctx context.Context, id string, raw RawSignals) (HairProfile, bool, error) {
	p, ok, err := m.mutate(ctx, id, func(p *Profile) {
		h := &p.Hair
		if v := classifyType(raw.CurlPattern); v != HairTypeUnknown {
			h.Type = v
		}
		if v := classifyTexture(raw.Thickness); v != TextureUnknown {
			h.Texture = v
		}
		if v := classifyPorosity(raw.WaterAbsorption); v != PorosityUnknown {
			h.Porosity = v
		}
		if v := classifyDensity(raw.StrandDensity); v != DensityUnknown {
			h.Density = v
		}
		if v := classifyLength(raw.LengthCM); v != LengthUnknown {
			h.Length = v
		}

		assessed := false
		if v, ok := unit(raw.Hydration); ok {
			h.Condition.Moisture = v
			assessed = true
		}
		if v, ok := unit(raw.Elasticity); ok {
			h.Condition.Strength = v
			assessed = true
		}
		if v, ok := unit(raw.Shine); ok {
			h.Condition.Health = (h.Condition.Moisture + h.Condition.Strength + v) / 3
			assessed = true
		}
		if assessed {
			h.Condition.LastAssessed = m.clock.Now()
		}
	})
	if err != nil || !ok {
		return HairProfile{}, ok, err
	}
	return p.Hair, true, nil
}

// UpdateAILearning appends interaction to the user's history and recomputes
// the personalization level.
func (m *Manager) UpdateAILearning(ctx context.Context, id string, in Interaction) (Profile, bool, error) {
	return m.mutate(ctx, id, func(p *Profile) {
		if in.At.IsZero() {
			in.At = m.clock.Now()
		}
		ai := &p.AI
		ai.InteractionHistory = append(ai.InteractionHistory, in)
		if n := len(ai.InteractionHistory); n > maxInteractionHistory {
			ai.InteractionHistory = append([]Interaction(nil), ai.InteractionHistory[n-maxInteractionHistory:]...)
		}

		if in.Rated && in.RecommendationType != "" {
			if ai.FeedbackPatterns == nil {
				ai.FeedbackPatterns = make(map[string]FeedbackPattern)
			}
			fp := ai.FeedbackPatterns[in.RecommendationType]
			fp.Total++
			if in.Satisfied {
				fp.Positive++
			}
			ai.FeedbackPatterns[in.RecommendationType] = fp
		}

		ai.PersonalizationLevel = personalizationLevel(ai.InteractionHistory)
	})
}

// personalizationLevel blends the satisfaction rate over the last rated
// interactions with an experience bonus capped so volume alone cannot reach 1.0.
func personalizationLevel(history []Interaction) float64 {
	var rated, satisfied int
	for i := len(history) - 1; i >= 0 && rated < satisfactionWindow; i-- {
		if !history[i].Rated {
			continue
		}
		rated++
		if history[i].Satisfied {
			satisfied++
		}
	}

	rate := 0.0
	if rated > 0 {
		rate = float64(satisfied) / float64(rated)
	}
	bonus := float64(len(history)) * experiencePerEntry
	if bonus > maxExperienceBonus {
		bonus = maxExperienceBonus
	}
	return clamp01(satisfactionWeight*rate + bonus)
}

func (m *Manager) mutate(ctx context.Context, id string, fn func(*Profile)) (Profile, bool, error) {
	p, ok, err := m.Get(ctx, id)
	if err != nil || !ok {
		return Profile{}, ok, err
	}

	fn(&p)
	p.LastActive = m.clock.Now()
	normalize(&p)

	if err := m.put(ctx, p); err != nil {
		return Profile{}, false, fmt.Errorf("updating profile %q: %w", id, err)
	}
	return p, true, nil
}

func (m *Manager) put(ctx context.Context, p Profile) error {
	if err := m.store.PutProfile(ctx, p); err != nil {
		return err
	}
	m.mu.Lock()
	m.cache[p.ID] = cacheEntry{profile: deepCopyProfile(&p), cachedAt: m.clock.Now()}
	m.mu.Unlock()
	slog.Debug("profile stored", "user_id", p.ID)
	return nil
}

func applyPatch(p *Profile, patch Patch) {
	if patch.Demographics != nil {
		p.Demographics = *patch.Demographics
	}
	if patch.Hair != nil {
		p.Hair = *patch.Hair
	}
	if patch.Cultural != nil {
		p.Cultural = *patch.Cultural
	}
	if patch.Lifestyle != nil {
		p.Lifestyle = *patch.Lifestyle
	}
}

// normalize fills defaults and enforces the clamping invariant.
func normalize(p *Profile) {
	h := &p.Hair
	if h.Type == "" {
		h.Type = HairTypeUnknown
	}
	if h.Texture == "" {
		h.Texture = TextureUnknown
	}
	if h.Porosity == "" {
		h.Porosity = PorosityUnknown
	}
	if h.Density == "" {
		h.Density = DensityUnknown
	}
	if h.Length == "" {
		h.Length = LengthUnknown
	}

	c := &h.Condition
	if c.LastAssessed.IsZero() && c.Health == 0 && c.Moisture == 0 && c.Strength == 0 && c.Growth == 0 {
		c.Health, c.Moisture, c.Strength, c.Growth = 0.5, 0.5, 0.5, 0.5
	}
	c.Health = clamp01(c.Health)
	c.Moisture = clamp01(c.Moisture)
	c.Strength = clamp01(c.Strength)
	c.Growth = clamp01(c.Growth)

	if p.Cultural.Background == "" {
		p.Cultural.Background = BackgroundNotSpecified
	}
	// Never assume low cultural sensitivity.
	switch p.Cultural.RespectLevel {
	case RespectHigh, RespectMedium, RespectLow:
	default:
		p.Cultural.RespectLevel = RespectHigh
	}
	if p.Cultural.Language == "" {
		p.Cultural.Language = "en"
	}
	p.AI.PersonalizationLevel = clamp01(p.AI.PersonalizationLevel)
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func deepCopyProfile(p *Profile) Profile {
	if p == nil {
		return Profile{}
	}
	cp := *p

	cp.Hair.Concerns = copyStrings(p.Hair.Concerns)
	cp.Hair.Goals = copyStrings(p.Hair.Goals)
	cp.Cultural.TraditionalPractices = copyStrings(p.Cultural.TraditionalPractices)
	cp.Cultural.Preferences = copyStrings(p.Cultural.Preferences)

	if p.AI.InteractionHistory != nil {
		cp.AI.InteractionHistory = make([]Interaction, len(p.AI.InteractionHistory))
		copy(cp.AI.InteractionHistory, p.AI.InteractionHistory)
	}
	if p.AI.FeedbackPatterns != nil {
		cp.AI.FeedbackPatterns = make(map[string]FeedbackPattern, len(p.AI.FeedbackPatterns))
		for k, v := range p.AI.FeedbackPatterns {
			cp.AI.FeedbackPatterns[k] = v
		}
	}
	return cp
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
