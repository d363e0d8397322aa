package recommend

import (
	"context"
	"sort"
	"sync"
)

// MemoryFeedbackStore is an in-process FeedbackStore.
type MemoryFeedbackStore struct {
	mu    sync.RWMutex
	stats map[string]map[Type]FeedbackStats
}

func NewMemoryFeedbackStore() *MemoryFeedbackStore {
	return &MemoryFeedbackStore{stats: make(map[string]map[Type]FeedbackStats)}
}

func (s *MemoryFeedbackStore) RecordFeedback(_ context.Context, f Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType := s.stats[f.UserID]
	if byType == nil {
		byType = make(map[Type]FeedbackStats)
		s.stats[f.UserID] = byType
	}
	st := byType[f.RecommendationType]
	st.Total++
	if f.Satisfied() {
		st.Positive++
	}
	byType[f.RecommendationType] = st
	return nil
}

func (s *MemoryFeedbackStore) FeedbackStats(_ context.Context, userID string, t Type) (FeedbackStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats[userID][t], nil
}

// StaticCatalog is a fixed product list, used when no catalog is configured.
type StaticCatalog map[string]Product

func (c StaticCatalog) Product(_ context.Context, id string) (Product, bool, error) {
	p, ok := c[id]
	return p, ok, nil
}

// List returns the catalog ordered by id.
func (c StaticCatalog) List() []Product {
	out := make([]Product, 0, len(c))
	for _, p := range c {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultProducts are the products the engine references by id.
var DefaultProducts = StaticCatalog{
	"prod-shea-moisture-cream":      {ID: "prod-shea-moisture-cream", Name: "Shea Moisture Cream", Category: "moisture", Price: 18},
	"prod-baobab-leave-in":          {ID: "prod-baobab-leave-in", Name: "Baobab Leave-In Conditioner", Category: "moisture", Price: 16},
	"prod-raw-shea-butter":          {ID: "prod-raw-shea-butter", Name: "Unrefined Shea Butter", Category: "moisture", Price: 12},
	"prod-aloe-light-gel":           {ID: "prod-aloe-light-gel", Name: "Aloe Light Styling Gel", Category: "moisture", Price: 14},
	"prod-chebe-strengthening-mask": {ID: "prod-chebe-strengthening-mask", Name: "Chebe Strengthening Mask", Category: "strength", Price: 24},
	"prod-protein-treatment":        {ID: "prod-protein-treatment", Name: "Rice Protein Treatment", Category: "strength", Price: 20},
	"prod-neem-scalp-serum":         {ID: "prod-neem-scalp-serum", Name: "Neem Scalp Serum", Category: "growth", Price: 22},
	"prod-moringa-scalp-tonic":      {ID: "prod-moringa-scalp-tonic", Name: "Moringa Scalp Tonic", Category: "growth", Price: 19},
	"prod-black-soap-shampoo":       {ID: "prod-black-soap-shampoo", Name: "Black Soap Shampoo", Category: "cleanse", Price: 15},
	"prod-uv-shield-mist":           {ID: "prod-uv-shield-mist", Name: "UV Shield Hair Mist", Category: "protection", Price: 17},
}
