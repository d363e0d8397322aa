package reranking

import (
	"sort"
	"strings"
)

// Keys are the sort keys of one ranked item. Lower Priority ranks first;
// Confidence and CulturalRelevance rank descending.
type Keys struct {
	Priority          int
	Confidence        float64
	CulturalRelevance float64
}

// Reranker orders items by their keys. Implementations are stable: items
// with equal keys keep their input order.
type Reranker interface {
	// Rank returns a permutation of the indexes of keys.
	Rank(keys []Keys) []int
}

// NewReranker returns a CulturalReranker if cultural ranking is enabled for
// the user, PriorityReranker otherwise.
func NewReranker(cultural bool) Reranker {
	if !cultural {
		return &PriorityReranker{}
	}
	return &CulturalReranker{}
}

// PriorityReranker sorts by priority, then confidence.
type PriorityReranker struct{}

func (r *PriorityReranker) Rank(keys []Keys) []int {
	return stableOrder(keys, func(a, b Keys) bool {
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Confidence > b.Confidence
	})
}

// CulturalReranker adds cultural relevance as a third key.
type CulturalReranker struct{}

func (r *CulturalReranker) Rank(keys []Keys) []int {
	return stableOrder(keys, func(a, b Keys) bool {
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.CulturalRelevance > b.CulturalRelevance
	})
}

func stableOrder(keys []Keys, less func(a, b Keys) bool) []int {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return less(keys[idx[i]], keys[idx[j]])
	})
	return idx
}

// Apply reorders items with r. keyFn extracts the sort keys of an item.
func Apply[T any](r Reranker, items []T, keyFn func(T) Keys) []T {
	if len(items) < 2 {
		return items
	}
	keys := make([]Keys, len(items))
	for i, it := range items {
		keys[i] = keyFn(it)
	}
	out := make([]T, len(items))
	for pos, i := range r.Rank(keys) {
		out[pos] = items[i]
	}
	return out
}

const (
	contextWeight    = 0.4
	contextSaturates = 200 // characters of cultural context for full weight
	remedyBonus      = 0.3
	backgroundBonus  = 0.3
)

// CulturalRelevance scores how strongly an item speaks to a user's heritage.
// Longer cultural context, remedies and a context that names the user's
// background each raise the score. The result is in [0,1].
func CulturalRelevance(culturalContext string, remedy bool, background string) float64 {
	score := contextWeight * float64(min(len(culturalContext), contextSaturates)) / contextSaturates
	if remedy {
		score += remedyBonus
	}
	if mentionsBackground(culturalContext, background) {
		score += backgroundBonus
	}
	return min(score, 1)
}

func mentionsBackground(text, background string) bool {
	if text == "" || background == "" || background == "not_specified" {
		return false
	}
	label := strings.ReplaceAll(strings.ToLower(background), "_", " ")
	return strings.Contains(strings.ToLower(text), label)
}
