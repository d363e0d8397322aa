package reranking

import (
	"math"
	"strings"
	"testing"
)

type item struct {
	name string
	keys Keys
}

func names(items []item) string {
	var s []string
	for _, it := range items {
		s = append(s, it.name)
	}
	return strings.Join(s, ",")
}

func rank(r Reranker, items []item) string {
	return names(Apply(r, items, func(it item) Keys { return it.keys }))
}

func TestPriorityReranker_PriorityThenConfidence(t *testing.T) {
	items := []item{
		{"low", Keys{Priority: 2, Confidence: 0.95}},
		{"med-a", Keys{Priority: 1, Confidence: 0.75}},
		{"high", Keys{Priority: 0, Confidence: 0.70}},
		{"med-b", Keys{Priority: 1, Confidence: 0.85}},
	}

	got := rank(NewReranker(false), items)
	if got != "high,med-b,med-a,low" {
		t.Errorf("order = %s", got)
	}
}

func TestPriorityReranker_IgnoresCulturalRelevance(t *testing.T) {
	items := []item{
		{"a", Keys{Priority: 0, Confidence: 0.8, CulturalRelevance: 0.1}},
		{"b", Keys{Priority: 0, Confidence: 0.8, CulturalRelevance: 0.9}},
	}

	if got := rank(NewReranker(false), items); got != "a,b" {
		t.Errorf("order = %s, want generation order", got)
	}
}

func TestCulturalReranker_TertiaryKey(t *testing.T) {
	items := []item{
		{"a", Keys{Priority: 0, Confidence: 0.8, CulturalRelevance: 0.1}},
		{"b", Keys{Priority: 0, Confidence: 0.8, CulturalRelevance: 0.9}},
		{"c", Keys{Priority: 0, Confidence: 0.9, CulturalRelevance: 0.0}},
	}

	if got := rank(NewReranker(true), items); got != "c,b,a" {
		t.Errorf("order = %s", got)
	}
}

func TestRank_StableWithinEqualKeys(t *testing.T) {
	k := Keys{Priority: 1, Confidence: 0.8, CulturalRelevance: 0.5}
	items := []item{
		{"first", k}, {"second", k}, {"third", k}, {"fourth", k},
	}

	for _, cultural := range []bool{false, true} {
		if got := rank(NewReranker(cultural), items); got != "first,second,third,fourth" {
			t.Errorf("cultural=%v: order = %s", cultural, got)
		}
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	items := []item{
		{"b", Keys{Priority: 1}},
		{"a", Keys{Priority: 0}},
	}
	_ = Apply(NewReranker(false), items, func(it item) Keys { return it.keys })
	if items[0].name != "b" {
		t.Error("input slice was reordered")
	}
}

func TestCulturalRelevance(t *testing.T) {
	long := strings.Repeat("x", 400)

	tests := []struct {
		name       string
		context    string
		remedy     bool
		background string
		want       float64
	}{
		{"empty", "", false, "ghanaian", 0},
		{"half context", strings.Repeat("x", 100), false, "", 0.2},
		{"saturated context", long, false, "", 0.4},
		{"remedy only", "", true, "", 0.3},
		{"background match", "Rooted in Ghanaian practice", false, "ghanaian", 0.4*27/200 + 0.3},
		{"multiword background", "common across west african homes", false, "west_african", 0.4*32/200 + 0.3},
		{"not specified never matches", "not specified", false, "not_specified", 0.4 * 13 / 200},
		{"all signals", long + " ghanaian", true, "ghanaian", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CulturalRelevance(tt.context, tt.remedy, tt.background)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
