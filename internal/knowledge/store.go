// Package knowledge holds the cultural reference data: traditional practices,
// proverbs, stories and seasonal notes. The data is versioned YAML loaded once
// at startup and is read-only afterwards.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/knowledge.yaml
var embeddedData []byte

// ErrPracticeNotFound is returned when a practice id is not in the store.
var ErrPracticeNotFound = errors.New("practice not found")

// Store is an immutable, in-memory view of the knowledge base. It is safe for
// concurrent use.
type Store struct {
	version    string
	practices  []Practice
	byID       map[string]int
	proverbs   []Proverb
	stories    []Story
	seasons    map[string][]string
	qualifiers []string
}

// Load parses the embedded knowledge base.
func Load() (*Store, error) {
	return Parse(embeddedData)
}

// LoadFile parses a knowledge base from path, replacing the embedded data.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Store from YAML. Practice ids must be unique and every
// practice must carry an attribution source and community.
func Parse(data []byte) (*Store, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing knowledge base: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("knowledge base has no version")
	}

	s := &Store{
		version:   doc.Version,
		practices: doc.Practices,
		byID:      make(map[string]int, len(doc.Practices)),
		proverbs:  doc.Proverbs,
		stories:   doc.Stories,
		seasons:   make(map[string][]string, len(doc.Seasons)),
	}
	for i, p := range doc.Practices {
		if p.ID == "" {
			return nil, fmt.Errorf("practice %d has no id", i)
		}
		if _, dup := s.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate practice id %q", p.ID)
		}
		if p.Attribution.Source == "" || p.Attribution.Community == "" {
			return nil, fmt.Errorf("practice %q is missing attribution source or community", p.ID)
		}
		s.byID[p.ID] = i
	}
	for _, g := range doc.Seasons {
		s.seasons[strings.ToLower(g.Season)] = g.Notes
	}
	s.qualifiers = buildQualifiers(doc.Practices)
	return s, nil
}

// Version is the version string of the loaded data.
func (s *Store) Version() string { return s.version }

// Practice looks up a practice by exact id.
func (s *Store) Practice(id string) (Practice, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Practice{}, false
	}
	return s.practices[i], true
}

// Practices returns every practice in load order.
func (s *Store) Practices() []Practice {
	out := make([]Practice, len(s.practices))
	copy(out, s.practices)
	return out
}

// Search returns practices whose name, description or ingredient names
// contain query, case-insensitively, in load order.
func (s *Store) Search(query string) []Practice {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Practice
	for _, p := range s.practices {
		if matchesPractice(p, q) {
			out = append(out, p)
		}
	}
	return out
}

func matchesPractice(p Practice, q string) bool {
	if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, ing := range p.Ingredients {
		if strings.Contains(strings.ToLower(ing.Name), q) {
			return true
		}
	}
	return false
}

// ForRegion returns practices associated with a heritage region, in load order.
func (s *Store) ForRegion(region string) []Practice {
	var out []Practice
	for _, p := range s.practices {
		for _, r := range p.Regions {
			if r == region {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// ProverbFor returns the first proverb tagged with topic.
func (s *Store) ProverbFor(topic string) (Proverb, bool) {
	for _, p := range s.proverbs {
		if hasTag(p.Tags, topic) {
			return p, true
		}
	}
	return Proverb{}, false
}

// StoriesFor returns every story tagged with topic.
func (s *Store) StoriesFor(topic string) []Story {
	var out []Story
	for _, st := range s.stories {
		if hasTag(st.Tags, topic) {
			out = append(out, st)
		}
	}
	return out
}

// SeasonalNotes returns the static notes for a season, or nil.
func (s *Store) SeasonalNotes(season string) []string {
	return s.seasons[strings.ToLower(season)]
}

// GenerateProperAttribution composes the citation that must accompany any
// practice surfaced to a user.
func (s *Store) GenerateProperAttribution(practiceID string) (string, error) {
	p, ok := s.Practice(practiceID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPracticeNotFound, practiceID)
	}
	a := p.Attribution

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s comes from %s, shared by the %s community", p.Name, a.Source, a.Community)
	if len(a.Elders) > 0 {
		fmt.Fprintf(&sb, " with guidance from %s", joinList(a.Elders))
	}
	sb.WriteString(".")
	if bs := a.BenefitSharing; len(bs.Beneficiaries) > 0 {
		fmt.Fprintf(&sb, " %s%% of related proceeds support %s.",
			strconv.FormatFloat(bs.Percentage, 'f', -1, 64), joinList(bs.Beneficiaries))
	}
	return sb.String(), nil
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
