package knowledge

import (
	"fmt"
	"regexp"
	"strings"
)

// SensitivityResult is the outcome of a cultural-sensitivity check. Callers
// act on IsAppropriate; the check itself never fails.
type SensitivityResult struct {
	IsAppropriate bool     `json:"is_appropriate"`
	Concerns      []string `json:"concerns"`
	Suggestions   []string `json:"suggestions"`
}

var disrespectfulTerms = []string{
	"primitive", "superstition", "superstitious", "backward", "backwards",
	"exotic", "tribal", "witchcraft", "voodoo", "savage", "uncivilized", "jungle",
}

var sacredTerms = []string{"ceremony", "ceremonial", "ritual", "rituals", "sacred", "blessing", "blessings"}

var respectTerms = []string{"permission", "permissions", "respect", "respectful", "respectfully", "consent"}

// baseQualifiers name a geography or culture that can precede "traditional".
var baseQualifiers = []string{
	"africa", "african", "west african", "east african", "ghana", "nigeria", "chad", "india", "ghanaian", "nigerian", "chadian",
	"akan", "ashanti", "ewe", "yoruba", "igbo", "fulani", "basara", "dagomba",
	"caribbean", "jamaican", "indian", "ayurvedic", "south asian", "ethiopian", "sahel", "sahelian",
}

var wordRe = regexp.MustCompile(`[\p{L}']+`)

func buildQualifiers(practices []Practice) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.Join(wordRe.FindAllString(strings.ToLower(s), -1), " ")
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, q := range baseQualifiers {
		add(q)
	}
	for _, p := range practices {
		add(p.Origin)
		add(p.Attribution.Community)
	}
	return out
}

// ValidateCulturalSensitivity runs three independent rule families over text
// and accumulates every violation:
//   - disrespectful terms from a fixed denylist
//   - "traditional" used without a geographic or cultural qualifier
//   - sacred-practice keywords without accompanying respect language
func (s *Store) ValidateCulturalSensitivity(text string) SensitivityResult {
	tokens := wordRe.FindAllString(strings.ToLower(text), -1)
	words := make(map[string]bool, len(tokens))
	for _, w := range tokens {
		words[w] = true
	}

	res := SensitivityResult{IsAppropriate: true}

	for _, term := range disrespectfulTerms {
		if words[term] {
			res.Concerns = append(res.Concerns, fmt.Sprintf("Term %q may be disrespectful to the cultures described", term))
			res.Suggestions = append(res.Suggestions, fmt.Sprintf("Replace %q with neutral language such as \"traditional\" or \"heritage\" plus the culture of origin", term))
		}
	}

	if words["traditional"] && !s.hasQualifier(tokens) {
		res.Concerns = append(res.Concerns, `"traditional" is used without naming the culture or region of origin`)
		res.Suggestions = append(res.Suggestions, `Name the originating community, e.g. "traditional Ghanaian" rather than "traditional"`)
	}

	var sacred []string
	for _, term := range sacredTerms {
		if words[term] {
			sacred = append(sacred, term)
		}
	}
	if len(sacred) > 0 && !containsAny(words, respectTerms) {
		res.Concerns = append(res.Concerns, fmt.Sprintf("Sacred-practice language (%s) appears without respect or permission language", strings.Join(sacred, ", ")))
		res.Suggestions = append(res.Suggestions, "Acknowledge that sacred practices are shared with permission and should be approached with respect")
	}

	res.IsAppropriate = len(res.Concerns) == 0
	return res
}

// hasQualifier matches qualifiers on whole words so that short community
// names do not match inside unrelated words.
func (s *Store) hasQualifier(tokens []string) bool {
	padded := " " + strings.Join(tokens, " ") + " "
	for _, q := range s.qualifiers {
		if strings.Contains(padded, " "+q+" ") {
			return true
		}
	}
	return false
}

func containsAny(words map[string]bool, terms []string) bool {
	for _, t := range terms {
		if words[t] {
			return true
		}
	}
	return false
}
