package advisor

import (
	"strings"

	"github.com/kalambet/tresses/internal/knowledge"
)

type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel maps a level name to a Level, defaulting to beginner.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelIntermediate:
		return LevelIntermediate
	case LevelAdvanced:
		return LevelAdvanced
	}
	return LevelBeginner
}

// Size is the number of practices taught at this level.
func (l Level) Size() int {
	switch l {
	case LevelIntermediate:
		return 4
	case LevelAdvanced:
		return 6
	}
	return 2
}

func levelForAdoption(adopted int) Level {
	switch {
	case adopted >= 4:
		return LevelAdvanced
	case adopted >= 2:
		return LevelIntermediate
	}
	return LevelBeginner
}

type SeasonAdjustment struct {
	Season string   `json:"season"`
	Notes  []string `json:"notes"`
}

type Education struct {
	Topic     string             `json:"topic"`
	Level     Level              `json:"level"`
	Practices []SurfacedPractice `json:"practices"`
	Daily     []string           `json:"daily"`
	Weekly    []string           `json:"weekly"`
	Seasonal  []SeasonAdjustment `json:"seasonal"`
	Stories   []knowledge.Story  `json:"stories,omitempty"`
}

var dailyByLevel = map[Level][]string{
	LevelBeginner: {
		"Spritz hair with water and seal with a light butter",
		"Sleep on a satin scarf or pillowcase",
	},
	LevelIntermediate: {
		"Moisturize using the liquid, oil, cream layering method",
		"Finger-detangle before using any comb",
		"Massage the scalp for five minutes",
	},
	LevelAdvanced: {
		"Adjust sealing butters to the day's humidity",
		"Refresh protective styles with a diluted herbal rinse",
		"Check ends for splits and trim by hand when needed",
	},
}

var weeklyByLevel = map[Level][]string{
	LevelBeginner: {
		"Gentle cleanse with diluted black soap",
		"Deep condition for twenty minutes",
	},
	LevelIntermediate: {
		"Hot oil treatment before washing",
		"Herbal scalp rinse after washing",
		"Refresh a protective style",
	},
	LevelAdvanced: {
		"Prepare a fresh neem or moringa infusion",
		"Apply a length-retention paste to braided sections",
		"Alternate protein and moisture treatments",
	},
}

// educationSeasons are the climate pairs covered by seasonal notes: the dry
// Harmattan months against the rainy season.
var educationSeasons = []string{"harmattan", "dry", "rainy"}

// GetCulturalEducation returns practices for topic sized by level, plus the
// level's daily and weekly lists, static seasonal notes and stories tagged
// with the topic.
func (a *Advisor) GetCulturalEducation(topic string, level Level) Education {
	level = ParseLevel(string(level))
	ed := Education{
		Topic:     topic,
		Level:     level,
		Practices: a.surface(a.practicesForTopic(topic), "", level.Size()),
		Daily:     dailyByLevel[level],
		Weekly:    weeklyByLevel[level],
		Stories:   a.kb.StoriesFor(topic),
	}
	for _, s := range educationSeasons {
		if notes := a.kb.SeasonalNotes(s); len(notes) > 0 {
			ed.Seasonal = append(ed.Seasonal, SeasonAdjustment{Season: s, Notes: notes})
		}
	}
	return ed
}
