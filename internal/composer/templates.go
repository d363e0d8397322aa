package composer

import (
	"fmt"

	"github.com/kalambet/tresses/internal/intent"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/profile"
)

type template struct {
	opening      string
	practiceID   string
	pickPractice func(kb *knowledge.Store, p profile.Profile) string
	practiceLine func(pr knowledge.Practice) string
	suggestions  []Suggestion
}

var templates = map[intent.Type]template{
	intent.HairLossConcern: {
		opening:    "I'm sorry you're dealing with hair loss. Shedding has many causes, and gentle scalp care is a good first step.",
		practiceID: "neem-scalp-treatment",
		practiceLine: func(pr knowledge.Practice) string {
			return fmt.Sprintf("The %s from %s combines %s to calm the scalp and support regrowth.", pr.Name, pr.Origin, joinLower(pr.Ingredients))
		},
		suggestions: []Suggestion{
			{Action: "learn_neem", Label: "Learn about neem"},
			{Action: "view_products", Label: "View scalp products"},
			{Action: "create_routine", Label: "Build a routine"},
		},
	},
	intent.MoistureConcern: {
		opening:    "Dry hair usually needs water first and a sealant second.",
		practiceID: "shea-butter-sealing",
		practiceLine: func(pr knowledge.Practice) string {
			return fmt.Sprintf("%s from %s uses %s to lock that water in.", pr.Name, pr.Origin, joinLower(pr.Ingredients))
		},
		suggestions: []Suggestion{
			{Action: "learn_shea", Label: "Learn about shea"},
			{Action: "view_products", Label: "View moisture products"},
			{Action: "create_routine", Label: "Build a routine"},
		},
	},
	intent.CulturalInquiry: {
		opening:      "Hair care carries the knowledge of the communities who developed it, and we share it with their permission.",
		pickPractice: heritagePractice,
		practiceLine: func(pr knowledge.Practice) string {
			return fmt.Sprintf("%s comes from the %s community of %s. %s", pr.Name, pr.Attribution.Community, pr.Origin, pr.CulturalSignificance)
		},
		suggestions: []Suggestion{
			{Action: "explore_practices", Label: "Explore heritage practices"},
			{Action: "learn_history", Label: "Learn the history"},
			{Action: "view_attribution", Label: "See who shared this"},
		},
	},
	intent.ProductInquiry: {
		opening: "Here is what I'd look at for your hair.",
		suggestions: []Suggestion{
			{Action: "view_products", Label: "View products"},
			{Action: "compare_products", Label: "Compare options"},
			{Action: "take_quiz", Label: "Take the hair quiz"},
		},
	},
	intent.RoutineHelp: {
		opening: "A steady routine matters more than any single product.",
		suggestions: []Suggestion{
			{Action: "create_routine", Label: "Build a routine"},
			{Action: "set_reminder", Label: "Set reminders"},
			{Action: "view_products", Label: "View products"},
		},
	},
	intent.GeneralInquiry: {
		opening: "Hello! I can help with hair concerns, routines, products and the heritage behind them.",
		suggestions: []Suggestion{
			{Action: "take_quiz", Label: "Take the hair quiz"},
			{Action: "explore_practices", Label: "Explore heritage practices"},
			{Action: "view_products", Label: "View products"},
		},
	},
}

// heritagePractice picks the first practice from the user's own heritage,
// or the first practice in the knowledge base.
func heritagePractice(kb *knowledge.Store, p profile.Profile) string {
	if bg := p.Cultural.Background; bg.HeritageGroup() {
		if ps := kb.ForRegion(string(bg)); len(ps) > 0 {
			return ps[0].ID
		}
	}
	if ps := kb.Practices(); len(ps) > 0 {
		return ps[0].ID
	}
	return ""
}
