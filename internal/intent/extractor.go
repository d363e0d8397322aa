package intent

import "strings"

// Type is the classified purpose of an inbound message.
type Type string

const (
	HairLossConcern Type = "hair_loss_concern"
	MoistureConcern Type = "moisture_concern"
	CulturalInquiry Type = "cultural_inquiry"
	ProductInquiry  Type = "product_inquiry"
	RoutineHelp     Type = "routine_help"
	GeneralInquiry  Type = "general_inquiry"
)

// Intent holds the classification result for one message.
type Intent struct {
	Type Type `json:"type"`
	// Topics lists every matched category in rule order, not just the winner.
	Topics []string `json:"topics"`
	// Entities are ingredient names mentioned in the message.
	Entities []string `json:"entities"`
}

type rule struct {
	intent   Type
	topic    string
	keywords []string
}

// rules are evaluated in order and the first match wins. Reordering them
// changes how multi-keyword messages are classified.
var rules = []rule{
	{HairLossConcern, "hair_loss", []string{"hair loss", "losing hair", "losing my hair", "thinning", "bald", "shedding", "falling out", "hair fall"}},
	{MoistureConcern, "moisture", []string{"dry", "moisture", "moisturiz", "brittle", "hydrat", "frizz"}},
	{CulturalInquiry, "cultural", []string{"tradition", "cultur", "heritage", "ancest", "ghana", "african", "ritual", "history"}},
	{ProductInquiry, "product", []string{"product", "buy", "recommend", "shampoo", "conditioner", "oil", "butter", "cream", "price"}},
	{RoutineHelp, "routine", []string{"routine", "regimen", "schedule", "how often", "daily", "weekly", "wash day"}},
}

var ingredients = []string{"shea", "neem", "chebe", "baobab", "moringa", "black soap", "aloe"}

// Extractor classifies messages with an ordered keyword rule list.
type Extractor struct {
	rules []rule
}

func NewExtractor() *Extractor {
	return &Extractor{rules: rules}
}

// Extract normalises message and classifies it. Empty input yields
// GeneralInquiry with no topics.
func (e *Extractor) Extract(message string) Intent {
	text := Normalize(message)
	out := Intent{Type: GeneralInquiry}
	if text == "" {
		return out
	}

	matched := false
	for _, r := range e.rules {
		if !containsAny(text, r.keywords) {
			continue
		}
		if !matched {
			out.Type = r.intent
			matched = true
		}
		out.Topics = append(out.Topics, r.topic)
	}
	for _, ing := range ingredients {
		if strings.Contains(text, ing) {
			out.Entities = append(out.Entities, ing)
		}
	}
	return out
}

// Topic returns the topic tag of t, or "general".
func Topic(t Type) string {
	for _, r := range rules {
		if r.intent == t {
			return r.topic
		}
	}
	return "general"
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
