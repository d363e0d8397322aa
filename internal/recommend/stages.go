package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/tresses/internal/analyzer"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/reranking"
)

// Categories shared by products, routines and seasonal overlays.
const (
	CategoryMoisture        = "moisture"
	CategoryStrength        = "strength"
	CategoryGrowth          = "growth"
	CategoryDailyRoutine    = "daily_routine"
	CategoryWeeklyTreatment = "weekly_treatment"
)

const (
	urgentScore         = 0.4
	weeklyHealthCutoff  = 0.7
	urgentHealthCutoff  = 0.5
	maxEducation        = 3
	maxRemedyAlternates = 2
	alternativeDiscount = 0.05
)

type productRule struct {
	category     string
	productID    string
	alternatives []string
	outcome      string
	timeline     string
	score        func(profile.Condition) float64
	threshold    float64
}

var productRules = []productRule{
	{
		category:     CategoryMoisture,
		productID:    "prod-shea-moisture-cream",
		alternatives: []string{"prod-baobab-leave-in"},
		outcome:      "Softer hair that holds moisture between wash days",
		timeline:     "2-4 weeks",
		score:        func(c profile.Condition) float64 { return c.Moisture },
		threshold:    analyzer.MoistureThreshold,
	},
	{
		category:     CategoryStrength,
		productID:    "prod-chebe-strengthening-mask",
		alternatives: []string{"prod-protein-treatment"},
		outcome:      "Less breakage during detangling and styling",
		timeline:     "4-6 weeks",
		score:        func(c profile.Condition) float64 { return c.Strength },
		threshold:    analyzer.StrengthThreshold,
	},
	{
		category:     CategoryGrowth,
		productID:    "prod-neem-scalp-serum",
		alternatives: []string{"prod-moringa-scalp-tonic"},
		outcome:      "A calmer scalp and visible length retention",
		timeline:     "8-12 weeks",
		score:        func(c profile.Condition) float64 { return c.Growth },
		threshold:    analyzer.GrowthThreshold,
	},
}

func (e *Engine) productStage(ctx context.Context, r *request) ([]Recommendation, error) {
	p := r.Profile
	var out []Recommendation
	for _, rule := range productRules {
		score := rule.score(p.Hair.Condition)
		below := score < rule.threshold
		if !below && !(rule.category == CategoryGrowth && p.Hair.HasGoal("growth")) {
			continue
		}

		priority := PriorityLow
		if below {
			priority = PriorityMedium
			if score < urgentScore {
				priority = PriorityHigh
			}
		}

		conf := e.calculateConfidence(ctx, p, TypeProduct)
		rec := Recommendation{
			Type:            TypeProduct,
			Category:        rule.category,
			Title:           e.productName(ctx, rule.productID),
			Confidence:      conf,
			Reasoning:       productReasoning(rule, score, below, r),
			ExpectedOutcome: rule.outcome,
			Timeline:        rule.timeline,
			Priority:        priority,
			ProductIDs:      []string{rule.productID},
		}
		for _, id := range rule.alternatives {
			rec.Alternatives = append(rec.Alternatives, Alternative{
				Title:      e.productName(ctx, id),
				ProductID:  id,
				Confidence: alternativeConfidence(conf),
			})
		}
		out = append(out, rec)
	}
	return out, nil
}

func productReasoning(rule productRule, score float64, below bool, r *request) string {
	var sb strings.Builder
	if below {
		fmt.Fprintf(&sb, "Your %s score is %.2f, below the %.2f we aim for.", rule.category, score, rule.threshold)
	} else {
		fmt.Fprintf(&sb, "Your %s score is %.2f and you told us growth is a goal.", rule.category, score)
	}
	if f := contributingFactor(rule.category, r); f != "" {
		sb.WriteString(" ")
		sb.WriteString(f)
	}
	return sb.String()
}

// contributingFactor names the lifestyle or weather signal most relevant to
// a category, preferring live weather over stored climate.
func contributingFactor(category string, r *request) string {
	l := r.Profile.Lifestyle
	switch category {
	case CategoryMoisture:
		if w := r.Weather; w != nil {
			if w.Humidity < 0.3 {
				return fmt.Sprintf("Today's low humidity (%.0f%%) pulls water out of the hair shaft.", w.Humidity*100)
			}
			if w.Humidity > 0.8 {
				return fmt.Sprintf("Today's high humidity (%.0f%%) calls for a lighter formula that resists frizz.", w.Humidity*100)
			}
		}
		if h := l.Climate.Humidity; h > 0 && h < 0.3 {
			return fmt.Sprintf("Your dry climate (%.0f%% humidity) makes sealing moisture essential.", h*100)
		}
	case CategoryStrength:
		if l.ExerciseFrequency == "daily" {
			return "Daily workouts mean frequent washing, which adds mechanical stress."
		}
		if l.WorkEnvironment == "outdoor" {
			return "Working outdoors exposes your hair to sun and wind."
		}
	case CategoryGrowth:
		if l.StressLevel == "high" {
			return "High stress can push follicles into a resting, shedding phase."
		}
		if l.SleepPattern == "poor" {
			return "Poor sleep slows the scalp's recovery."
		}
	}
	return ""
}

func (e *Engine) productName(ctx context.Context, id string) string {
	p, ok, err := e.catalog.Product(ctx, id)
	if err != nil {
		slog.Warn("recommend: catalog lookup failed", "product", id, "error", err)
		return id
	}
	if !ok || p.Name == "" {
		return id
	}
	return p.Name
}

func alternativeConfidence(conf float64) float64 {
	return max(BaseConfidence, round2(conf-alternativeDiscount))
}

func (e *Engine) routineStage(ctx context.Context, r *request) ([]Recommendation, error) {
	p := r.Profile
	out := []Recommendation{{
		Type:            TypeRoutine,
		Category:        CategoryDailyRoutine,
		Title:           "Daily care routine",
		Confidence:      e.calculateConfidence(ctx, p, TypeRoutine),
		Reasoning:       dailyReasoning(p.Hair),
		ExpectedOutcome: "Consistent moisture and fewer tangles",
		Timeline:        "Daily, results within 2 weeks",
		Priority:        PriorityMedium,
		Steps:           dailySteps(p.Hair),
	}}

	health := p.Hair.Condition.Health
	if health < weeklyHealthCutoff {
		priority := PriorityMedium
		if health < urgentHealthCutoff {
			priority = PriorityHigh
		}
		out = append(out, Recommendation{
			Type:            TypeRoutine,
			Category:        CategoryWeeklyTreatment,
			Title:           "Weekly intensive treatment",
			Confidence:      e.calculateConfidence(ctx, p, TypeRoutine),
			Reasoning:       fmt.Sprintf("Your overall hair health is %.2f, below %.2f, so a weekly deep treatment will help it recover.", health, weeklyHealthCutoff),
			ExpectedOutcome: "Restored elasticity and shine",
			Timeline:        "Weekly for 6 weeks",
			Priority:        priority,
			Steps: []string{
				"Pre-poo with warm oil for 30 minutes",
				"Cleanse gently with diluted black soap",
				"Deep condition under a warm towel for 20 minutes",
				"Seal with a butter while hair is damp",
			},
		})
	}
	return out, nil
}

func dailyReasoning(h profile.HairProfile) string {
	if h.Type == profile.HairTypeUnknown {
		return "A simple daily routine keeps hair hydrated while we learn more about your hair."
	}
	return fmt.Sprintf("A daily routine tuned for %s hair with %s porosity.", h.Type, h.Porosity)
}

func dailySteps(h profile.HairProfile) []string {
	steps := []string{"Mist hair lightly with water"}
	switch h.Porosity {
	case profile.PorosityHigh:
		steps = append(steps, "Seal immediately with a butter to lock in water")
	case profile.PorosityLow:
		steps = append(steps, "Apply a light leave-in to warm, damp hair so it absorbs")
	default:
		steps = append(steps, "Apply a leave-in conditioner")
	}
	if h.Type == profile.HairCoily || h.Type == profile.HairCurly {
		steps = append(steps, "Finger-detangle before any comb")
	}
	return append(steps, "Protect hair at night with satin")
}

type educationTopic struct {
	title   string
	outcome string
}

var educationTopics = map[string]educationTopic{
	"hair_loss":          {"Understanding shedding and thinning", "Know when shedding is normal and when to seek help"},
	"moisture":           {"How hair holds moisture", "Choose products that match your porosity"},
	"cultural":           {"The history behind heritage hair care", "Understand the origins of the practices you use"},
	"product":            {"Reading an ingredient list", "Spot the ingredients that suit your hair"},
	"routine":            {"Building a routine that lasts", "A routine you can keep through busy weeks"},
	"protective_styling": {"Protective styling without tension damage", "Styles that protect ends without stressing edges"},
}

// educationStage emits content for recent topics the user has not yet
// viewed education on, newest first. Topics without education content
// (general chat) are skipped.
func (e *Engine) educationStage(ctx context.Context, r *request) ([]Recommendation, error) {
	covered := make(map[string]bool)
	for _, in := range r.Profile.AI.InteractionHistory {
		if in.Kind == profile.KindEducationViewed && in.Topic != "" {
			covered[in.Topic] = true
		}
	}

	var out []Recommendation
	seen := make(map[string]bool)
	for i := len(r.RecentInteractions) - 1; i >= 0 && len(out) < maxEducation; i-- {
		t := r.RecentInteractions[i].Topic
		et, ok := educationTopics[t]
		if !ok || seen[t] || covered[t] {
			continue
		}
		seen[t] = true

		out = append(out, Recommendation{
			Type:            TypeEducation,
			Category:        t,
			Title:           et.title,
			Confidence:      e.calculateConfidence(ctx, r.Profile, TypeEducation),
			Reasoning:       fmt.Sprintf("You recently asked about %s.", strings.ReplaceAll(t, "_", " ")),
			ExpectedOutcome: et.outcome,
			Timeline:        "5 minute read",
			Priority:        PriorityLow,
		})
	}
	return out, nil
}

// remedyQueries map a concern to the knowledge-base search that finds its
// remedy.
var remedyQueries = map[string]string{
	analyzer.ConcernMoisture: "shea",
	analyzer.ConcernStrength: "chebe",
	analyzer.ConcernGrowth:   "neem",
	"hair_loss":              "neem",
}

// remedyStage surfaces one traditional remedy for the highest-severity
// concern. The practice is only shown with its attribution.
func (e *Engine) remedyStage(ctx context.Context, r *request) ([]Recommendation, error) {
	concern, ok := r.needs.TopConcern()
	if !ok {
		return nil, nil
	}
	query, ok := remedyQueries[concern.Type]
	if !ok {
		query = concern.Type
	}
	practices := e.kb.Search(query)
	if len(practices) == 0 {
		return nil, nil
	}
	pr := practices[0]

	attribution, err := e.kb.GenerateProperAttribution(pr.ID)
	if err != nil {
		return nil, fmt.Errorf("attributing %s: %w", pr.ID, err)
	}

	reasoning := fmt.Sprintf("%s is your most pressing concern (severity %.2f). %s",
		strings.ToUpper(concern.Type[:1])+concern.Type[1:], concern.Severity, pr.Description)
	if pr.ModernScience.Validated && pr.ModernScience.Evidence != "" {
		reasoning += " " + pr.ModernScience.Evidence
	}

	conf := e.calculateConfidence(ctx, r.Profile, TypeRemedy)
	rec := Recommendation{
		Type:            TypeRemedy,
		Category:        concern.Type,
		Title:           pr.Name,
		Confidence:      conf,
		Reasoning:       reasoning,
		CulturalContext: pr.CulturalSignificance,
		Attribution:     attribution,
		ExpectedOutcome: "Care rooted in " + pr.Origin + " for your " + concern.Type + " concern",
		Timeline:        pr.Usage.Frequency,
		Priority:        PriorityMedium,
		PracticeID:      pr.ID,
		Steps:           pr.Preparation,
	}
	if variant, ok := pr.Usage.Seasonal[string(r.Season)]; ok {
		rec.SeasonalAdjustment = &SeasonalAdjustment{
			Season:               r.Season,
			Reason:               fmt.Sprintf("%s practice differs in the %s season", pr.Attribution.Community, r.Season),
			ModifiedInstructions: []string{variant},
		}
	}

	bg := string(r.Profile.Cultural.Background)
	for _, alt := range practices[1:] {
		if len(rec.Alternatives) == maxRemedyAlternates {
			break
		}
		rec.Alternatives = append(rec.Alternatives, Alternative{
			Title:             alt.Name,
			PracticeID:        alt.ID,
			Confidence:        alternativeConfidence(conf),
			CulturalRelevance: reranking.CulturalRelevance(alt.CulturalSignificance, true, bg),
		})
	}
	return []Recommendation{rec}, nil
}

func (e *Engine) lifestyleStage(ctx context.Context, r *request) ([]Recommendation, error) {
	l := r.Profile.Lifestyle
	var out []Recommendation
	if l.StressLevel == "high" {
		out = append(out, Recommendation{
			Type:            TypeLifestyle,
			Category:        "stress",
			Title:           "Make room for stress relief",
			Confidence:      e.calculateConfidence(ctx, r.Profile, TypeLifestyle),
			Reasoning:       "You reported high stress, which is linked to increased shedding.",
			ExpectedOutcome: "Reduced stress-related shedding",
			Timeline:        "8-12 weeks",
			Priority:        PriorityLow,
			Steps:           []string{"A ten minute scalp massage before bed", "Short daily walks"},
		})
	}
	if l.SleepPattern == "poor" {
		out = append(out, Recommendation{
			Type:            TypeLifestyle,
			Category:        "sleep",
			Title:           "Protect hair and rest at night",
			Confidence:      e.calculateConfidence(ctx, r.Profile, TypeLifestyle),
			Reasoning:       "Poor sleep slows recovery and cotton pillowcases add friction.",
			ExpectedOutcome: "Less overnight breakage",
			Timeline:        "2-4 weeks",
			Priority:        PriorityLow,
			Steps:           []string{"Switch to a satin pillowcase or bonnet", "Keep a regular bedtime"},
		})
	}
	return out, nil
}
