package profile

import "time"

// HairType is the curl-pattern classification of a user's hair.
type HairType string

const (
	HairStraight    HairType = "straight"
	HairWavy        HairType = "wavy"
	HairCurly       HairType = "curly"
	HairCoily       HairType = "coily"
	HairTypeUnknown HairType = "unknown"
)

type Texture string

const (
	TextureFine    Texture = "fine"
	TextureMedium  Texture = "medium"
	TextureCoarse  Texture = "coarse"
	TextureUnknown Texture = "unknown"
)

type Porosity string

const (
	PorosityLow     Porosity = "low"
	PorosityNormal  Porosity = "normal"
	PorosityHigh    Porosity = "high"
	PorosityUnknown Porosity = "unknown"
)

type Density string

const (
	DensityThin    Density = "thin"
	DensityMedium  Density = "medium"
	DensityThick   Density = "thick"
	DensityUnknown Density = "unknown"
)

type Length string

const (
	LengthShort   Length = "short"
	LengthMedium  Length = "medium"
	LengthLong    Length = "long"
	LengthUnknown Length = "unknown"
)

// Background is the cultural heritage a user has chosen to share.
type Background string

const (
	BackgroundGhanaian        Background = "ghanaian"
	BackgroundWestAfrican     Background = "west_african"
	BackgroundEastAfrican     Background = "east_african"
	BackgroundCaribbean       Background = "caribbean"
	BackgroundAfricanAmerican Background = "african_american"
	BackgroundSouthAsian      Background = "south_asian"
	BackgroundEuropean        Background = "european"
	BackgroundEastAsian       Background = "east_asian"
	BackgroundLatinAmerican   Background = "latin_american"
	BackgroundNotSpecified    Background = "not_specified"
)

// HeritageGroup reports whether b is one of the heritage groups the
// knowledge base carries dedicated practices for.
func (b Background) HeritageGroup() bool {
	switch b {
	case BackgroundGhanaian, BackgroundWestAfrican, BackgroundEastAfrican,
		BackgroundCaribbean, BackgroundAfricanAmerican, BackgroundSouthAsian:
		return true
	}
	return false
}

// Valid reports whether b is one of the known backgrounds.
func (b Background) Valid() bool {
	switch b {
	case BackgroundGhanaian, BackgroundWestAfrican, BackgroundEastAfrican,
		BackgroundCaribbean, BackgroundAfricanAmerican, BackgroundSouthAsian,
		BackgroundEuropean, BackgroundEastAsian, BackgroundLatinAmerican,
		BackgroundNotSpecified:
		return true
	}
	return false
}

// RespectLevel gates how much traditional and cultural content is surfaced.
type RespectLevel string

const (
	RespectHigh   RespectLevel = "high"
	RespectMedium RespectLevel = "medium"
	RespectLow    RespectLevel = "low"
)

// Profile is the durable record describing one user.
type Profile struct {
	ID           string           `json:"id"`
	Demographics Demographics     `json:"demographics"`
	Hair         HairProfile      `json:"hair"`
	Cultural     CulturalProfile  `json:"cultural"`
	Lifestyle    LifestyleFactors `json:"lifestyle"`
	AI           AIProfile        `json:"ai"`
	CreatedAt    time.Time        `json:"created_at"`
	LastActive   time.Time        `json:"last_active"`
}

type Demographics struct {
	Name     string `json:"name,omitempty"`
	AgeRange string `json:"age_range,omitempty"`
	Location string `json:"location,omitempty"`
}

type HairProfile struct {
	Type      HairType  `json:"type"`
	Texture   Texture   `json:"texture"`
	Porosity  Porosity  `json:"porosity"`
	Density   Density   `json:"density"`
	Length    Length    `json:"length"`
	Concerns  []string  `json:"concerns,omitempty"`
	Goals     []string  `json:"goals,omitempty"`
	Condition Condition `json:"condition"`
}

// HasGoal reports whether goal appears in the profile's goal list.
func (h HairProfile) HasGoal(goal string) bool {
	for _, g := range h.Goals {
		if g == goal {
			return true
		}
	}
	return false
}

// Condition holds normalized scores, each always in [0,1].
type Condition struct {
	Health       float64   `json:"health"`
	Moisture     float64   `json:"moisture"`
	Strength     float64   `json:"strength"`
	Growth       float64   `json:"growth"`
	LastAssessed time.Time `json:"last_assessed"`
}

type CulturalProfile struct {
	Background           Background   `json:"background"`
	RespectLevel         RespectLevel `json:"respect_level"`
	TraditionalPractices []string     `json:"traditional_practices,omitempty"`
	Preferences          []string     `json:"preferences,omitempty"`
	Language             string       `json:"language"`
}

type Climate struct {
	Region      string  `json:"region,omitempty"`
	Humidity    float64 `json:"humidity"`    // relative, 0..1
	Temperature float64 `json:"temperature"` // degrees Celsius
}

// LifestyleFactors are informative scoring inputs; the engine never mutates them.
type LifestyleFactors struct {
	Climate           Climate `json:"climate"`
	StressLevel       string  `json:"stress_level,omitempty"` // low, medium, high
	Diet              string  `json:"diet,omitempty"`
	ExerciseFrequency string  `json:"exercise_frequency,omitempty"` // rarely, weekly, daily
	SleepPattern      string  `json:"sleep_pattern,omitempty"`      // poor, fair, good
	WorkEnvironment   string  `json:"work_environment,omitempty"`   // indoor, outdoor, mixed
}

// AIProfile is the engine's learned state for a user.
type AIProfile struct {
	InteractionHistory   []Interaction              `json:"interaction_history,omitempty"`
	FeedbackPatterns     map[string]FeedbackPattern `json:"feedback_patterns,omitempty"`
	PersonalizationLevel float64                    `json:"personalization_level"`
}

// Interaction is one entry in the AI learning history. Rated interactions
// (feedback events) carry a Satisfied verdict.
type Interaction struct {
	Kind               string    `json:"kind"`
	Topic              string    `json:"topic,omitempty"`
	RecommendationID   string    `json:"recommendation_id,omitempty"`
	RecommendationType string    `json:"recommendation_type,omitempty"`
	Rated              bool      `json:"rated"`
	Satisfied          bool      `json:"satisfied"`
	At                 time.Time `json:"at"`
}

// Interaction kinds.
const (
	KindMessage         = "message"
	KindFeedback        = "feedback"
	KindEducationViewed = "education_viewed"
)

// FeedbackPattern aggregates feedback for one recommendation type.
type FeedbackPattern struct {
	Positive int `json:"positive"`
	Total    int `json:"total"`
}

// Patch carries optional top-level sections. Present sections replace the
// stored ones wholesale.
type Patch struct {
	Demographics *Demographics     `json:"demographics,omitempty"`
	Hair         *HairProfile      `json:"hair,omitempty"`
	Cultural     *CulturalProfile  `json:"cultural,omitempty"`
	Lifestyle    *LifestyleFactors `json:"lifestyle,omitempty"`
}

// RawSignals are continuous inputs from an assessment. Nil fields were not
// measured.
type RawSignals struct {
	CurlPattern     *float64 `json:"curl_pattern,omitempty"`
	Thickness       *float64 `json:"thickness,omitempty"`
	WaterAbsorption *float64 `json:"water_absorption,omitempty"`
	StrandDensity   *float64 `json:"strand_density,omitempty"`
	LengthCM        *float64 `json:"length_cm,omitempty"`
	Hydration       *float64 `json:"hydration,omitempty"`
	Elasticity      *float64 `json:"elasticity,omitempty"`
	Shine           *float64 `json:"shine,omitempty"`
}
