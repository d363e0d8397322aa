package knowledge

// Practice is a documented traditional remedy or ritual. Practices are
// static reference data and never change after load.
type Practice struct {
	ID                   string        `yaml:"id" json:"id"`
	Name                 string        `yaml:"name" json:"name"`
	Description          string        `yaml:"description" json:"description"`
	Origin               string        `yaml:"origin" json:"origin"`
	Regions              []string      `yaml:"regions" json:"regions"`
	Concerns             []string      `yaml:"concerns" json:"concerns"`
	Ingredients          []Ingredient  `yaml:"ingredients" json:"ingredients"`
	Preparation          []string      `yaml:"preparation" json:"preparation"`
	Usage                Usage         `yaml:"usage" json:"usage"`
	CulturalSignificance string        `yaml:"cultural_significance" json:"cultural_significance"`
	History              string        `yaml:"history" json:"history"`
	Sacred               bool          `yaml:"sacred" json:"sacred"`
	Attribution          Attribution   `yaml:"attribution" json:"attribution"`
	ModernScience        ModernScience `yaml:"modern_science" json:"modern_science"`
}

// RichContext reports whether the practice carries enough cultural narrative
// to warrant a dedicated insight.
func (p Practice) RichContext() bool {
	return len(p.CulturalSignificance) >= 80 && p.History != ""
}

type Ingredient struct {
	Name                 string   `yaml:"name" json:"name"`
	ScientificName       string   `yaml:"scientific_name" json:"scientific_name"`
	Properties           []string `yaml:"properties" json:"properties"`
	CulturalSignificance string   `yaml:"cultural_significance" json:"cultural_significance"`
}

type Usage struct {
	Frequency string            `yaml:"frequency" json:"frequency"`
	Duration  string            `yaml:"duration" json:"duration"`
	Seasonal  map[string]string `yaml:"seasonal" json:"seasonal,omitempty"` // season -> variant
}

// Attribution is the required citation of a practice's origin and its
// benefit-sharing terms.
type Attribution struct {
	Source         string         `yaml:"source" json:"source"`
	Community      string         `yaml:"community" json:"community"`
	Elders         []string       `yaml:"elders" json:"elders"`
	Permissions    []Permission   `yaml:"permissions" json:"permissions"`
	BenefitSharing BenefitSharing `yaml:"benefit_sharing" json:"benefit_sharing"`
}

type Permission struct {
	Type       string   `yaml:"type" json:"type"`
	GrantedBy  string   `yaml:"granted_by" json:"granted_by"`
	Date       string   `yaml:"date" json:"date"`
	Conditions []string `yaml:"conditions" json:"conditions"`
}

type BenefitSharing struct {
	Percentage    float64  `yaml:"percentage" json:"percentage"`
	Beneficiaries []string `yaml:"beneficiaries" json:"beneficiaries"`
	Projects      []string `yaml:"projects" json:"projects"`
}

type ModernScience struct {
	Validated  bool     `yaml:"validated" json:"validated"`
	Evidence   string   `yaml:"evidence" json:"evidence"`
	Studies    []string `yaml:"studies" json:"studies"`
	Mechanisms []string `yaml:"mechanisms" json:"mechanisms"`
}

type Proverb struct {
	Text    string   `yaml:"text" json:"text"`
	Origin  string   `yaml:"origin" json:"origin"`
	Meaning string   `yaml:"meaning" json:"meaning"`
	Tags    []string `yaml:"tags" json:"tags"`
}

type Story struct {
	Title   string   `yaml:"title" json:"title"`
	Origin  string   `yaml:"origin" json:"origin"`
	Summary string   `yaml:"summary" json:"summary"`
	Tags    []string `yaml:"tags" json:"tags"`
}

// SeasonGuide is static seasonal reference content keyed by season name.
type SeasonGuide struct {
	Season string   `yaml:"season" json:"season"`
	Notes  []string `yaml:"notes" json:"notes"`
}

// document is the on-disk shape of the knowledge base.
type document struct {
	Version   string        `yaml:"version"`
	Practices []Practice    `yaml:"practices"`
	Proverbs  []Proverb     `yaml:"proverbs"`
	Stories   []Story       `yaml:"stories"`
	Seasons   []SeasonGuide `yaml:"seasons"`
}
