package profile

const completenessStep = 0.1

// Completeness scores how much of the profile is populated. Each populated
// field adds a fixed step; the result is capped at 1.0 and can only grow as
// data arrives.
func Completeness(p Profile) float64 {
	filled := 0
	h := p.Hair
	if h.Type != "" && h.Type != HairTypeUnknown {
		filled++
	}
	if h.Texture != "" && h.Texture != TextureUnknown {
		filled++
	}
	if h.Porosity != "" && h.Porosity != PorosityUnknown {
		filled++
	}
	if h.Density != "" && h.Density != DensityUnknown {
		filled++
	}
	if h.Length != "" && h.Length != LengthUnknown {
		filled++
	}
	if len(h.Concerns) > 0 {
		filled++
	}
	if len(h.Goals) > 0 {
		filled++
	}
	if !h.Condition.LastAssessed.IsZero() {
		filled++
	}
	if p.Cultural.Background != "" && p.Cultural.Background != BackgroundNotSpecified {
		filled++
	}
	if p.Lifestyle.Climate.Region != "" || p.Lifestyle.StressLevel != "" {
		filled++
	}

	score := float64(filled) * completenessStep
	if score > 1 {
		score = 1
	}
	return score
}
