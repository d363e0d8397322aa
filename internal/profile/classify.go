package profile

// Thresholds for deriving categorical attributes from raw signals. Signals
// are normalized to [0,1] except length, which is in centimetres.
const (
	curlWavyAt   = 0.25
	curlCurlyAt  = 0.5
	curlCoilyAt  = 0.75
	textureMedAt = 0.3
	textureCrsAt = 0.7
	porosityNrAt = 0.35
	porosityHiAt = 0.7
	densityMedAt = 0.33
	densityThkAt = 0.66
	lengthMedCM  = 10.0
	lengthLongCM = 30.0
	maxLengthCM  = 200.0
)

// unit reports the signal value when present and within [0,1].
func unit(v *float64) (float64, bool) {
	if v == nil || *v != *v || *v < 0 || *v > 1 {
		return 0, false
	}
	return *v, true
}

func classifyType(curl *float64) HairType {
	v, ok := unit(curl)
	switch {
	case !ok:
		return HairTypeUnknown
	case v < curlWavyAt:
		return HairStraight
	case v < curlCurlyAt:
		return HairWavy
	case v < curlCoilyAt:
		return HairCurly
	default:
		return HairCoily
	}
}

func classifyTexture(thickness *float64) Texture {
	v, ok := unit(thickness)
	switch {
	case !ok:
		return TextureUnknown
	case v < textureMedAt:
		return TextureFine
	case v < textureCrsAt:
		return TextureMedium
	default:
		return TextureCoarse
	}
}

func classifyPorosity(absorption *float64) Porosity {
	v, ok := unit(absorption)
	switch {
	case !ok:
		return PorosityUnknown
	case v < porosityNrAt:
		return PorosityLow
	case v < porosityHiAt:
		return PorosityNormal
	default:
		return PorosityHigh
	}
}

func classifyDensity(strands *float64) Density {
	v, ok := unit(strands)
	switch {
	case !ok:
		return DensityUnknown
	case v < densityMedAt:
		return DensityThin
	case v < densityThkAt:
		return DensityMedium
	default:
		return DensityThick
	}
}

func classifyLength(cm *float64) Length {
	if cm == nil || *cm != *cm || *cm < 0 || *cm > maxLengthCM {
		return LengthUnknown
	}
	switch {
	case *cm < lengthMedCM:
		return LengthShort
	case *cm < lengthLongCM:
		return LengthMedium
	default:
		return LengthLong
	}
}
