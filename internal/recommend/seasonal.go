package recommend

type overlayKey struct {
	season   Season
	category string
}

type overlay struct {
	reason       string
	instructions []string
	alternatives []string
}

// seasonalOverlays adjust recommendations by season and category. Pairs that
// are not listed pass through unchanged.
var seasonalOverlays = map[overlayKey]overlay{
	{SeasonHarmattan, CategoryMoisture}: {
		reason:       "The Harmattan wind is dry and dusty and strips moisture quickly",
		instructions: []string{"Apply daily instead of every other day", "Cover hair outdoors"},
		alternatives: []string{"prod-raw-shea-butter"},
	},
	{SeasonHarmattan, CategoryDailyRoutine}: {
		reason:       "Dust and dry air during the Harmattan cause tangles and breakage",
		instructions: []string{"Seal with a butter every morning", "Wear a satin-lined scarf outdoors and at night"},
	},
	{SeasonDry, CategoryMoisture}: {
		reason:       "Low humidity in the dry season pulls water from the hair",
		instructions: []string{"Layer a leave-in under the cream"},
		alternatives: []string{"prod-raw-shea-butter"},
	},
	{SeasonDry, CategoryWeeklyTreatment}: {
		reason:       "Hair needs longer conditioning in the dry season",
		instructions: []string{"Extend the deep conditioning step to 40 minutes"},
	},
	{SeasonRainy, CategoryMoisture}: {
		reason:       "High humidity in the rainy season makes heavy butters build up",
		instructions: []string{"Use half the usual amount", "Favour lighter gels"},
		alternatives: []string{"prod-aloe-light-gel"},
	},
	{SeasonRainy, CategoryGrowth}: {
		reason:       "A scalp that stays damp after rain is prone to irritation",
		instructions: []string{"Dry the scalp fully before applying serum"},
	},
	{SeasonWinter, CategoryMoisture}: {
		reason:       "Indoor heating dries hair in winter",
		instructions: []string{"Deep condition weekly", "Run a humidifier at night"},
		alternatives: []string{"prod-raw-shea-butter"},
	},
	{SeasonSummer, CategoryDailyRoutine}: {
		reason:       "Sun and chlorine weaken the cuticle in summer",
		instructions: []string{"Mist with UV protection before going out", "Rinse after swimming"},
		alternatives: []string{"prod-uv-shield-mist"},
	},
}

// applySeasonalAdjustment overlays the seasonal block for rec's category.
// Recommendations that already carry an adjustment keep it.
func applySeasonalAdjustment(rec *Recommendation, season Season) {
	if season == "" || rec.SeasonalAdjustment != nil {
		return
	}
	o, ok := seasonalOverlays[overlayKey{season, rec.Category}]
	if !ok {
		return
	}
	rec.SeasonalAdjustment = &SeasonalAdjustment{
		Season:                season,
		Reason:                o.reason,
		ModifiedInstructions:  o.instructions,
		AlternativeProductIDs: o.alternatives,
	}
}
