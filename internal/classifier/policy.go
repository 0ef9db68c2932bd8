package classifier

// Default thresholds. Exclusion scores are negative, inclusion points positive.
const (
	DefaultMinAcceptScore     = 0
	DefaultScoreModernCurated = -30
	DefaultScoreModernLearned = -20
	DefaultScoreRecentYear    = -15
	DefaultScoreModernPattern = -10

	DefaultRecentYearFrom = 2008
	DefaultRecentYearTo   = 2099

	DefaultPointsCore     = 3
	DefaultPointsGeneral  = 3
	DefaultPointsWeak     = 1
	DefaultPointsVehicle  = 4
	DefaultPointsBicycle  = 4
	DefaultOriginalAt     = 3
	DefaultContextRunes   = 120

	HistoricalYearFrom = 1920
	HistoricalYearTo   = 1999
)

// Policy holds every tunable threshold of the classifier.
type Policy struct {
	MinAcceptScore     int `koanf:"min_accept_score"`
	ScoreModernCurated int `koanf:"score_modern_curated"`
	ScoreModernLearned int `koanf:"score_modern_learned"`
	ScoreRecentYear    int `koanf:"score_recent_year"`
	ScoreModernPattern int `koanf:"score_modern_pattern"`
	RecentYearFrom     int `koanf:"recent_year_from"`
	RecentYearTo       int `koanf:"recent_year_to"`

	PointsCore    int `koanf:"points_core"`
	PointsGeneral int `koanf:"points_general"`
	PointsWeak    int `koanf:"points_weak"`
	PointsVehicle int `koanf:"points_vehicle"`
	PointsBicycle int `koanf:"points_bicycle"`

	// OriginalAt is the score from which a listing counts as vintage_originale.
	// Scores in [0, OriginalAt) are ambiguous and produce learning candidates.
	OriginalAt int `koanf:"original_at"`

	CandidateContext int `koanf:"candidate_context"`
}

// DefaultPolicy returns the built-in thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinAcceptScore:     DefaultMinAcceptScore,
		ScoreModernCurated: DefaultScoreModernCurated,
		ScoreModernLearned: DefaultScoreModernLearned,
		ScoreRecentYear:    DefaultScoreRecentYear,
		ScoreModernPattern: DefaultScoreModernPattern,
		RecentYearFrom:     DefaultRecentYearFrom,
		RecentYearTo:       DefaultRecentYearTo,
		PointsCore:         DefaultPointsCore,
		PointsGeneral:      DefaultPointsGeneral,
		PointsWeak:         DefaultPointsWeak,
		PointsVehicle:      DefaultPointsVehicle,
		PointsBicycle:      DefaultPointsBicycle,
		OriginalAt:         DefaultOriginalAt,
		CandidateContext:   DefaultContextRunes,
	}
}
