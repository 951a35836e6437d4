package fraud

const (
	LevelVeryLow  = "very_low"
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelVeryHigh = "very_high"
)

// RiskBand maps a fraud probability to the reported risk level and the
// confidence in that verdict.
func RiskBand(probability float64) (risk string, confidence string) {
	switch {
	case probability < 0.1:
		return LevelVeryLow, LevelVeryHigh
	case probability < 0.3:
		return LevelLow, LevelHigh
	case probability < 0.5:
		return LevelMedium, LevelMedium
	case probability < 0.7:
		return LevelHigh, LevelMedium
	default:
		return LevelVeryHigh, LevelHigh
	}
}
