package timeline

// Score bounds, inclusive.
const (
	MinScore = 0
	MaxScore = 100
)

// Band is a named score range.
type Band struct {
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

// ValidScore reports whether score is within [MinScore, MaxScore].
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// ScoreLabel returns the band name for score.
func ScoreLabel(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 70:
		return "Good"
	case score >= 50:
		return "Normal"
	case score >= 30:
		return "Fair"
	}
	return "Low"
}

// ScoreEmoji is finer grained than ScoreLabel below 30.
func ScoreEmoji(score int) string {
	switch {
	case score >= 90:
		return "🤩"
	case score >= 70:
		return "😊"
	case score >= 50:
		return "🙂"
	case score >= 30:
		return "😐"
	case score >= 10:
		return "😕"
	}
	return "😢"
}

// ScoreBand combines ScoreLabel and ScoreEmoji.
func ScoreBand(score int) Band {
	return Band{Label: ScoreLabel(score), Emoji: ScoreEmoji(score)}
}
