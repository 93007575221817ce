package mastery

import "github.com/example/yachay/pkg/models"

const (
	// MaxLevel is the star level of a mastered word
	MaxLevel = 5
	// MinExercisesForReview is how many exercises a word needs before it may lose a star
	MinExercisesForReview = 5
)

// Degradation reasons written to the activity stream
const (
	ReasonConsecutiveFailures = "consecutive_failures"
	ReasonAbandonment         = "abandonment"
)

// Rules are the promotion and degradation parameters of one mode
type Rules struct {
	// Correct answers needed to reach levels 2, 3, 4 and 5
	Thresholds [4]int
	// Minimum success rate required on top of Thresholds[3] for level 5
	MasteryRate float64
	// Consecutive failures that trigger a degradation
	FailureLimit int
	// Days after first sight during which a word cannot lose stars
	RecentWindowDays int
	// Failures charged for an abandoned exercise
	AbandonmentWeight int
	// Lowest level a word may hold in this mode
	Floor int
}

// Policy holds the rules for both modes
type Policy struct {
	Detection Rules
	Practice  Rules
}

// DefaultPolicy returns the production rules. Detection is the casual surface and
// rewards faster; practice holds learners to a stricter bar.
func DefaultPolicy() Policy {
	return Policy{
		Detection: Rules{
			Thresholds:        [4]int{2, 5, 8, 12},
			MasteryRate:       0.75,
			FailureLimit:      3,
			RecentWindowDays:  3,
			AbandonmentWeight: 1,
			Floor:             1,
		},
		Practice: Rules{
			Thresholds:        [4]int{3, 7, 12, 18},
			MasteryRate:       0.85,
			FailureLimit:      2,
			RecentWindowDays:  1,
			AbandonmentWeight: 2,
			Floor:             0,
		},
	}
}

// For returns the rules of mode. Callers validate the mode first.
func (p Policy) For(mode models.Mode) Rules {
	if mode == models.ModeDetection {
		return p.Detection
	}
	return p.Practice
}

// PromotionLevel returns the level a word at current should hold after reaching
// correct right answers with the given success rate. Level 5 carries the rate
// gate and is checked first; otherwise the highest unmet lower level wins.
func (r Rules) PromotionLevel(current, correct int, rate float64) int {
	switch {
	case current < 5 && correct >= r.Thresholds[3] && rate >= r.MasteryRate:
		return 5
	case current < 4 && correct >= r.Thresholds[2]:
		return 4
	case current < 3 && correct >= r.Thresholds[1]:
		return 3
	case current < 2 && correct >= r.Thresholds[0]:
		return 2
	}
	return current
}

// floor returns the lowest level an entry may hold when touched in mode.
// Words discovered through detection never drop below the detection floor.
func (p Policy) floor(entry *models.VocabularyEntry, mode models.Mode) int {
	f := p.For(mode).Floor
	if entry.DiscoveredVia == models.ModeDetection && p.Detection.Floor > f {
		f = p.Detection.Floor
	}
	return f
}

func clamp(level, lo, hi int) int {
	if level < lo {
		return lo
	}
	if level > hi {
		return hi
	}
	return level
}
