package rewards

import (
	"fmt"

	"github.com/quizforge/rewards/internal/models"
)

// Attempt is the raw result of one completed quiz session.
type Attempt struct {
	CorrectAnswers     int
	TotalQuestions     int
	TimeSpentSeconds   int
	ConsecutiveCorrect int // best streak observed during the attempt
}

func (a Attempt) IsPerfect() bool {
	return a.TotalQuestions > 0 && a.CorrectAnswers == a.TotalQuestions
}

// AccuracyAtLeast reports correct/total >= percent/100 without floating point.
func (a Attempt) AccuracyAtLeast(percent int) bool {
	return a.CorrectAnswers*100 >= a.TotalQuestions*percent
}

// Upper bounds on a single attempt. They keep score arithmetic and the
// cumulative INT columns far from overflow.
const (
	MaxQuestionsPerAttempt = 10000
	MaxAttemptSeconds      = 24 * 60 * 60
)

// ValidateAttempt rejects payloads the calculators cannot score.
func ValidateAttempt(a Attempt) error {
	switch {
	case a.TotalQuestions <= 0:
		return fmt.Errorf("%w: total_questions must be positive", ErrValidation)
	case a.TotalQuestions > MaxQuestionsPerAttempt:
		return fmt.Errorf("%w: total_questions must be at most %d", ErrValidation, MaxQuestionsPerAttempt)
	case a.CorrectAnswers < 0 || a.CorrectAnswers > a.TotalQuestions:
		return fmt.Errorf("%w: correct_answers must be between 0 and total_questions", ErrValidation)
	case a.TimeSpentSeconds < 0:
		return fmt.Errorf("%w: time_spent_seconds must not be negative", ErrValidation)
	case a.TimeSpentSeconds > MaxAttemptSeconds:
		return fmt.Errorf("%w: time_spent_seconds must be at most %d", ErrValidation, MaxAttemptSeconds)
	case a.ConsecutiveCorrect < 0 || a.ConsecutiveCorrect > a.TotalQuestions:
		return fmt.Errorf("%w: consecutive_correct must be between 0 and total_questions", ErrValidation)
	}
	return nil
}

// AccuracyBonus rewards 80%+ with 20 and 60%+ with 10.
func AccuracyBonus(a Attempt) int {
	if a.AccuracyAtLeast(80) {
		return 20
	}
	if a.AccuracyAtLeast(60) {
		return 10
	}
	return 0
}

// SpeedBonus rewards attempts finished under five and seven and a half minutes.
func SpeedBonus(timeSpentSeconds int) int {
	if timeSpentSeconds < 300 {
		return 15
	}
	if timeSpentSeconds < 450 {
		return 5
	}
	return 0
}

func PerfectBonus(a Attempt) int {
	if a.IsPerfect() {
		return 50
	}
	return 0
}

// StreakBonus pays 2 points per answer once the in-attempt streak reaches 5.
func StreakBonus(consecutiveCorrect int) int {
	if consecutiveCorrect >= 5 {
		return consecutiveCorrect * 2
	}
	return 0
}

// CalculateScore converts an attempt into points. The attempt must be valid.
func CalculateScore(a Attempt) models.ScoreBreakdown {
	b := models.ScoreBreakdown{
		Base:          a.CorrectAnswers * 10,
		AccuracyBonus: AccuracyBonus(a),
		SpeedBonus:    SpeedBonus(a.TimeSpentSeconds),
		PerfectBonus:  PerfectBonus(a),
		StreakBonus:   StreakBonus(a.ConsecutiveCorrect),
	}
	b.Total = b.Base + b.AccuracyBonus + b.SpeedBonus + b.PerfectBonus + b.StreakBonus
	return b
}

// NextStreak returns the stored consecutive-correct counter after an attempt.
// A perfect attempt extends the previous counter by its correct answers;
// anything else resets it.
//
// NOTE: this mixes a cross-attempt counter with an in-attempt answer count.
// It is kept as-is for compatibility with existing stored values.
func NextStreak(prev int, a Attempt) int {
	if a.IsPerfect() {
		return prev + a.CorrectAnswers
	}
	return 0
}

// MaxStreak is the new high-water mark of the consecutive-correct counter.
func MaxStreak(prevMax, newStreak, reported int) int {
	return max(prevMax, newStreak, reported)
}
