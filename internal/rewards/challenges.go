package rewards

import (
	"fmt"
	"time"

	"github.com/quizforge/rewards/internal/models"
)

// ChallengeRule advances a daily challenge's progress for one attempt.
// The set of implementations is closed.
type ChallengeRule interface {
	Advance(progress int, a Attempt) int
	challengeRule()
}

type QuizCountRule struct{}
type CorrectAnswersRule struct{}
type PerfectScoreRule struct{}
type TimeSpentRule struct{}

// StreakRule keeps the best in-attempt streak seen today.
type StreakRule struct{}

// AccuracyRule counts attempts at or above MinPercent accuracy.
//
// The catalog stores the percentage in target_value, so the same number is
// also the count of qualifying attempts needed to complete the challenge.
type AccuracyRule struct{ MinPercent int }

func (QuizCountRule) Advance(progress int, _ Attempt) int { return progress + 1 }

func (CorrectAnswersRule) Advance(progress int, a Attempt) int {
	return progress + a.CorrectAnswers
}

func (PerfectScoreRule) Advance(progress int, a Attempt) int {
	if a.IsPerfect() {
		return progress + 1
	}
	return progress
}

func (r AccuracyRule) Advance(progress int, a Attempt) int {
	if a.AccuracyAtLeast(r.MinPercent) {
		return progress + 1
	}
	return progress
}

func (TimeSpentRule) Advance(progress int, a Attempt) int {
	return progress + a.TimeSpentSeconds
}

func (StreakRule) Advance(progress int, a Attempt) int {
	return max(progress, a.ConsecutiveCorrect)
}

func (QuizCountRule) challengeRule()      {}
func (CorrectAnswersRule) challengeRule() {}
func (PerfectScoreRule) challengeRule()   {}
func (AccuracyRule) challengeRule()       {}
func (TimeSpentRule) challengeRule()      {}
func (StreakRule) challengeRule()         {}

func ParseChallengeRule(kind models.ChallengeType, target int) (ChallengeRule, error) {
	switch kind {
	case models.ChallengeQuizCount:
		return QuizCountRule{}, nil
	case models.ChallengeCorrectAnswers:
		return CorrectAnswersRule{}, nil
	case models.ChallengePerfectScore:
		return PerfectScoreRule{}, nil
	case models.ChallengeAccuracy:
		return AccuracyRule{MinPercent: target}, nil
	case models.ChallengeTimeSpent:
		return TimeSpentRule{}, nil
	case models.ChallengeStreak:
		return StreakRule{}, nil
	}
	return nil, fmt.Errorf("%w: unknown challenge type %q", ErrInvariant, kind)
}

// ChallengeUpdate is a row whose progress moved, with JustCompleted set when
// this attempt pushed it over its target.
type ChallengeUpdate struct {
	Row           models.UserDailyChallenge
	JustCompleted bool
}

// AdvanceChallenges applies one attempt to today's rows. Completed rows are
// left alone and rows whose progress did not change are not returned.
func AdvanceChallenges(rows []models.UserDailyChallenge, a Attempt, now time.Time) ([]ChallengeUpdate, error) {
	var updates []ChallengeUpdate
	for _, row := range rows {
		if row.IsCompleted {
			continue
		}
		rule, err := ParseChallengeRule(row.ChallengeType, row.TargetValue)
		if err != nil {
			return nil, fmt.Errorf("challenge %s: %w", row.Code, err)
		}

		progress := rule.Advance(row.CurrentProgress, a)
		if progress < row.CurrentProgress {
			return nil, fmt.Errorf("%w: challenge %s progress went from %d to %d",
				ErrInvariant, row.Code, row.CurrentProgress, progress)
		}
		if progress == row.CurrentProgress {
			continue
		}

		row.CurrentProgress = progress
		done := progress >= row.TargetValue
		if done {
			completedAt := now
			row.IsCompleted = true
			row.CompletedAt = &completedAt
		}
		updates = append(updates, ChallengeUpdate{Row: row, JustCompleted: done})
	}
	return updates, nil
}
