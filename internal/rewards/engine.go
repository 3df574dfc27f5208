package rewards

import (
	"github.com/quizforge/rewards/internal/models"
)

// AttemptResult is the rewards row after an attempt's own score, before any
// achievement bonus, plus what the evaluators need to know about it.
type AttemptResult struct {
	Rewards  models.UserRewards
	Score    models.ScoreBreakdown
	Snapshot Snapshot
}

// ApplyAttempt folds one valid attempt into the stored rewards row. It does
// not touch the version; the store compares against the value that was read.
func ApplyAttempt(r models.UserRewards, a Attempt, today string) AttemptResult {
	score := CalculateScore(a)

	newStreak := NextStreak(r.ConsecutiveCorrect, a)

	r.StreakDays = NextStreakDays(r.StreakDays, r.LastSessionDate, today)
	r.LastSessionDate = &today
	r.TotalPoints += int64(score.Total)
	r.CurrentLevel = LevelForPoints(r.TotalPoints)
	r.ConsecutiveCorrect = newStreak
	r.MaxConsecutiveCorrect = MaxStreak(r.MaxConsecutiveCorrect, newStreak, a.ConsecutiveCorrect)
	r.TotalTimeSeconds += int64(a.TimeSpentSeconds)
	r.TotalQuizzes++
	r.TotalCorrect += a.CorrectAnswers

	return AttemptResult{
		Rewards: r,
		Score:   score,
		Snapshot: Snapshot{
			QuizzesCompleted:      r.TotalQuizzes,
			CorrectAnswers:        r.TotalCorrect,
			AttemptPerfect:        a.IsPerfect(),
			AttemptQuestions:      a.TotalQuestions,
			MaxConsecutiveCorrect: r.MaxConsecutiveCorrect,
			StreakDays:            r.StreakDays,
			TotalPoints:           r.TotalPoints,
			Level:                 r.CurrentLevel,
			TimeSpentSeconds:      r.TotalTimeSeconds,
		},
	}
}

// AddPoints changes the balance and re-derives the level from it.
func AddPoints(r models.UserRewards, delta int64) models.UserRewards {
	r.TotalPoints += delta
	if r.TotalPoints < 0 {
		r.TotalPoints = 0
	}
	r.CurrentLevel = LevelForPoints(r.TotalPoints)
	return r
}

// MilestoneStatsFor reads the milestone inputs off a rewards row.
func MilestoneStatsFor(r models.UserRewards) MilestoneStats {
	return MilestoneStats{
		TotalPoints:  r.TotalPoints,
		Level:        r.CurrentLevel,
		TotalQuizzes: r.TotalQuizzes,
		StreakDays:   r.StreakDays,
	}
}
