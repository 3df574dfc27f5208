package rewards

import "github.com/quizforge/rewards/internal/models"

var (
	PointsMilestones = []int64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000}
	LevelMilestones  = []int64{5, 10, 15, 20, 25, 30, 40, 50, 75, 100}
	QuizMilestones   = []int64{1, 5, 10, 25, 50, 100, 250, 500, 1000}
	StreakMilestones = []int64{3, 7, 14, 30, 60, 100, 365}
)

// MilestoneStats are the current totals the threshold tables are checked against.
type MilestoneStats struct {
	TotalPoints  int64
	Level        int
	TotalQuizzes int
	StreakDays   int
}

// EvaluateMilestones returns every (type, threshold) the stats have reached
// that is not already in achieved, in table order.
func EvaluateMilestones(stats MilestoneStats, achieved map[models.MilestoneKey]bool) []models.MilestoneKey {
	tables := []struct {
		kind       models.MilestoneType
		current    int64
		thresholds []int64
	}{
		{models.MilestonePoints, stats.TotalPoints, PointsMilestones},
		{models.MilestoneLevel, int64(stats.Level), LevelMilestones},
		{models.MilestoneQuizzes, int64(stats.TotalQuizzes), QuizMilestones},
		{models.MilestoneStreak, int64(stats.StreakDays), StreakMilestones},
	}

	var reached []models.MilestoneKey
	for _, t := range tables {
		for _, threshold := range t.thresholds {
			key := models.MilestoneKey{Type: t.kind, Value: threshold}
			if achieved[key] {
				continue
			}
			if t.current >= threshold {
				reached = append(reached, key)
			}
		}
	}
	return reached
}
