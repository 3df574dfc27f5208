package rewards

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/quizforge/rewards/internal/models"
)

// Snapshot is the cumulative state the achievement rules are evaluated
// against, taken after the attempt's own score and before any bonuses.
type Snapshot struct {
	QuizzesCompleted      int
	CorrectAnswers        int
	AttemptPerfect        bool
	AttemptQuestions      int
	MaxConsecutiveCorrect int
	StreakDays            int
	TotalPoints           int64
	Level                 int
	TimeSpentSeconds      int64
}

// Requirement is one unlock rule. The set of implementations is closed.
type Requirement interface {
	Satisfied(s Snapshot) bool
	requirement()
}

type QuizzesCompleted struct{ Value int }
type CorrectAnswers struct{ Value int }
type PerfectScore struct{ MinQuestions int }
type ConsecutiveCorrect struct{ Value int }
type StreakDays struct{ Value int }
type PointsEarned struct{ Value int64 }
type LevelReached struct{ Value int }
type TimeSpent struct{ Seconds int64 }

func (r QuizzesCompleted) Satisfied(s Snapshot) bool   { return s.QuizzesCompleted >= r.Value }
func (r CorrectAnswers) Satisfied(s Snapshot) bool     { return s.CorrectAnswers >= r.Value }
func (r ConsecutiveCorrect) Satisfied(s Snapshot) bool { return s.MaxConsecutiveCorrect >= r.Value }
func (r StreakDays) Satisfied(s Snapshot) bool         { return s.StreakDays >= r.Value }
func (r PointsEarned) Satisfied(s Snapshot) bool       { return s.TotalPoints >= r.Value }
func (r LevelReached) Satisfied(s Snapshot) bool       { return s.Level >= r.Value }
func (r TimeSpent) Satisfied(s Snapshot) bool          { return s.TimeSpentSeconds >= r.Seconds }

// PerfectScore requires this attempt to be perfect over at least MinQuestions.
func (r PerfectScore) Satisfied(s Snapshot) bool {
	return s.AttemptPerfect && s.AttemptQuestions >= r.MinQuestions
}

func (QuizzesCompleted) requirement()   {}
func (CorrectAnswers) requirement()     {}
func (PerfectScore) requirement()       {}
func (ConsecutiveCorrect) requirement() {}
func (StreakDays) requirement()         {}
func (PointsEarned) requirement()       {}
func (LevelReached) requirement()       {}
func (TimeSpent) requirement()          {}

// ParseRequirement turns a catalog row's (type, value) into its rule.
func ParseRequirement(kind models.RequirementType, value int) (Requirement, error) {
	switch kind {
	case models.RequirementQuizzesCompleted:
		return QuizzesCompleted{Value: value}, nil
	case models.RequirementCorrectAnswers:
		return CorrectAnswers{Value: value}, nil
	case models.RequirementPerfectScore:
		return PerfectScore{MinQuestions: value}, nil
	case models.RequirementConsecutiveCorrect:
		return ConsecutiveCorrect{Value: value}, nil
	case models.RequirementStreakDays:
		return StreakDays{Value: value}, nil
	case models.RequirementPointsEarned:
		return PointsEarned{Value: int64(value)}, nil
	case models.RequirementLevelReached:
		return LevelReached{Value: value}, nil
	case models.RequirementTimeSpent:
		return TimeSpent{Seconds: int64(value)}, nil
	}
	return nil, fmt.Errorf("%w: unknown requirement type %q", ErrInvariant, kind)
}

// Celebrates reports whether an unlock of this tier gets the enhanced animation.
func Celebrates(t models.Tier) bool {
	return t == models.TierGold || t == models.TierPlatinum
}

// EvaluateAchievements returns every catalog entry not in unlocked whose rule
// the snapshot satisfies. All entries are checked; several may unlock at once.
func EvaluateAchievements(catalog []models.Achievement, unlocked map[uuid.UUID]bool, s Snapshot) ([]models.Achievement, error) {
	var earned []models.Achievement
	for _, a := range catalog {
		if unlocked[a.ID] {
			continue
		}
		req, err := ParseRequirement(a.RequirementType, a.RequirementValue)
		if err != nil {
			return nil, fmt.Errorf("achievement %s: %w", a.Code, err)
		}
		if req.Satisfied(s) {
			earned = append(earned, a)
		}
	}
	return earned, nil
}
