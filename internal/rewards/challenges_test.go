package rewards

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/rewards/internal/models"
)

func TestChallengeRuleAdvance(t *testing.T) {
	perfect := Attempt{CorrectAnswers: 10, TotalQuestions: 10, TimeSpentSeconds: 240, ConsecutiveCorrect: 10}
	weak := Attempt{CorrectAnswers: 5, TotalQuestions: 10, TimeSpentSeconds: 600, ConsecutiveCorrect: 3}

	tests := []struct {
		name     string
		rule     ChallengeRule
		progress int
		attempt  Attempt
		want     int
	}{
		{"quiz count", QuizCountRule{}, 1, weak, 2},
		{"correct answers", CorrectAnswersRule{}, 10, weak, 15},
		{"perfect counts", PerfectScoreRule{}, 0, perfect, 1},
		{"imperfect ignored", PerfectScoreRule{}, 0, weak, 0},
		{"accuracy met", AccuracyRule{MinPercent: 80}, 2, perfect, 3},
		{"accuracy missed", AccuracyRule{MinPercent: 80}, 2, weak, 2},
		{"time adds seconds", TimeSpentRule{}, 100, weak, 700},
		{"streak keeps best", StreakRule{}, 8, weak, 8},
		{"streak raises", StreakRule{}, 8, perfect, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Advance(tt.progress, tt.attempt); got != tt.want {
				t.Errorf("Advance(%d) = %d, want %d", tt.progress, got, tt.want)
			}
		})
	}
}

func TestParseChallengeRuleUnknown(t *testing.T) {
	if _, err := ParseChallengeRule("speedrun", 1); !errors.Is(err, ErrInvariant) {
		t.Errorf("ParseChallengeRule(unknown) error = %v, want ErrInvariant", err)
	}
}

func TestAdvanceChallenges(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	row := func(code string, kind models.ChallengeType, target, progress int, done bool) models.UserDailyChallenge {
		return models.UserDailyChallenge{
			ID:              uuid.New(),
			ChallengeID:     uuid.New(),
			ChallengeDate:   "2026-03-02",
			Code:            code,
			ChallengeType:   kind,
			TargetValue:     target,
			CurrentProgress: progress,
			IsCompleted:     done,
		}
	}
	rows := []models.UserDailyChallenge{
		row("daily_quiz_3", models.ChallengeQuizCount, 3, 2, false),
		row("daily_correct_25", models.ChallengeCorrectAnswers, 25, 5, false),
		row("daily_perfect_1", models.ChallengePerfectScore, 1, 0, false),
		row("daily_time_900", models.ChallengeTimeSpent, 900, 900, true),
	}
	attempt := Attempt{CorrectAnswers: 7, TotalQuestions: 10, TimeSpentSeconds: 300, ConsecutiveCorrect: 4}

	updates, err := AdvanceChallenges(rows, attempt, now)
	if err != nil {
		t.Fatalf("AdvanceChallenges: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2 (perfect unchanged, time already complete)", len(updates))
	}

	quiz := updates[0]
	if quiz.Row.Code != "daily_quiz_3" || quiz.Row.CurrentProgress != 3 || !quiz.JustCompleted {
		t.Errorf("quiz update = %+v, want progress 3 and just completed", quiz)
	}
	if !quiz.Row.IsCompleted || quiz.Row.CompletedAt == nil || !quiz.Row.CompletedAt.Equal(now) {
		t.Errorf("quiz row not marked completed at %v: %+v", now, quiz.Row)
	}

	correct := updates[1]
	if correct.Row.CurrentProgress != 12 || correct.JustCompleted || correct.Row.IsCompleted {
		t.Errorf("correct update = %+v, want progress 12 and still open", correct)
	}

	if rows[0].CurrentProgress != 2 {
		t.Error("AdvanceChallenges modified its input")
	}
}

func TestAdvanceChallengesBadType(t *testing.T) {
	rows := []models.UserDailyChallenge{{Code: "broken", ChallengeType: "nope", TargetValue: 1}}
	_, err := AdvanceChallenges(rows, Attempt{CorrectAnswers: 1, TotalQuestions: 1}, time.Now())
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("error = %v, want ErrInvariant", err)
	}
}
