package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ── Request Types ─────────────────────────────────────────

type SubmitAttemptRequest struct {
	AttemptID          string `json:"attempt_id"`
	CorrectAnswers     int    `json:"correct_answers"`
	TotalQuestions     int    `json:"total_questions"`
	TimeSpentSeconds   int    `json:"time_spent_seconds"`
	ConsecutiveCorrect int    `json:"consecutive_correct"`
}

type RedeemRequest struct {
	Cost   int64  `json:"cost"`
	Reason string `json:"reason"`
}

// ── Response Types ────────────────────────────────────────

type ScoreBreakdown struct {
	Base          int `json:"base"`
	AccuracyBonus int `json:"accuracy_bonus"`
	SpeedBonus    int `json:"speed_bonus"`
	PerfectBonus  int `json:"perfect_bonus"`
	StreakBonus   int `json:"streak_bonus"`
	Total         int `json:"total"`
}

type UnlockedAchievement struct {
	ID           uuid.UUID `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Icon         string    `json:"icon"`
	Tier         Tier      `json:"tier"`
	PointsReward int       `json:"points_reward"`
	Celebrate    bool      `json:"celebrate"`
}

type CompletedChallenge struct {
	ChallengeID  uuid.UUID `json:"challenge_id"`
	Code         string    `json:"code"`
	PointsReward int       `json:"points_reward"`
}

// AttemptOutcome is the full result of processing one quiz attempt. It is
// persisted against the attempt id and replayed verbatim on resubmission.
type AttemptOutcome struct {
	AttemptID            string                `json:"attempt_id"`
	Score                ScoreBreakdown        `json:"score"`
	AchievementPoints    int                   `json:"achievement_points"`
	TotalPoints          int64                 `json:"total_points"`
	PreviousLevel        int                   `json:"previous_level"`
	Level                int                   `json:"level"`
	LeveledUp            bool                  `json:"leveled_up"`
	PointsForNextLevel   int64                 `json:"points_for_next_level"`
	ConsecutiveCorrect   int                   `json:"consecutive_correct"`
	StreakDays           int                   `json:"streak_days"`
	AchievementsUnlocked []UnlockedAchievement `json:"achievements_unlocked"`
	MilestonesReached    []MilestoneKeyJSON    `json:"milestones_reached"`
	ChallengesCompleted  []CompletedChallenge  `json:"challenges_completed"`
	Replayed             bool                  `json:"replayed"`
}

type MilestoneKeyJSON struct {
	Type  MilestoneType `json:"type"`
	Value int64         `json:"value"`
}

type RewardsSummaryResponse struct {
	TotalPoints           int64   `json:"total_points"`
	CurrentLevel          int     `json:"current_level"`
	LevelStartPoints      int64   `json:"level_start_points"`
	PointsForNextLevel    int64   `json:"points_for_next_level"`
	LevelProgress         float64 `json:"level_progress"`
	ConsecutiveCorrect    int     `json:"consecutive_correct"`
	MaxConsecutiveCorrect int     `json:"max_consecutive_correct"`
	TotalTimeSeconds      int64   `json:"total_time_seconds"`
	TotalQuizzes          int     `json:"total_quizzes"`
	TotalCorrect          int     `json:"total_correct"`
	StreakDays            int     `json:"streak_days"`
	LastSessionDate       string  `json:"last_session_date,omitempty"`
	AchievementsUnlocked  int     `json:"achievements_unlocked"`
}

type AchievementEntry struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

type ClaimChallengeResponse struct {
	ChallengeID   uuid.UUID `json:"challenge_id"`
	PointsAwarded int       `json:"points_awarded"`
	TotalPoints   int64     `json:"total_points"`
	Level         int       `json:"level"`
}

type RedeemResponse struct {
	TotalPoints int64 `json:"total_points"`
	Level       int   `json:"level"`
}

type LeaderboardEntry struct {
	Rank          int64     `json:"rank"`
	UserID        uuid.UUID `json:"user_id"`
	Points        int64     `json:"points"`
	IsCurrentUser bool      `json:"is_current_user"`
}

type LeaderboardResponse struct {
	Entries     []LeaderboardEntry `json:"entries"`
	CurrentUser *LeaderboardEntry  `json:"current_user,omitempty"`
}

type NotificationEntry struct {
	ID        uuid.UUID        `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Icon      string           `json:"icon"`
	Data      json.RawMessage  `json:"data,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type NotificationsResponse struct {
	Notifications []NotificationEntry `json:"notifications"`
	UnreadCount   int                 `json:"unread_count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
