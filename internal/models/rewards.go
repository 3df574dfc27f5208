package models

import (
	"time"

	"github.com/google/uuid"
)

// ── Per-user state ────────────────────────────────────────

type UserRewards struct {
	UserID                uuid.UUID `db:"user_id" json:"user_id"`
	TotalPoints           int64     `db:"total_points" json:"total_points"`
	CurrentLevel          int       `db:"current_level" json:"current_level"`
	ConsecutiveCorrect    int       `db:"consecutive_correct" json:"consecutive_correct"`
	MaxConsecutiveCorrect int       `db:"max_consecutive_correct" json:"max_consecutive_correct"`
	TotalTimeSeconds      int64     `db:"total_time_seconds" json:"total_time_seconds"`
	TotalQuizzes          int       `db:"total_quizzes" json:"total_quizzes"`
	TotalCorrect          int       `db:"total_correct" json:"total_correct"`
	StreakDays            int       `db:"streak_days" json:"streak_days"`
	LastSessionDate       *string   `db:"last_session_date" json:"last_session_date,omitempty"`
	Version               int64     `db:"version" json:"-"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// ── Achievements ──────────────────────────────────────────

type RequirementType string

const (
	RequirementQuizzesCompleted   RequirementType = "quizzes_completed"
	RequirementCorrectAnswers     RequirementType = "correct_answers"
	RequirementPerfectScore       RequirementType = "perfect_score"
	RequirementConsecutiveCorrect RequirementType = "consecutive_correct"
	RequirementStreakDays         RequirementType = "streak_days"
	RequirementPointsEarned       RequirementType = "points_earned"
	RequirementLevelReached       RequirementType = "level_reached"
	RequirementTimeSpent          RequirementType = "time_spent"
)

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

type Achievement struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Code             string          `db:"code" json:"code"`
	Name             string          `db:"name" json:"name"`
	Description      string          `db:"description" json:"description"`
	RequirementType  RequirementType `db:"requirement_type" json:"requirement_type"`
	RequirementValue int             `db:"requirement_value" json:"requirement_value"`
	PointsReward     int             `db:"points_reward" json:"points_reward"`
	Tier             Tier            `db:"tier" json:"tier"`
	Icon             string          `db:"icon" json:"icon"`
}

type UserAchievement struct {
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	AchievementID uuid.UUID `db:"achievement_id" json:"achievement_id"`
	UnlockedAt    time.Time `db:"unlocked_at" json:"unlocked_at"`
}

// ── Milestones ────────────────────────────────────────────

type MilestoneType string

const (
	MilestonePoints  MilestoneType = "points"
	MilestoneLevel   MilestoneType = "level"
	MilestoneQuizzes MilestoneType = "quizzes"
	MilestoneStreak  MilestoneType = "streak"
)

type Milestone struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	UserID            uuid.UUID     `db:"user_id" json:"user_id"`
	MilestoneType     MilestoneType `db:"milestone_type" json:"milestone_type"`
	MilestoneValue    int64         `db:"milestone_value" json:"milestone_value"`
	AchievedAt        time.Time     `db:"achieved_at" json:"achieved_at"`
	NotificationShown bool          `db:"notification_shown" json:"notification_shown"`
}

// MilestoneKey identifies a milestone independent of the user.
type MilestoneKey struct {
	Type  MilestoneType
	Value int64
}

// ── Daily challenges ──────────────────────────────────────

type ChallengeType string

const (
	ChallengeQuizCount      ChallengeType = "quiz_count"
	ChallengeCorrectAnswers ChallengeType = "correct_answers"
	ChallengePerfectScore   ChallengeType = "perfect_score"
	ChallengeAccuracy       ChallengeType = "accuracy"
	ChallengeTimeSpent      ChallengeType = "time_spent"
	ChallengeStreak         ChallengeType = "streak"
)

type DailyChallenge struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	Code          string        `db:"code" json:"code"`
	Name          string        `db:"name" json:"name"`
	Description   string        `db:"description" json:"description"`
	ChallengeType ChallengeType `db:"challenge_type" json:"challenge_type"`
	TargetValue   int           `db:"target_value" json:"target_value"`
	PointsReward  int           `db:"points_reward" json:"points_reward"`
	Difficulty    string        `db:"difficulty" json:"difficulty"`
	IsActive      bool          `db:"is_active" json:"is_active"`
}

// UserDailyChallenge is one user's row for one challenge on one day, joined
// with the catalog fields the tracker needs.
type UserDailyChallenge struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	UserID          uuid.UUID     `db:"user_id" json:"user_id"`
	ChallengeID     uuid.UUID     `db:"challenge_id" json:"challenge_id"`
	ChallengeDate   string        `db:"challenge_date" json:"challenge_date"`
	CurrentProgress int           `db:"current_progress" json:"current_progress"`
	IsCompleted     bool          `db:"is_completed" json:"is_completed"`
	CompletedAt     *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	PointsClaimed   bool          `db:"points_claimed" json:"points_claimed"`
	ClaimedAt       *time.Time    `db:"claimed_at" json:"claimed_at,omitempty"`
	Code            string        `db:"code" json:"code"`
	Name            string        `db:"name" json:"name"`
	ChallengeType   ChallengeType `db:"challenge_type" json:"challenge_type"`
	TargetValue     int           `db:"target_value" json:"target_value"`
	PointsReward    int           `db:"points_reward" json:"points_reward"`
	Difficulty      string        `db:"difficulty" json:"difficulty"`
}

// ── Notifications ─────────────────────────────────────────

type NotificationType string

const (
	NotificationLevelUp     NotificationType = "level_up"
	NotificationAchievement NotificationType = "achievement"
	NotificationReward      NotificationType = "reward"
)

type Notification struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	UserID    uuid.UUID        `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Icon      string           `db:"icon" json:"icon"`
	Data      string           `db:"data" json:"-"`
	Read      bool             `db:"is_read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
