package rewards

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizforge/rewards/internal/models"
)

// Notifier delivers user-facing events. Delivery happens after the state
// change is committed and never affects it.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type notificationWriter interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
}

// StoreNotifier persists notifications so clients can poll for them.
type StoreNotifier struct {
	w notificationWriter
}

func NewStoreNotifier(w notificationWriter) *StoreNotifier {
	return &StoreNotifier{w: w}
}

func (n *StoreNotifier) Notify(ctx context.Context, note models.Notification) error {
	return n.w.InsertNotification(ctx, &note)
}

func levelUpNotification(userID uuid.UUID, previous, level int) models.Notification {
	return models.Notification{
		UserID:  userID,
		Type:    models.NotificationLevelUp,
		Title:   "Level Up!",
		Message: fmt.Sprintf("You reached level %d!", level),
		Icon:    "trending-up",
		Data: encodeData(map[string]any{
			"previous_level": previous,
			"level":          level,
		}),
	}
}

func achievementNotification(userID uuid.UUID, a models.Achievement) models.Notification {
	return models.Notification{
		UserID:  userID,
		Type:    models.NotificationAchievement,
		Title:   "Achievement Unlocked!",
		Message: fmt.Sprintf("%s: %s (+%d points)", a.Name, a.Description, a.PointsReward),
		Icon:    a.Icon,
		Data: encodeData(map[string]any{
			"achievement_id": a.ID,
			"code":           a.Code,
			"tier":           a.Tier,
			"points_reward":  a.PointsReward,
			"celebrate":      Celebrates(a.Tier),
		}),
	}
}

func rewardNotification(userID, challengeID uuid.UUID, points int) models.Notification {
	return models.Notification{
		UserID:  userID,
		Type:    models.NotificationReward,
		Title:   "Reward Claimed!",
		Message: fmt.Sprintf("You earned %d points", points),
		Icon:    "gift",
		Data: encodeData(map[string]any{
			"challenge_id": challengeID,
			"points":       points,
		}),
	}
}

func encodeData(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
