package rewards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/quizforge/rewards/internal/models"
)

// Store is the SQL implementation of Repository. Queries are written with ?
// placeholders and rebound for the connection's driver, so the same store
// runs on Postgres and SQLite.
type Store struct {
	db   sqlx.ExtContext
	root *sqlx.DB // nil inside a transaction
	now  func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, root: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// InTx runs fn against a store bound to a single transaction. Nested calls
// reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx Repository) error) error {
	if s.root == nil {
		return fn(s)
	}

	tx, err := s.root.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Store{db: tx, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ── User rewards ────────────────────────────────────────

const rewardsColumns = `user_id, total_points, current_level, consecutive_correct,
	max_consecutive_correct, total_time_seconds, total_quizzes, total_correct,
	streak_days, last_session_date, version, created_at, updated_at`

func (s *Store) GetOrCreateRewards(ctx context.Context, userID uuid.UUID) (*models.UserRewards, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO user_rewards (user_id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`),
		userID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert rewards: %w", err)
	}

	var r models.UserRewards
	err = sqlx.GetContext(ctx, s.db, &r, s.q(
		`SELECT `+rewardsColumns+` FROM user_rewards WHERE user_id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("get rewards: %w", err)
	}
	return &r, nil
}

// UpdateRewards writes r if the stored version still equals r.Version, and
// bumps the version on success.
func (s *Store) UpdateRewards(ctx context.Context, r *models.UserRewards) error {
	now := s.now()
	result, err := s.db.ExecContext(ctx, s.q(
		`UPDATE user_rewards SET
		    total_points = ?, current_level = ?,
		    consecutive_correct = ?, max_consecutive_correct = ?,
		    total_time_seconds = ?, total_quizzes = ?, total_correct = ?,
		    streak_days = ?, last_session_date = ?,
		    version = version + 1, updated_at = ?
		 WHERE user_id = ? AND version = ?`),
		r.TotalPoints, r.CurrentLevel,
		r.ConsecutiveCorrect, r.MaxConsecutiveCorrect,
		r.TotalTimeSeconds, r.TotalQuizzes, r.TotalCorrect,
		r.StreakDays, r.LastSessionDate,
		now, r.UserID, r.Version,
	)
	if err != nil {
		return fmt.Errorf("update rewards: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	r.Version++
	r.UpdatedAt = now
	return nil
}

func (s *Store) TopRewards(ctx context.Context, limit int) ([]models.UserRewards, error) {
	var rows []models.UserRewards
	err := sqlx.SelectContext(ctx, s.db, &rows, s.q(
		`SELECT `+rewardsColumns+` FROM user_rewards
		 ORDER BY total_points DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("top rewards: %w", err)
	}
	return rows, nil
}

// RewardsAfter pages through every rewards row in user id order, starting
// after the given id. Pass uuid.Nil for the first page.
func (s *Store) RewardsAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.UserRewards, error) {
	var rows []models.UserRewards
	err := sqlx.SelectContext(ctx, s.db, &rows, s.q(
		`SELECT `+rewardsColumns+` FROM user_rewards
		 WHERE user_id > ? ORDER BY user_id LIMIT ?`), after, limit)
	if err != nil {
		return nil, fmt.Errorf("page rewards: %w", err)
	}
	return rows, nil
}

func (s *Store) InsertRedemption(ctx context.Context, userID uuid.UUID, cost int64, reason string) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO point_redemptions (id, user_id, cost, reason, created_at) VALUES (?, ?, ?, ?, ?)`),
		uuid.New(), userID, cost, reason, s.now(),
	)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

// ── Attempts ────────────────────────────────────────────

func (s *Store) RecordAttempt(ctx context.Context, userID uuid.UUID, attemptID string) error {
	result, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO processed_attempts (user_id, attempt_id, processed_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, attempt_id) DO NOTHING`),
		userID, attemptID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrDuplicateAttempt
	}
	return nil
}

func (s *Store) SaveAttemptOutcome(ctx context.Context, userID uuid.UUID, attemptID, outcome string) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`UPDATE processed_attempts SET outcome = ? WHERE user_id = ? AND attempt_id = ?`),
		outcome, userID, attemptID,
	)
	if err != nil {
		return fmt.Errorf("save attempt outcome: %w", err)
	}
	return nil
}

func (s *Store) GetAttemptOutcome(ctx context.Context, userID uuid.UUID, attemptID string) (string, error) {
	var outcome string
	err := sqlx.GetContext(ctx, s.db, &outcome, s.q(
		`SELECT outcome FROM processed_attempts WHERE user_id = ? AND attempt_id = ?`),
		userID, attemptID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get attempt outcome: %w", err)
	}
	return outcome, nil
}

// ── Achievements ────────────────────────────────────────

func (s *Store) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	var catalog []models.Achievement
	err := sqlx.SelectContext(ctx, s.db, &catalog,
		`SELECT id, code, name, description, requirement_type, requirement_value,
		        points_reward, tier, icon
		 FROM achievements ORDER BY requirement_type, requirement_value`)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return catalog, nil
}

func (s *Store) ListUnlockedAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	var unlocked []models.UserAchievement
	err := sqlx.SelectContext(ctx, s.db, &unlocked, s.q(
		`SELECT user_id, achievement_id, unlocked_at FROM user_achievements
		 WHERE user_id = ? ORDER BY unlocked_at`), userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocked achievements: %w", err)
	}
	return unlocked, nil
}

// InsertUserAchievement reports false when the pair already existed.
func (s *Store) InsertUserAchievement(ctx context.Context, userID, achievementID uuid.UUID) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO user_achievements (user_id, achievement_id, unlocked_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, achievement_id) DO NOTHING`),
		userID, achievementID, s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("insert user achievement: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ── Milestones ──────────────────────────────────────────

const milestoneColumns = `id, user_id, milestone_type, milestone_value, achieved_at, notification_shown`

func (s *Store) ListMilestones(ctx context.Context, userID uuid.UUID) ([]models.Milestone, error) {
	var ms []models.Milestone
	err := sqlx.SelectContext(ctx, s.db, &ms, s.q(
		`SELECT `+milestoneColumns+` FROM milestones WHERE user_id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return ms, nil
}

// InsertMilestone reports false when (user, type, value) already existed.
func (s *Store) InsertMilestone(ctx context.Context, userID uuid.UUID, key models.MilestoneKey) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO milestones (id, user_id, milestone_type, milestone_value, achieved_at, notification_shown)
		 VALUES (?, ?, ?, ?, ?, FALSE)
		 ON CONFLICT (user_id, milestone_type, milestone_value) DO NOTHING`),
		uuid.New(), userID, key.Type, key.Value, s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("insert milestone: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s *Store) PendingMilestones(ctx context.Context, userID uuid.UUID) ([]models.Milestone, error) {
	var ms []models.Milestone
	err := sqlx.SelectContext(ctx, s.db, &ms, s.q(
		`SELECT `+milestoneColumns+` FROM milestones
		 WHERE user_id = ? AND notification_shown = FALSE
		 ORDER BY achieved_at, milestone_type, milestone_value`), userID)
	if err != nil {
		return nil, fmt.Errorf("pending milestones: %w", err)
	}
	return ms, nil
}

// MarkMilestoneShown is a no-op for a milestone that is already shown.
func (s *Store) MarkMilestoneShown(ctx context.Context, userID, milestoneID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, s.q(
		`UPDATE milestones SET notification_shown = TRUE
		 WHERE id = ? AND user_id = ? AND notification_shown = FALSE`),
		milestoneID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark milestone shown: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}
	return s.mustExist(ctx, `SELECT COUNT(*) FROM milestones WHERE id = ? AND user_id = ?`, milestoneID, userID)
}

func (s *Store) mustExist(ctx context.Context, query string, args ...interface{}) error {
	var count int
	if err := sqlx.GetContext(ctx, s.db, &count, s.q(query), args...); err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Daily challenges ────────────────────────────────────

const userChallengeSelect = `SELECT udc.id, udc.user_id, udc.challenge_id, udc.challenge_date,
	        udc.current_progress, udc.is_completed, udc.completed_at,
	        udc.points_claimed, udc.claimed_at,
	        dc.code, dc.name, dc.challenge_type, dc.target_value, dc.points_reward, dc.difficulty
	 FROM user_daily_challenges udc
	 JOIN daily_challenges dc ON dc.id = udc.challenge_id`

func (s *Store) ListActiveChallenges(ctx context.Context) ([]models.DailyChallenge, error) {
	var cs []models.DailyChallenge
	err := sqlx.SelectContext(ctx, s.db, &cs,
		`SELECT id, code, name, description, challenge_type, target_value,
		        points_reward, difficulty, is_active
		 FROM daily_challenges WHERE is_active = TRUE ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list active challenges: %w", err)
	}
	return cs, nil
}

// GetOrInitDailyChallenges back-fills a row for every active challenge the
// user has none for on date, then returns all of the user's rows for date.
func (s *Store) GetOrInitDailyChallenges(ctx context.Context, userID uuid.UUID, date string) ([]models.UserDailyChallenge, error) {
	active, err := s.ListActiveChallenges(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, c := range active {
		_, err := s.db.ExecContext(ctx, s.q(
			`INSERT INTO user_daily_challenges
			    (id, user_id, challenge_id, challenge_date, current_progress,
			     is_completed, points_claimed, created_at)
			 VALUES (?, ?, ?, ?, 0, FALSE, FALSE, ?)
			 ON CONFLICT (user_id, challenge_id, challenge_date) DO NOTHING`),
			uuid.New(), userID, c.ID, date, now,
		)
		if err != nil {
			return nil, fmt.Errorf("init daily challenge %s: %w", c.Code, err)
		}
	}

	var rows []models.UserDailyChallenge
	err = sqlx.SelectContext(ctx, s.db, &rows, s.q(
		userChallengeSelect+` WHERE udc.user_id = ? AND udc.challenge_date = ? ORDER BY dc.code`),
		userID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily challenges: %w", err)
	}
	return rows, nil
}

// UpdateChallengeProgress only moves an incomplete row forward. Losing that
// race is reported as ErrVersionConflict.
func (s *Store) UpdateChallengeProgress(ctx context.Context, row models.UserDailyChallenge) error {
	result, err := s.db.ExecContext(ctx, s.q(
		`UPDATE user_daily_challenges
		 SET current_progress = ?, is_completed = ?, completed_at = ?
		 WHERE id = ? AND is_completed = FALSE AND current_progress <= ?`),
		row.CurrentProgress, row.IsCompleted, row.CompletedAt,
		row.ID, row.CurrentProgress,
	)
	if err != nil {
		return fmt.Errorf("update challenge progress: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ClaimChallenge flips points_claimed on a completed row for date and returns
// the challenge's reward.
func (s *Store) ClaimChallenge(ctx context.Context, userID, challengeID uuid.UUID, date string) (int, error) {
	result, err := s.db.ExecContext(ctx, s.q(
		`UPDATE user_daily_challenges SET points_claimed = TRUE, claimed_at = ?
		 WHERE user_id = ? AND challenge_id = ? AND challenge_date = ?
		   AND is_completed = TRUE AND points_claimed = FALSE`),
		s.now(), userID, challengeID, date,
	)
	if err != nil {
		return 0, fmt.Errorf("claim challenge: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		var state struct {
			IsCompleted   bool `db:"is_completed"`
			PointsClaimed bool `db:"points_claimed"`
		}
		err := sqlx.GetContext(ctx, s.db, &state, s.q(
			`SELECT is_completed, points_claimed FROM user_daily_challenges
			 WHERE user_id = ? AND challenge_id = ? AND challenge_date = ?`),
			userID, challengeID, date,
		)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return 0, ErrNotFound
		case err != nil:
			return 0, fmt.Errorf("load claim target: %w", err)
		case state.PointsClaimed:
			return 0, ErrAlreadyClaimed
		default:
			return 0, ErrNotFound
		}
	}

	var reward int
	err = sqlx.GetContext(ctx, s.db, &reward, s.q(
		`SELECT points_reward FROM daily_challenges WHERE id = ?`), challengeID)
	if err != nil {
		return 0, fmt.Errorf("get challenge reward: %w", err)
	}
	return reward, nil
}

// ── Notifications ───────────────────────────────────────

func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if n.Data == "" {
		n.Data = "{}"
	}
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO notifications (id, user_id, type, title, message, icon, data, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, ?)`),
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Icon, n.Data, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListUnreadNotifications(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	var ns []models.Notification
	err := sqlx.SelectContext(ctx, s.db, &ns, s.q(
		`SELECT id, user_id, type, title, message, icon, data, is_read, created_at
		 FROM notifications WHERE user_id = ? AND is_read = FALSE
		 ORDER BY created_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return ns, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, s.q(
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`),
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
