package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/quizforge/rewards/internal/logger"
	"github.com/quizforge/rewards/internal/models"
)

// Repository is the persistence boundary the engine needs. Every write is
// conditional or insert-ignore-conflict so concurrent requests cannot lose
// updates.
type Repository interface {
	InTx(ctx context.Context, fn func(tx Repository) error) error

	GetOrCreateRewards(ctx context.Context, userID uuid.UUID) (*models.UserRewards, error)
	UpdateRewards(ctx context.Context, r *models.UserRewards) error
	TopRewards(ctx context.Context, limit int) ([]models.UserRewards, error)
	InsertRedemption(ctx context.Context, userID uuid.UUID, cost int64, reason string) error

	RecordAttempt(ctx context.Context, userID uuid.UUID, attemptID string) error
	SaveAttemptOutcome(ctx context.Context, userID uuid.UUID, attemptID, outcome string) error
	GetAttemptOutcome(ctx context.Context, userID uuid.UUID, attemptID string) (string, error)

	ListAchievements(ctx context.Context) ([]models.Achievement, error)
	ListUnlockedAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error)
	InsertUserAchievement(ctx context.Context, userID, achievementID uuid.UUID) (bool, error)

	ListMilestones(ctx context.Context, userID uuid.UUID) ([]models.Milestone, error)
	InsertMilestone(ctx context.Context, userID uuid.UUID, key models.MilestoneKey) (bool, error)
	PendingMilestones(ctx context.Context, userID uuid.UUID) ([]models.Milestone, error)
	MarkMilestoneShown(ctx context.Context, userID, milestoneID uuid.UUID) error

	GetOrInitDailyChallenges(ctx context.Context, userID uuid.UUID, date string) ([]models.UserDailyChallenge, error)
	UpdateChallengeProgress(ctx context.Context, row models.UserDailyChallenge) error
	ClaimChallenge(ctx context.Context, userID, challengeID uuid.UUID, date string) (int, error)

	InsertNotification(ctx context.Context, n *models.Notification) error
	ListUnreadNotifications(ctx context.Context, userID uuid.UUID) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

// Leaderboard ranks users by total points.
type Leaderboard interface {
	UpdateScore(ctx context.Context, userID uuid.UUID, points int64) error
	Top(ctx context.Context, limit int64) ([]models.LeaderboardEntry, error)
	Rank(ctx context.Context, userID uuid.UUID) (*models.LeaderboardEntry, error)
}

// maxWriteAttempts bounds retries after an optimistic-concurrency conflict.
const maxWriteAttempts = 3

type Service struct {
	repo     Repository
	notifier Notifier
	board    Leaderboard
	clock    Clock
	log      *logger.Logger
}

type Option func(*Service)

func WithNotifier(n Notifier) Option       { return func(s *Service) { s.notifier = n } }
func WithLeaderboard(b Leaderboard) Option { return func(s *Service) { s.board = b } }
func WithClock(c Clock) Option             { return func(s *Service) { s.clock = c } }

func NewService(repo Repository, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: NewStoreNotifier(repo),
		log:      log.With("component", "rewards"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Attempt processing ──────────────────────────────────

// ProcessAttempt scores one completed quiz and applies every consequence:
// points, level, streaks, achievements, milestones and daily challenges.
// Resubmitting an attempt id returns the original outcome with Replayed set.
func (s *Service) ProcessAttempt(ctx context.Context, userID uuid.UUID, req models.SubmitAttemptRequest) (*models.AttemptOutcome, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	attemptID := strings.TrimSpace(req.AttemptID)
	if attemptID == "" || len(attemptID) > 100 {
		return nil, fmt.Errorf("%w: attempt_id must be 1-100 characters", ErrValidation)
	}
	attempt := Attempt{
		CorrectAnswers:     req.CorrectAnswers,
		TotalQuestions:     req.TotalQuestions,
		TimeSpentSeconds:   req.TimeSpentSeconds,
		ConsecutiveCorrect: req.ConsecutiveCorrect,
	}
	if err := ValidateAttempt(attempt); err != nil {
		return nil, err
	}

	var outcome *models.AttemptOutcome
	var events []models.Notification
	err := s.withRetry(ctx, "process attempt", func() error {
		return s.repo.InTx(ctx, func(tx Repository) error {
			var err error
			outcome, events, err = s.processAttemptTx(ctx, tx, userID, attemptID, attempt)
			return err
		})
	})
	if errors.Is(err, ErrDuplicateAttempt) {
		return s.replayAttempt(ctx, userID, attemptID)
	}
	if err != nil {
		return nil, s.unexpected("process attempt", userID, err)
	}

	s.log.Info("attempt processed",
		"user_id", userID,
		"attempt_id", attemptID,
		"points", outcome.Score.Total,
		"bonus", outcome.AchievementPoints,
		"level", outcome.Level,
	)

	s.emit(ctx, events)
	s.publishScore(ctx, userID, outcome.TotalPoints)
	return outcome, nil
}

func (s *Service) processAttemptTx(ctx context.Context, tx Repository, userID uuid.UUID, attemptID string, attempt Attempt) (*models.AttemptOutcome, []models.Notification, error) {
	if err := tx.RecordAttempt(ctx, userID, attemptID); err != nil {
		return nil, nil, err
	}

	stored, err := tx.GetOrCreateRewards(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := tx.ListAchievements(ctx)
	if err != nil {
		return nil, nil, err
	}
	unlockedRows, err := tx.ListUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	milestoneRows, err := tx.ListMilestones(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	unlocked := make(map[uuid.UUID]bool, len(unlockedRows))
	for _, ua := range unlockedRows {
		unlocked[ua.AchievementID] = true
	}
	achieved := make(map[models.MilestoneKey]bool, len(milestoneRows))
	for _, m := range milestoneRows {
		achieved[models.MilestoneKey{Type: m.MilestoneType, Value: m.MilestoneValue}] = true
	}

	now := s.clock.Now()
	today := now.Format(DateLayout)
	result := ApplyAttempt(*stored, attempt, today)

	candidates, err := EvaluateAchievements(catalog, unlocked, result.Snapshot)
	if err != nil {
		return nil, nil, err
	}

	outcome := &models.AttemptOutcome{
		AttemptID:            attemptID,
		Score:                result.Score,
		PreviousLevel:        stored.CurrentLevel,
		AchievementsUnlocked: []models.UnlockedAchievement{},
		MilestonesReached:    []models.MilestoneKeyJSON{},
		ChallengesCompleted:  []models.CompletedChallenge{},
	}
	var achievementEvents []models.Notification

	bonus := 0
	for _, a := range candidates {
		inserted, err := tx.InsertUserAchievement(ctx, userID, a.ID)
		if err != nil {
			return nil, nil, err
		}
		if !inserted {
			continue
		}
		bonus += a.PointsReward
		outcome.AchievementsUnlocked = append(outcome.AchievementsUnlocked, models.UnlockedAchievement{
			ID:           a.ID,
			Code:         a.Code,
			Name:         a.Name,
			Icon:         a.Icon,
			Tier:         a.Tier,
			PointsReward: a.PointsReward,
			Celebrate:    Celebrates(a.Tier),
		})
		achievementEvents = append(achievementEvents, achievementNotification(userID, a))
	}

	r := AddPoints(result.Rewards, int64(bonus))
	level, leveledUp := DetectLevelUp(stored.CurrentLevel, r.TotalPoints)
	if err := tx.UpdateRewards(ctx, &r); err != nil {
		return nil, nil, err
	}

	for _, key := range EvaluateMilestones(MilestoneStatsFor(r), achieved) {
		inserted, err := tx.InsertMilestone(ctx, userID, key)
		if err != nil {
			return nil, nil, err
		}
		if inserted {
			outcome.MilestonesReached = append(outcome.MilestonesReached, models.MilestoneKeyJSON{Type: key.Type, Value: key.Value})
		}
	}

	rows, err := tx.GetOrInitDailyChallenges(ctx, userID, today)
	if err != nil {
		return nil, nil, err
	}
	updates, err := AdvanceChallenges(rows, attempt, now)
	if err != nil {
		return nil, nil, err
	}
	for _, u := range updates {
		if err := tx.UpdateChallengeProgress(ctx, u.Row); err != nil {
			return nil, nil, err
		}
		if u.JustCompleted {
			outcome.ChallengesCompleted = append(outcome.ChallengesCompleted, models.CompletedChallenge{
				ChallengeID:  u.Row.ChallengeID,
				Code:         u.Row.Code,
				PointsReward: u.Row.PointsReward,
			})
		}
	}

	outcome.AchievementPoints = bonus
	outcome.TotalPoints = r.TotalPoints
	outcome.Level = level
	outcome.LeveledUp = leveledUp
	outcome.PointsForNextLevel = LevelThreshold(level + 1)
	outcome.ConsecutiveCorrect = r.ConsecutiveCorrect
	outcome.StreakDays = r.StreakDays

	data, err := json.Marshal(outcome)
	if err != nil {
		return nil, nil, fmt.Errorf("encode outcome: %w", err)
	}
	if err := tx.SaveAttemptOutcome(ctx, userID, attemptID, string(data)); err != nil {
		return nil, nil, err
	}

	var events []models.Notification
	if leveledUp {
		events = append(events, levelUpNotification(userID, stored.CurrentLevel, level))
	}
	events = append(events, achievementEvents...)
	return outcome, events, nil
}

func (s *Service) replayAttempt(ctx context.Context, userID uuid.UUID, attemptID string) (*models.AttemptOutcome, error) {
	raw, err := s.repo.GetAttemptOutcome(ctx, userID, attemptID)
	if err != nil {
		return nil, s.unexpected("replay attempt", userID, err)
	}
	var outcome models.AttemptOutcome
	if err := json.Unmarshal([]byte(raw), &outcome); err != nil {
		return nil, s.unexpected("replay attempt", userID, fmt.Errorf("%w: stored outcome for %s: %v", ErrInvariant, attemptID, err))
	}
	outcome.Replayed = true
	s.log.Info("attempt replayed", "user_id", userID, "attempt_id", attemptID)
	return &outcome, nil
}

// ── Rewards state ───────────────────────────────────────

func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*models.RewardsSummaryResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	r, err := s.repo.GetOrCreateRewards(ctx, userID)
	if err != nil {
		return nil, s.unexpected("summary", userID, err)
	}
	unlocked, err := s.repo.ListUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, s.unexpected("summary", userID, err)
	}

	level := LevelForPoints(r.TotalPoints)
	resp := &models.RewardsSummaryResponse{
		TotalPoints:           r.TotalPoints,
		CurrentLevel:          level,
		LevelStartPoints:      LevelThreshold(level),
		PointsForNextLevel:    LevelThreshold(level + 1),
		LevelProgress:         LevelProgress(r.TotalPoints),
		ConsecutiveCorrect:    r.ConsecutiveCorrect,
		MaxConsecutiveCorrect: r.MaxConsecutiveCorrect,
		TotalTimeSeconds:      r.TotalTimeSeconds,
		TotalQuizzes:          r.TotalQuizzes,
		TotalCorrect:          r.TotalCorrect,
		StreakDays:            r.StreakDays,
		AchievementsUnlocked:  len(unlocked),
	}
	if r.LastSessionDate != nil {
		resp.LastSessionDate = *r.LastSessionDate
	}
	if level != r.CurrentLevel {
		s.log.Error("stored level disagrees with points",
			"user_id", userID, "points", r.TotalPoints, "stored_level", r.CurrentLevel, "level", level)
	}
	return resp, nil
}

// Achievements returns the whole catalog with the user's unlock times.
func (s *Service) Achievements(ctx context.Context, userID uuid.UUID) ([]models.AchievementEntry, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	catalog, err := s.repo.ListAchievements(ctx)
	if err != nil {
		return nil, s.unexpected("achievements", userID, err)
	}
	unlocked, err := s.repo.ListUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, s.unexpected("achievements", userID, err)
	}

	byID := make(map[uuid.UUID]models.UserAchievement, len(unlocked))
	for _, ua := range unlocked {
		byID[ua.AchievementID] = ua
	}

	entries := make([]models.AchievementEntry, 0, len(catalog))
	for _, a := range catalog {
		e := models.AchievementEntry{Achievement: a}
		if ua, ok := byID[a.ID]; ok {
			at := ua.UnlockedAt
			e.Unlocked = true
			e.UnlockedAt = &at
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// maxReasonLength matches point_redemptions.reason.
const maxReasonLength = 255

// Redeem spends points. The balance check and the deduction are one
// conditional write.
func (s *Service) Redeem(ctx context.Context, userID uuid.UUID, req models.RedeemRequest) (*models.RedeemResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if req.Cost <= 0 {
		return nil, fmt.Errorf("%w: cost must be positive", ErrValidation)
	}
	if utf8.RuneCountInString(req.Reason) > maxReasonLength {
		return nil, fmt.Errorf("%w: reason must be at most %d characters", ErrValidation, maxReasonLength)
	}

	var resp *models.RedeemResponse
	err := s.withRetry(ctx, "redeem", func() error {
		return s.repo.InTx(ctx, func(tx Repository) error {
			r, err := tx.GetOrCreateRewards(ctx, userID)
			if err != nil {
				return err
			}
			if r.TotalPoints < req.Cost {
				return ErrInsufficientPoints
			}
			updated := AddPoints(*r, -req.Cost)
			if err := tx.UpdateRewards(ctx, &updated); err != nil {
				return err
			}
			if err := tx.InsertRedemption(ctx, userID, req.Cost, req.Reason); err != nil {
				return err
			}
			resp = &models.RedeemResponse{TotalPoints: updated.TotalPoints, Level: updated.CurrentLevel}
			return nil
		})
	})
	if errors.Is(err, ErrInsufficientPoints) {
		return nil, err
	}
	if err != nil {
		return nil, s.unexpected("redeem", userID, err)
	}

	s.log.Info("points redeemed", "user_id", userID, "cost", req.Cost, "reason", req.Reason)
	s.publishScore(ctx, userID, resp.TotalPoints)
	return resp, nil
}

// ── Milestones ──────────────────────────────────────────

func (s *Service) PendingMilestones(ctx context.Context, userID uuid.UUID) ([]models.Milestone, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	ms, err := s.repo.PendingMilestones(ctx, userID)
	if err != nil {
		return nil, s.unexpected("pending milestones", userID, err)
	}
	if ms == nil {
		ms = []models.Milestone{}
	}
	return ms, nil
}

func (s *Service) MarkMilestoneShown(ctx context.Context, userID, milestoneID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrNotAuthenticated
	}
	err := s.repo.MarkMilestoneShown(ctx, userID, milestoneID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return s.unexpected("mark milestone shown", userID, err)
	}
	return err
}

// ── Daily challenges ────────────────────────────────────

func (s *Service) DailyChallenges(ctx context.Context, userID uuid.UUID) ([]models.UserDailyChallenge, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	var rows []models.UserDailyChallenge
	err := s.repo.InTx(ctx, func(tx Repository) error {
		var err error
		rows, err = tx.GetOrInitDailyChallenges(ctx, userID, s.clock.Today())
		return err
	})
	if err != nil {
		return nil, s.unexpected("daily challenges", userID, err)
	}
	if rows == nil {
		rows = []models.UserDailyChallenge{}
	}
	return rows, nil
}

// ClaimChallenge pays out a completed challenge for today, exactly once.
func (s *Service) ClaimChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*models.ClaimChallengeResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	today := s.clock.Today()

	var resp *models.ClaimChallengeResponse
	var previousLevel int
	err := s.withRetry(ctx, "claim challenge", func() error {
		return s.repo.InTx(ctx, func(tx Repository) error {
			reward, err := tx.ClaimChallenge(ctx, userID, challengeID, today)
			if err != nil {
				return err
			}
			r, err := tx.GetOrCreateRewards(ctx, userID)
			if err != nil {
				return err
			}
			previousLevel = r.CurrentLevel
			updated := AddPoints(*r, int64(reward))
			if err := tx.UpdateRewards(ctx, &updated); err != nil {
				return err
			}
			resp = &models.ClaimChallengeResponse{
				ChallengeID:   challengeID,
				PointsAwarded: reward,
				TotalPoints:   updated.TotalPoints,
				Level:         updated.CurrentLevel,
			}
			return nil
		})
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyClaimed) {
		return nil, err
	}
	if err != nil {
		return nil, s.unexpected("claim challenge", userID, err)
	}

	s.log.Info("challenge claimed", "user_id", userID, "challenge_id", challengeID, "points", resp.PointsAwarded)
	events := []models.Notification{rewardNotification(userID, challengeID, resp.PointsAwarded)}
	if resp.Level > previousLevel {
		events = append(events, levelUpNotification(userID, previousLevel, resp.Level))
	}
	s.emit(ctx, events)
	s.publishScore(ctx, userID, resp.TotalPoints)
	return resp, nil
}

// ── Notifications ───────────────────────────────────────

func (s *Service) Notifications(ctx context.Context, userID uuid.UUID) (*models.NotificationsResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	ns, err := s.repo.ListUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, s.unexpected("notifications", userID, err)
	}

	entries := make([]models.NotificationEntry, 0, len(ns))
	for _, n := range ns {
		entries = append(entries, models.NotificationEntry{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			Icon:      n.Icon,
			Data:      json.RawMessage(n.Data),
			CreatedAt: n.CreatedAt,
		})
	}
	return &models.NotificationsResponse{Notifications: entries, UnreadCount: len(entries)}, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrNotAuthenticated
	}
	err := s.repo.MarkNotificationRead(ctx, userID, notificationID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return s.unexpected("mark notification read", userID, err)
	}
	return err
}

// ── Leaderboard ─────────────────────────────────────────

// GetLeaderboard reads the Redis board when one is configured and falls back
// to the database otherwise.
func (s *Service) GetLeaderboard(ctx context.Context, userID uuid.UUID, limit int) (*models.LeaderboardResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var entries []models.LeaderboardEntry
	var current *models.LeaderboardEntry
	if s.board != nil {
		var err error
		entries, err = s.board.Top(ctx, int64(limit))
		if err == nil {
			current, err = s.board.Rank(ctx, userID)
		}
		if err != nil {
			s.log.Warn("leaderboard read failed, using database", "error", err)
			entries, current = nil, nil
		}
	}
	// An empty board means the key is missing (flushed or not yet synced).
	if len(entries) == 0 {
		entries, current = nil, nil
		top, err := s.repo.TopRewards(ctx, limit)
		if err != nil {
			return nil, s.unexpected("leaderboard", userID, err)
		}
		for i, r := range top {
			entries = append(entries, models.LeaderboardEntry{Rank: int64(i) + 1, UserID: r.UserID, Points: r.TotalPoints})
		}
	}

	found := false
	for i := range entries {
		if entries[i].UserID == userID {
			entries[i].IsCurrentUser = true
			found = true
		}
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	resp := &models.LeaderboardResponse{Entries: entries}
	if !found && current != nil {
		current.IsCurrentUser = true
		resp.CurrentUser = current
	}
	return resp, nil
}

// ── Helpers ─────────────────────────────────────────────

func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < maxWriteAttempts {
			s.log.Warn("write conflict, retrying", "op", op, "attempt", attempt)
		}
	}
	s.log.Warn("write conflict, giving up", "op", op, "attempts", maxWriteAttempts)
	return err
}

// emit delivers notifications after the state change committed. Failures
// are logged and dropped.
func (s *Service) emit(ctx context.Context, events []models.Notification) {
	ctx = context.WithoutCancel(ctx)
	for i := range events {
		if err := s.notifier.Notify(ctx, events[i]); err != nil {
			s.log.Warn("notification failed", "user_id", events[i].UserID, "type", events[i].Type, "error", err)
		}
	}
}

func (s *Service) publishScore(ctx context.Context, userID uuid.UUID, points int64) {
	if s.board == nil {
		return
	}
	if err := s.board.UpdateScore(context.WithoutCancel(ctx), userID, points); err != nil {
		s.log.Warn("leaderboard update failed", "user_id", userID, "error", err)
	}
}

func (s *Service) unexpected(op string, userID uuid.UUID, err error) error {
	if errors.Is(err, ErrInvariant) {
		s.log.Error(op+": invariant violated", "user_id", userID, "error", err)
	} else {
		s.log.Error(op+" failed", "user_id", userID, "error", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
