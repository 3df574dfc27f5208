package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/quizforge/rewards/internal/logger"
	"github.com/quizforge/rewards/internal/models"
)

// syncPageSize is how many rewards rows a resync reads per query.
const syncPageSize = 1000

// Source pages through every user's rewards in user id order.
type Source interface {
	RewardsAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.UserRewards, error)
}

// Board is the ranking the scheduler keeps in step with the source.
type Board interface {
	Replace(ctx context.Context, scores map[uuid.UUID]int64) error
}

// Scheduler rebuilds the leaderboard from the database on an interval, so
// score updates dropped while Redis was unreachable do not persist.
type Scheduler struct {
	scheduler *gocron.Scheduler
	source    Source
	board     Board
	interval  time.Duration
	log       *logger.Logger
}

func New(source Source, board Board, interval time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		board:     board,
		interval:  interval,
		log:       log.With("component", "scheduler"),
	}
}

// Start runs one sync immediately and then every interval, in the background.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.syncLeaderboard)
	if err != nil {
		return fmt.Errorf("schedule leaderboard sync: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("scheduler started", "interval", s.interval.String())
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) syncLeaderboard() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.SyncLeaderboard(ctx); err != nil {
		s.log.Error("leaderboard sync failed", "error", err)
	}
}

// SyncLeaderboard replaces the board with the current database totals of
// every user.
func (s *Scheduler) SyncLeaderboard(ctx context.Context) error {
	scores := make(map[uuid.UUID]int64)
	after := uuid.Nil
	for {
		rows, err := s.source.RewardsAfter(ctx, after, syncPageSize)
		if err != nil {
			return fmt.Errorf("load rewards: %w", err)
		}
		for _, r := range rows {
			scores[r.UserID] = r.TotalPoints
		}
		if len(rows) < syncPageSize {
			break
		}
		after = rows[len(rows)-1].UserID
	}
	if err := s.board.Replace(ctx, scores); err != nil {
		return err
	}
	s.log.Debug("leaderboard synced", "users", len(scores))
	return nil
}
