package rewards

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/rewards/internal/models"
)

type memState struct {
	rewards       map[uuid.UUID]models.UserRewards
	attempts      map[string]string
	catalog       []models.Achievement
	unlocked      []models.UserAchievement
	milestones    []models.Milestone
	challenges    []models.DailyChallenge
	daily         []models.UserDailyChallenge
	redemptions   []int64
	notifications []models.Notification
}

func (s *memState) clone() *memState {
	c := &memState{
		rewards:       make(map[uuid.UUID]models.UserRewards, len(s.rewards)),
		attempts:      make(map[string]string, len(s.attempts)),
		catalog:       append([]models.Achievement(nil), s.catalog...),
		unlocked:      append([]models.UserAchievement(nil), s.unlocked...),
		milestones:    append([]models.Milestone(nil), s.milestones...),
		challenges:    append([]models.DailyChallenge(nil), s.challenges...),
		daily:         append([]models.UserDailyChallenge(nil), s.daily...),
		redemptions:   append([]int64(nil), s.redemptions...),
		notifications: append([]models.Notification(nil), s.notifications...),
	}
	for k, v := range s.rewards {
		c.rewards[k] = v
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	return c
}

// memRepo is an in-memory Repository. InTx holds the lock for the whole
// transaction and restores a snapshot when fn fails.
type memRepo struct {
	mu        *sync.Mutex
	st        *memState
	tx        bool
	conflicts *int
}

func newMemRepo() *memRepo {
	conflicts := 0
	return &memRepo{
		mu:        &sync.Mutex{},
		conflicts: &conflicts,
		st: &memState{
			rewards:  map[uuid.UUID]models.UserRewards{},
			attempts: map[string]string{},
		},
	}
}

var (
	achFirstQuiz = models.Achievement{
		ID: uuid.MustParse("a1d5e7c0-0001-4c3a-9e21-5f0b8d9c0001"), Code: "first_quiz", Name: "First Steps",
		Description: "Complete your first quiz", RequirementType: models.RequirementQuizzesCompleted,
		RequirementValue: 1, PointsReward: 10, Tier: models.TierBronze, Icon: "flag",
	}
	achPerfect10 = models.Achievement{
		ID: uuid.MustParse("a1d5e7c0-0003-4c3a-9e21-5f0b8d9c0003"), Code: "perfect_10", Name: "Flawless",
		Description: "Get every answer right on a 10-question quiz", RequirementType: models.RequirementPerfectScore,
		RequirementValue: 10, PointsReward: 50, Tier: models.TierGold, Icon: "star",
	}
	chQuiz3 = models.DailyChallenge{
		ID: uuid.MustParse("d4c1a9e0-0001-4b7f-8a10-3e2d1c0b0001"), Code: "daily_quiz_3", Name: "Hat Trick",
		ChallengeType: models.ChallengeQuizCount, TargetValue: 3, PointsReward: 30, Difficulty: "easy", IsActive: true,
	}
	chPerfect1 = models.DailyChallenge{
		ID: uuid.MustParse("d4c1a9e0-0003-4b7f-8a10-3e2d1c0b0003"), Code: "daily_perfect_1", Name: "Perfectionist",
		ChallengeType: models.ChallengePerfectScore, TargetValue: 1, PointsReward: 25, Difficulty: "medium", IsActive: true,
	}
)

func newSeededMemRepo() *memRepo {
	r := newMemRepo()
	r.st.catalog = []models.Achievement{achFirstQuiz, achPerfect10}
	r.st.challenges = []models.DailyChallenge{chQuiz3, chPerfect1}
	return r
}

func (r *memRepo) lock() func() {
	if r.tx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memRepo) InTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.tx {
		return fn(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.st.clone()
	if err := fn(&memRepo{mu: r.mu, st: r.st, tx: true, conflicts: r.conflicts}); err != nil {
		*r.st = *snapshot
		return err
	}
	return nil
}

func (r *memRepo) GetOrCreateRewards(ctx context.Context, userID uuid.UUID) (*models.UserRewards, error) {
	defer r.lock()()
	row, ok := r.st.rewards[userID]
	if !ok {
		row = models.UserRewards{UserID: userID, CurrentLevel: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		r.st.rewards[userID] = row
	}
	return &row, nil
}

func (r *memRepo) UpdateRewards(ctx context.Context, row *models.UserRewards) error {
	defer r.lock()()
	if *r.conflicts > 0 {
		*r.conflicts--
		return ErrVersionConflict
	}
	stored, ok := r.st.rewards[row.UserID]
	if !ok || stored.Version != row.Version {
		return ErrVersionConflict
	}
	row.Version++
	r.st.rewards[row.UserID] = *row
	return nil
}

func (r *memRepo) TopRewards(ctx context.Context, limit int) ([]models.UserRewards, error) {
	defer r.lock()()
	var rows []models.UserRewards
	for _, row := range r.st.rewards {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TotalPoints > rows[j].TotalPoints })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *memRepo) InsertRedemption(ctx context.Context, userID uuid.UUID, cost int64, reason string) error {
	defer r.lock()()
	r.st.redemptions = append(r.st.redemptions, cost)
	return nil
}

func attemptKey(userID uuid.UUID, attemptID string) string {
	return userID.String() + "|" + attemptID
}

func (r *memRepo) RecordAttempt(ctx context.Context, userID uuid.UUID, attemptID string) error {
	defer r.lock()()
	key := attemptKey(userID, attemptID)
	if _, ok := r.st.attempts[key]; ok {
		return ErrDuplicateAttempt
	}
	r.st.attempts[key] = ""
	return nil
}

func (r *memRepo) SaveAttemptOutcome(ctx context.Context, userID uuid.UUID, attemptID, outcome string) error {
	defer r.lock()()
	r.st.attempts[attemptKey(userID, attemptID)] = outcome
	return nil
}

func (r *memRepo) GetAttemptOutcome(ctx context.Context, userID uuid.UUID, attemptID string) (string, error) {
	defer r.lock()()
	outcome, ok := r.st.attempts[attemptKey(userID, attemptID)]
	if !ok {
		return "", ErrNotFound
	}
	return outcome, nil
}

func (r *memRepo) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	defer r.lock()()
	return append([]models.Achievement(nil), r.st.catalog...), nil
}

func (r *memRepo) ListUnlockedAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	defer r.lock()()
	var out []models.UserAchievement
	for _, ua := range r.st.unlocked {
		if ua.UserID == userID {
			out = append(out, ua)
		}
	}
	return out, nil
}

func (r *memRepo) InsertUserAchievement(ctx context.Context, userID, achievementID uuid.UUID) (bool, error) {
	defer r.lock()()
	for _, ua := range r.st.unlocked {
		if ua.UserID == userID && ua.AchievementID == achievementID {
			return false, nil
		}
	}
	r.st.unlocked = append(r.st.unlocked, models.UserAchievement{UserID: userID, AchievementID: achievementID, UnlockedAt: time.Now()})
	return true, nil
}

func (r *memRepo) ListMilestones(ctx context.Context, userID uuid.UUID) ([]models.Milestone, error) {
	defer r.lock()()
	var out []models.Milestone
	for _, m := range r.st.milestones {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) InsertMilestone(ctx context.Context, userID uuid.UUID, key models.MilestoneKey) (bool, error) {
	defer r.lock()()
	for _, m := range r.st.milestones {
		if m.UserID == userID && m.MilestoneType == key.Type && m.MilestoneValue == key.Value {
			return false, nil
		}
	}
	r.st.milestones = append(r.st.milestones, models.Milestone{
		ID: uuid.New(), UserID: userID, MilestoneType: key.Type, MilestoneValue: key.Value, AchievedAt: time.Now(),
	})
	return true, nil
}

func (r *memRepo) PendingMilestones(ctx context.Context, userID uuid.UUID) ([]models.Milestone, error) {
	defer r.lock()()
	var out []models.Milestone
	for _, m := range r.st.milestones {
		if m.UserID == userID && !m.NotificationShown {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) MarkMilestoneShown(ctx context.Context, userID, milestoneID uuid.UUID) error {
	defer r.lock()()
	for i, m := range r.st.milestones {
		if m.ID == milestoneID && m.UserID == userID {
			r.st.milestones[i].NotificationShown = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *memRepo) GetOrInitDailyChallenges(ctx context.Context, userID uuid.UUID, date string) ([]models.UserDailyChallenge, error) {
	defer r.lock()()
	for _, c := range r.st.challenges {
		if !c.IsActive || r.findDaily(userID, c.ID, date) >= 0 {
			continue
		}
		r.st.daily = append(r.st.daily, models.UserDailyChallenge{
			ID: uuid.New(), UserID: userID, ChallengeID: c.ID, ChallengeDate: date,
			Code: c.Code, Name: c.Name, ChallengeType: c.ChallengeType,
			TargetValue: c.TargetValue, PointsReward: c.PointsReward, Difficulty: c.Difficulty,
		})
	}
	var out []models.UserDailyChallenge
	for _, d := range r.st.daily {
		if d.UserID == userID && d.ChallengeDate == date {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memRepo) findDaily(userID, challengeID uuid.UUID, date string) int {
	for i, d := range r.st.daily {
		if d.UserID == userID && d.ChallengeID == challengeID && d.ChallengeDate == date {
			return i
		}
	}
	return -1
}

func (r *memRepo) UpdateChallengeProgress(ctx context.Context, row models.UserDailyChallenge) error {
	defer r.lock()()
	for i, d := range r.st.daily {
		if d.ID != row.ID {
			continue
		}
		if d.IsCompleted || d.CurrentProgress > row.CurrentProgress {
			return ErrVersionConflict
		}
		r.st.daily[i].CurrentProgress = row.CurrentProgress
		r.st.daily[i].IsCompleted = row.IsCompleted
		r.st.daily[i].CompletedAt = row.CompletedAt
		return nil
	}
	return ErrVersionConflict
}

func (r *memRepo) ClaimChallenge(ctx context.Context, userID, challengeID uuid.UUID, date string) (int, error) {
	defer r.lock()()
	i := r.findDaily(userID, challengeID, date)
	if i < 0 || !r.st.daily[i].IsCompleted {
		return 0, ErrNotFound
	}
	if r.st.daily[i].PointsClaimed {
		return 0, ErrAlreadyClaimed
	}
	now := time.Now()
	r.st.daily[i].PointsClaimed = true
	r.st.daily[i].ClaimedAt = &now
	return r.st.daily[i].PointsReward, nil
}

func (r *memRepo) InsertNotification(ctx context.Context, n *models.Notification) error {
	defer r.lock()()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.st.notifications = append(r.st.notifications, *n)
	return nil
}

func (r *memRepo) ListUnreadNotifications(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	defer r.lock()()
	var out []models.Notification
	for _, n := range r.st.notifications {
		if n.UserID == userID && !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memRepo) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	defer r.lock()()
	for i, n := range r.st.notifications {
		if n.ID == notificationID && n.UserID == userID {
			r.st.notifications[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *memRepo) countNotifications(userID uuid.UUID, kind models.NotificationType) int {
	defer r.lock()()
	n := 0
	for _, note := range r.st.notifications {
		if note.UserID == userID && note.Type == kind {
			n++
		}
	}
	return n
}
