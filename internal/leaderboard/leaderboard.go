package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizforge/rewards/internal/models"
	"github.com/redis/go-redis/v9"
)

const DefaultKey = "leaderboard:points"

// Board ranks users by total points in a Redis sorted set.
type Board struct {
	client *redis.Client
	key    string
}

func New(client *redis.Client, key string) *Board {
	if key == "" {
		key = DefaultKey
	}
	return &Board{client: client, key: key}
}

// Connect opens a client and checks the server is reachable.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (b *Board) UpdateScore(ctx context.Context, userID uuid.UUID, points int64) error {
	return b.client.ZAdd(ctx, b.key, redis.Z{
		Score:  float64(points),
		Member: userID.String(),
	}).Err()
}

func (b *Board) Top(ctx context.Context, limit int64) ([]models.LeaderboardEntry, error) {
	results, err := b.client.ZRevRangeWithScores(ctx, b.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard top: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		userID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			Rank:   int64(i) + 1,
			UserID: userID,
			Points: int64(z.Score),
		})
	}
	return entries, nil
}

// Rank returns the user's 1-based position, or nil if they are not ranked.
func (b *Board) Rank(ctx context.Context, userID uuid.UUID) (*models.LeaderboardEntry, error) {
	member := userID.String()
	rank, err := b.client.ZRevRank(ctx, b.key, member).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard rank: %w", err)
	}
	score, err := b.client.ZScore(ctx, b.key, member).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard score: %w", err)
	}
	return &models.LeaderboardEntry{Rank: rank + 1, UserID: userID, Points: int64(score)}, nil
}

// Replace swaps the whole board for the given scores in one MULTI block.
func (b *Board) Replace(ctx context.Context, scores map[uuid.UUID]int64) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key)
		if len(scores) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(scores))
		for id, points := range scores {
			members = append(members, redis.Z{Score: float64(points), Member: id.String()})
		}
		pipe.ZAdd(ctx, b.key, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("leaderboard replace: %w", err)
	}
	return nil
}
