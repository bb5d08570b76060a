package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vaidashi/restaurant-pos/internal/database"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// DayKey is the YYMMDD bucket a daily order number counter belongs to
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("060102")
}

// PostgresSequencer hands out per-day order sequence numbers with an atomic upsert
type PostgresSequencer struct {
	db     *database.Database
	logger logger.Logger
}

// NewPostgresSequencer creates a new PostgresSequencer
func NewPostgresSequencer(db *database.Database, logger logger.Logger) *PostgresSequencer {
	return &PostgresSequencer{
		db:     db,
		logger: logger,
	}
}

// Next returns the next number for day, starting at 1
func (s *PostgresSequencer) Next(ctx context.Context, day string) (int64, error) {
	var n int64

	err := s.db.DB.GetContext(ctx, &n, `
		INSERT INTO order_sequences (day, last_value)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = order_sequences.last_value + 1
		RETURNING last_value`,
		day,
	)
	if err != nil {
		s.logger.Error("Failed to allocate order sequence", "error", err, "day", day)
		return 0, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return n, nil
}

// RedisSequencer hands out per-day order sequence numbers with INCR
type RedisSequencer struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisSequencer creates a sequencer on an existing client. Keys expire
// after two days so stale counters clean themselves up.
func NewRedisSequencer(client *redis.Client, logger logger.Logger) *RedisSequencer {
	return &RedisSequencer{
		client: client,
		prefix: "pos:order_seq:",
		ttl:    48 * time.Hour,
		logger: logger,
	}
}

// Next returns the next number for day, starting at 1
func (s *RedisSequencer) Next(ctx context.Context, day string) (int64, error) {
	key := s.prefix + day

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to allocate order sequence from redis", "error", err, "day", day)
		return 0, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return incr.Val(), nil
}
