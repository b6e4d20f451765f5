package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSource implements Source on a Redis stream read through a consumer
// group. Entries are acknowledged as soon as they are read; the job store
// owns the job state from then on.
type RedisSource struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
	maxLen   int64

	closeOnce sync.Once
	closing   chan struct{}
}

var _ Source = (*RedisSource)(nil)

// RedisSourceConfig holds configuration for RedisSource
type RedisSourceConfig struct {
	Stream string
	Group  string
	// Consumer names this process inside the group. Defaults to host and a
	// random suffix.
	Consumer string
	// Block bounds a single XREADGROUP call.
	Block time.Duration
	// MaxLen approximately caps the stream length.
	MaxLen int64
}

// DefaultRedisSourceConfig returns default source configuration
func DefaultRedisSourceConfig() RedisSourceConfig {
	return RedisSourceConfig{
		Stream: "speechcoach:analyses",
		Group:  "speechcoach-workers",
		Block:  5 * time.Second,
		MaxLen: 100_000,
	}
}

// NewRedisSource creates the consumer group if it does not exist yet.
func NewRedisSource(ctx context.Context, client *redis.Client, cfg RedisSourceConfig) (*RedisSource, error) {
	def := DefaultRedisSourceConfig()
	if cfg.Stream == "" {
		cfg.Stream = def.Stream
	}
	if cfg.Group == "" {
		cfg.Group = def.Group
	}
	if cfg.Block <= 0 {
		cfg.Block = def.Block
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = def.MaxLen
	}
	if cfg.Consumer == "" {
		host, _ := os.Hostname()
		cfg.Consumer = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	slog.Info("Redis source initialized",
		"stream", cfg.Stream,
		"group", cfg.Group,
		"consumer", cfg.Consumer)

	return &RedisSource{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
		block:    cfg.Block,
		maxLen:   cfg.MaxLen,
		closing:  make(chan struct{}),
	}, nil
}

func (s *RedisSource) Push(ctx context.Context, id uuid.UUID) error {
	if s.isClosed() {
		return common.ErrClosed
	}

	_, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{"id": id.String()},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add job to stream: %w", err)
	}

	slog.Debug("job id pushed to stream", "job_id", id, "stream", s.stream)
	return nil
}

func (s *RedisSource) Pop(ctx context.Context) (uuid.UUID, error) {
	for {
		if s.isClosed() {
			return uuid.Nil, common.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return uuid.Nil, err
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, ">"},
			Count:    1,
			Block:    s.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return uuid.Nil, ctx.Err()
			}
			return uuid.Nil, fmt.Errorf("failed to read from stream: %w", err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				s.ackMessage(ctx, msg.ID)

				raw, _ := msg.Values["id"].(string)
				id, err := uuid.Parse(raw)
				if err != nil {
					slog.Error("invalid stream entry", "message_id", msg.ID, "error", err)
					continue
				}
				return id, nil
			}
		}
	}
}

// Len returns the number of entries not yet delivered to the group.
func (s *RedisSource) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	info, err := s.client.XInfoGroups(ctx, s.stream).Result()
	if err != nil {
		return 0
	}
	for _, g := range info {
		if g.Name == s.group {
			return int(g.Lag)
		}
	}
	return 0
}

// Close stops Pop from reading further entries. The client is owned by the
// caller.
func (s *RedisSource) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	return nil
}

func (s *RedisSource) isClosed() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

func (s *RedisSource) ackMessage(ctx context.Context, messageID string) {
	if err := s.client.XAck(ctx, s.stream, s.group, messageID).Err(); err != nil {
		slog.Error("Failed to ack message", "message_id", messageID, "error", err)
	}
}

// isGroupExistsError checks if error is "BUSYGROUP Consumer Group name already exists"
func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
