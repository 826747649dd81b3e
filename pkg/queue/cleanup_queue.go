// Package queue holds the compensating-action queue for photo blobs. Asset
// deletion is best-effort by contract: a mutation never fails because its
// cleanup failed, so cleanup work is enqueued here and retried out of band.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harshsingh9817/datacollection/internal/util"
)

// CleanupTask is one pending blob deletion.
type CleanupTask struct {
	ID       string
	AssetRef string
	Attempts int
}

// CleanupQueueConfig configures the Redis-stream backed queue.
type CleanupQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	MaxRetries int
	Block      time.Duration
	MaxLen     int64
}

// CleanupQueue distributes asset-deletion tasks over a Redis stream.
type CleanupQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	maxRetries   int
	block        time.Duration
	maxLen       int64
	once         sync.Once
}

// NewCleanupQueue validates config and connects the Redis client.
func NewCleanupQueue(cfg CleanupQueueConfig) (*CleanupQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "datacollection:asset-cleanup"
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "cleaners"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &CleanupQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		maxRetries:   maxRetries,
		block:        block,
		maxLen:       maxLen,
	}, nil
}

// Enqueue schedules a blob for deletion.
func (q *CleanupQueue) Enqueue(ctx context.Context, assetRef string) error {
	return q.add(ctx, assetRef, 0)
}

func (q *CleanupQueue) add(ctx context.Context, assetRef string, attempts int) error {
	assetRef = strings.TrimSpace(assetRef)
	if assetRef == "" {
		return errors.New("asset ref required")
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"task_id":   util.NewID(),
			"asset_ref": assetRef,
			"attempts":  attempts,
		},
	}).Err()
}

// Start launches consumer goroutines. The handler performs the actual blob
// deletion; a failing task is re-queued until maxRetries, then dropped with a
// log line. Consumers stop when ctx is cancelled.
func (q *CleanupQueue) Start(ctx context.Context, concurrency int, handler func(context.Context, CleanupTask) error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := q.consumerBase + "-" + strconv.Itoa(i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *CleanupQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("cleanup queue group create failed", "err", err)
		}
	})
}

func (q *CleanupQueue) consumeLoop(ctx context.Context, consumer string, handler func(context.Context, CleanupTask) error) {
	for {
		if ctx.Err() != nil {
			return
		}
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    q.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			slog.Warn("cleanup queue read failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.block):
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *CleanupQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, CleanupTask) error) {
	task := decodeTask(msg)
	if task.AssetRef == "" {
		q.ack(ctx, msg.ID)
		return
	}
	if err := handler(ctx, task); err != nil {
		if task.Attempts+1 >= q.maxRetries {
			// Orphaned blob accepted; there is no cross-store transaction.
			slog.Warn("asset cleanup abandoned",
				"asset_ref", task.AssetRef,
				"attempts", task.Attempts+1,
				"err", err,
			)
		} else if addErr := q.add(ctx, task.AssetRef, task.Attempts+1); addErr != nil {
			slog.Warn("asset cleanup requeue failed", "asset_ref", task.AssetRef, "err", addErr)
		}
	}
	q.ack(ctx, msg.ID)
}

func (q *CleanupQueue) ack(ctx context.Context, msgID string) {
	if err := q.client.XAck(ctx, q.stream, q.group, msgID).Err(); err != nil {
		slog.Warn("cleanup queue ack failed", "msg_id", msgID, "err", err)
	}
}

func decodeTask(msg redis.XMessage) CleanupTask {
	task := CleanupTask{}
	if v, ok := msg.Values["task_id"].(string); ok {
		task.ID = v
	}
	if v, ok := msg.Values["asset_ref"].(string); ok {
		task.AssetRef = strings.TrimSpace(v)
	}
	if v, ok := msg.Values["attempts"].(string); ok {
		if n, err := strconv.Atoi(v); err == nil {
			task.Attempts = n
		}
	}
	return task
}
