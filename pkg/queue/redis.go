package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"SignalDesk/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// QueueMode defines the operation mode of the queue.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
)

// RedisQueue is a list-backed job queue with delayed retries in a sorted set
// and a dead letter list.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	mode      QueueMode
	ctx       context.Context
	cancel    context.CancelFunc
	keyPrefix string
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisQueue creates a new Redis queue.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}
	if config.RetryPollInterval <= 0 {
		config.RetryPollInterval = 5 * time.Second
	}
	if config.PopTimeout <= 0 {
		config.PopTimeout = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		jobs:      make(map[string]Job),
		mode:      mode,
		ctx:       ctx,
		cancel:    cancel,
		keyPrefix: "signaldesk:queue",
	}

	for _, opt := range opts {
		opt(rq)
	}

	return rq
}

// RegisterJob registers a job for its message type. Must be called before Start.
func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.logger.Warn("queue.register ignored_in_producer_mode", logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("queue.register duplicate", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("queue.register ok", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start starts workers and the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.isRunning = true

	if r.mode == ModeProducerOnly {
		r.logger.Info("queue.start producer_only")
		return nil
	}

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryProcessor()

	r.logger.Info("queue.start ok",
		logger.Int("workers", r.config.Workers),
		logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels workers and waits for them, bounded by ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("queue.stop timeout", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		r.logger.Info("queue.stop ok")
		return nil
	}
}

// Enqueue adds a message to the queue.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.isRunning
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return fmt.Errorf("queue not running")
	}
	if r.mode != ModeProducerOnly && !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msgData, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := r.client.LPush(ctx, r.queueKey(), msgData).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// PublishMessage implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

// DeadLetters returns the number of messages that exhausted their retries.
func (r *RedisQueue) DeadLetters(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.deadLetterKey()).Result()
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		msg, ok := r.pop()
		if ok {
			r.dispatch(msg)
		}
	}
	r.logger.Debug("queue.worker stop", logger.Int("worker_id", id))
}

// pop blocks for at most PopTimeout. A Redis failure backs off for a second
// so a dead server does not spin the workers.
func (r *RedisQueue) pop() (Message, bool) {
	var msg Message
	res, err := r.client.BRPop(r.ctx, r.config.PopTimeout, r.queueKey()).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil), r.ctx.Err() != nil:
		return msg, false
	default:
		r.logger.Error("queue.brpop failed", logger.Error(err))
		sleepCtx(r.ctx, time.Second)
		return msg, false
	}
	// res is [key, value]
	if len(res) != 2 {
		return msg, false
	}
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.logger.Error("queue.decode failed", logger.Error(err))
		return msg, false
	}
	return msg, true
}

func (r *RedisQueue) dispatch(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("queue.process unknown_type", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.bury(msg)
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, msg.Payload)
	fields := []logger.Field{logger.String("id", msg.ID), logger.String("job", job.Name())}
	switch {
	case err == nil:
		r.logger.Debug("queue.process ok", append(fields, logger.Duration("elapsed_ms", time.Since(start)))...)
	case errors.Is(err, context.Canceled):
		r.logger.Warn("queue.process cancelled", fields...)
	case msg.Attempts >= r.config.RetryLimit:
		r.logger.Error("queue.process max_retries", append(fields, logger.Int("attempts", msg.Attempts+1), logger.Error(err))...)
		r.bury(msg)
	default:
		r.logger.Error("queue.process failed", append(fields, logger.Int("attempt", msg.Attempts+1), logger.Error(err))...)
		r.scheduleRetry(msg)
	}
}

// scheduleRetry parks msg in the retry sorted set scored by its due time in ms.
func (r *RedisQueue) scheduleRetry(msg Message) {
	msg.Attempts++
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("queue.retry marshal_failed", logger.Error(err))
		return
	}
	due := time.Now().Add(r.config.RetryDelay).UnixMilli()
	if err := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{Score: float64(due), Member: data}).Err(); err != nil {
		r.logger.Error("queue.retry zadd_failed", logger.Error(err))
	}
}

func (r *RedisQueue) bury(msg Message) {
	data, err := json.Marshal(msg)
	if err == nil {
		err = r.client.LPush(context.Background(), r.deadLetterKey(), data).Err()
	}
	if err != nil {
		r.logger.Error("queue.dlq push_failed", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) retryProcessor() {
	defer r.wg.Done()
	t := time.NewTicker(r.config.RetryPollInterval)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
			r.requeueDue()
		}
	}
}

// requeueDue moves due retries back to the main list. Only the replica whose
// ZREM removed the member pushes it, so a retry is requeued once.
func (r *RedisQueue) requeueDue() {
	upTo := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{Min: "-inf", Max: upTo}).Result()
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Error("queue.retry fetch_failed", logger.Error(err))
		}
		return
	}
	for _, member := range due {
		if n, err := r.client.ZRem(r.ctx, r.retryKey(), member).Result(); err != nil || n == 0 {
			continue
		}
		if err := r.client.LPush(r.ctx, r.queueKey(), member).Err(); err != nil {
			r.logger.Error("queue.retry requeue_failed", logger.Error(err))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (r *RedisQueue) queueKey() string { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }
