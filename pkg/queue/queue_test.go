package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalDesk/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type refill struct {
	Count int `json:"count"`
}

type recordingJob struct {
	mu    sync.Mutex
	seen  []int
	fails int
}

func (j *recordingJob) Name() string { return "test refill" }
func (j *recordingJob) Type() string { return "refill" }

func (j *recordingJob) Handle(_ context.Context, payload interface{}) error {
	p, err := ParsePayload[refill](payload)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seen = append(j.seen, p.Count)
	if j.fails > 0 {
		j.fails--
		return errors.New("transient")
	}
	return nil
}

func (j *recordingJob) calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.seen)
}

func newTestQueue(t *testing.T, cfg *QueueConfig) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(logger.NewNop(), cfg, client, ModeProducerConsumer, WithKeyPrefix("t:queue")), mr
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func stop(t *testing.T, q *RedisQueue) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRedisQueue_ProcessesJob(t *testing.T) {
	q, _ := newTestQueue(t, &QueueConfig{PopTimeout: 50 * time.Millisecond})
	job := &recordingJob{}
	q.RegisterJob(job)
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stop(t, q)

	if err := q.Enqueue(context.Background(), "refill", refill{Count: 3}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	eventually(t, func() bool { return job.calls() == 1 })
	if job.seen[0] != 3 {
		t.Fatalf("payload not decoded, got %v", job.seen)
	}
}

func TestRedisQueue_RejectsUnknownType(t *testing.T) {
	q, _ := newTestQueue(t, nil)
	q.RegisterJob(&recordingJob{})
	if err := q.Enqueue(context.Background(), "refill", refill{}); err == nil {
		t.Fatalf("enqueue before start must fail")
	}
	_ = q.Start()
	defer stop(t, q)
	if err := q.Enqueue(context.Background(), "other", refill{}); err == nil {
		t.Fatalf("unknown type must be rejected")
	}
}

func TestRedisQueue_RetryThenDeadLetter(t *testing.T) {
	q, _ := newTestQueue(t, &QueueConfig{
		RetryLimit:        1,
		RetryDelay:        time.Millisecond,
		RetryPollInterval: 20 * time.Millisecond,
		PopTimeout:        50 * time.Millisecond,
	})
	job := &recordingJob{fails: 5}
	q.RegisterJob(job)
	_ = q.Start()
	defer stop(t, q)

	_ = q.Enqueue(context.Background(), "refill", refill{Count: 1})
	eventually(t, func() bool {
		n, _ := q.DeadLetters(context.Background())
		return n == 1
	})
	if job.calls() != 2 {
		t.Fatalf("expected first try plus one retry, got %d", job.calls())
	}
}

func TestParsePayload(t *testing.T) {
	got, err := ParsePayload[refill](json.RawMessage(`{"count":7}`))
	if err != nil || got.Count != 7 {
		t.Fatalf("raw message: %+v %v", got, err)
	}
	got, err = ParsePayload[refill](map[string]interface{}{"count": 2})
	if err != nil || got.Count != 2 {
		t.Fatalf("map: %+v %v", got, err)
	}
	if _, err := ParsePayload[refill](42); err == nil {
		t.Fatalf("expected error for unsupported payload")
	}
}
