package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SignalDesk/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []kafka.Message
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Committed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) Messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string { return h.topic }
func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Topic: "ticks", Value: []byte(`{"s":"BTC"}`)},
		kafka.Message{Topic: "ticks", Value: []byte(`{"s":"ETH"}`)},
	)
	var handled atomic.Int32
	c, err := NewConsumer(logger.NewNop(),
		WithReaderFactory(func(string) Reader { return reader }),
		WithConsumerWorkers(2))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	c.RegisterHandler(funcHandler{topic: "ticks", fn: func([]byte) error { handled.Add(1); return nil }})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool { return reader.Committed() == 2 })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if handled.Load() != 2 {
		t.Fatalf("expected 2 handled, got %d", handled.Load())
	}
}

func TestConsumer_RetriesThenDLQ(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "ticks", Key: []byte("k"), Value: []byte(`{}`)})
	dlq := &fakeWriter{}
	var attempts atomic.Int32
	c, _ := NewConsumer(logger.NewNop(),
		WithReaderFactory(func(string) Reader { return reader }),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerDLQ("ticks.dlq"),
		WithDLQWriter(dlq))
	c.RegisterHandler(funcHandler{topic: "ticks", fn: func([]byte) error {
		attempts.Add(1)
		return errors.New("boom")
	}})
	_ = c.Start()

	waitFor(t, func() bool { return reader.Committed() == 1 })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = c.Stop(ctx)

	if attempts.Load() != 3 {
		t.Fatalf("expected 1 try + 2 retries, got %d", attempts.Load())
	}
	msgs := dlq.Messages()
	if len(msgs) != 1 || msgs[0].Topic != "ticks.dlq" || string(msgs[0].Headers[0].Value) != "ticks" {
		t.Fatalf("unexpected DLQ content %+v", msgs)
	}
}

func TestHookChain_ValidationAndPanic(t *testing.T) {
	chain := NewHookChain(TraceHook(), nil, JSONValidationHook())
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}

	ctx, err := chain.Before(context.Background(), &Delivery{Topic: "t", Msg: km, Data: []byte(`{"ok":true}`)})
	if err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if ctx.Value(CtxTraceID) != "abc" {
		t.Fatalf("trace id not propagated")
	}
	if _, ok := ctx.Value(CtxStartTime).(time.Time); !ok {
		t.Fatalf("start time not set")
	}

	var failed int
	counting := HookFuncs{OnErrorFn: func(context.Context, *Delivery, error) { failed++ }}
	_, err = NewHookChain(counting, JSONValidationHook()).Before(context.Background(), &Delivery{Topic: "t", Msg: km, Data: []byte(`not json`)})
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_VALIDATION" {
		t.Fatalf("expected validation error, got %v", err)
	}
	if failed != 1 {
		t.Fatalf("OnError calls = %d, want 1", failed)
	}

	panicky := NewHookChain(HookFuncs{BeforeFn: func(context.Context, *Delivery) (context.Context, error) {
		panic("bad hook")
	}})
	_, err = panicky.Before(context.Background(), &Delivery{Topic: "t", Msg: km})
	if !errors.As(err, &he) || he.Code != "ERR_PANIC" {
		t.Fatalf("expected panic to become HookError, got %v", err)
	}
}

func TestProducer_EncodesPayloads(t *testing.T) {
	w := &fakeWriter{}
	p, err := NewProducer(WithWriter(w))
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	if err := p.Publish(context.Background(), "signals", []byte("id-1"), map[string]string{"type": "created"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.PublishBatch(context.Background(), "signals", []Message{{Value: "raw"}, {Value: []byte("bytes")}}); err != nil {
		t.Fatalf("batch: %v", err)
	}

	msgs := w.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	var decoded map[string]string
	if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil || decoded["type"] != "created" {
		t.Fatalf("unexpected first payload %s", msgs[0].Value)
	}
	if string(msgs[0].Key) != "id-1" || string(msgs[1].Value) != "raw" || string(msgs[2].Value) != "bytes" {
		t.Fatalf("unexpected encoding %+v", msgs)
	}
}
