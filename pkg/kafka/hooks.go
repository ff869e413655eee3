package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Delivery is one fetched message as seen by hooks and handlers. Before hooks
// may rewrite Data; the handler receives the rewritten bytes.
type Delivery struct {
	Topic string
	Msg   kafka.Message
	Data  []byte
}

// ConsumerHook wraps each handler attempt. An error from Before skips the
// handler and counts as a failed attempt, so DLQ and commit rules apply.
type ConsumerHook interface {
	Before(ctx context.Context, d *Delivery) (context.Context, error)
	After(ctx context.Context, d *Delivery, err error)
	OnError(ctx context.Context, d *Delivery, err error)
}

// HookError tags a hook failure with a code such as ERR_VALIDATION.
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *HookError) Unwrap() error { return e.Err }

// HookFuncs adapts plain functions to ConsumerHook. Nil fields do nothing, so
// the zero value is the no-op hook.
type HookFuncs struct {
	BeforeFn  func(ctx context.Context, d *Delivery) (context.Context, error)
	AfterFn   func(ctx context.Context, d *Delivery, err error)
	OnErrorFn func(ctx context.Context, d *Delivery, err error)
}

func (h HookFuncs) Before(ctx context.Context, d *Delivery) (context.Context, error) {
	if h.BeforeFn == nil {
		return ctx, nil
	}
	return h.BeforeFn(ctx, d)
}

func (h HookFuncs) After(ctx context.Context, d *Delivery, err error) {
	if h.AfterFn != nil {
		h.AfterFn(ctx, d, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, d *Delivery, err error) {
	if h.OnErrorFn != nil {
		h.OnErrorFn(ctx, d, err)
	}
}

// HookChain runs Before in order and After in reverse. Panics inside hooks
// are contained: in Before they become an ERR_PANIC HookError, elsewhere
// they are dropped.
type HookChain []ConsumerHook

// NewHookChain drops nil hooks.
func NewHookChain(hooks ...ConsumerHook) HookChain {
	chain := make(HookChain, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			chain = append(chain, h)
		}
	}
	return chain
}

func (c HookChain) Before(ctx context.Context, d *Delivery) (context.Context, error) {
	for _, h := range c {
		next, err := guardedBefore(h, ctx, d)
		if err != nil {
			c.OnError(ctx, d, err)
			return ctx, err
		}
		ctx = next
	}
	return ctx, nil
}

func (c HookChain) After(ctx context.Context, d *Delivery, err error) {
	for i := len(c) - 1; i >= 0; i-- {
		swallowPanic(func() { c[i].After(ctx, d, err) })
	}
}

func (c HookChain) OnError(ctx context.Context, d *Delivery, err error) {
	for _, h := range c {
		swallowPanic(func() { h.OnError(ctx, d, err) })
	}
}

func swallowPanic(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

func guardedBefore(h ConsumerHook, ctx context.Context, d *Delivery) (out context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = ctx, &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("%v", r)}
		}
	}()
	return h.Before(ctx, d)
}

type ctxKey int

const (
	// CtxStartTime carries the time.Time the attempt started.
	CtxStartTime ctxKey = iota
	// CtxTraceID carries the trace_id header, when the producer set one.
	CtxTraceID
)

// ExtractTraceID returns the trace_id header value or "".
func ExtractTraceID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "trace_id" {
			return string(h.Value)
		}
	}
	return ""
}

// TraceHook stamps the attempt start and the trace id onto the handler context.
func TraceHook() ConsumerHook {
	return HookFuncs{BeforeFn: func(ctx context.Context, d *Delivery) (context.Context, error) {
		ctx = context.WithValue(ctx, CtxStartTime, time.Now())
		if id := ExtractTraceID(d.Msg); id != "" {
			ctx = context.WithValue(ctx, CtxTraceID, id)
		}
		return ctx, nil
	}}
}

var errNotJSON = errors.New("payload is not valid JSON")

// JSONValidationHook rejects non-JSON payloads before any handler runs.
func JSONValidationHook() ConsumerHook {
	return HookFuncs{BeforeFn: func(ctx context.Context, d *Delivery) (context.Context, error) {
		if !json.Valid(d.Data) {
			return ctx, &HookError{Code: "ERR_VALIDATION", Err: errNotJSON}
		}
		return ctx, nil
	}}
}
