package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	models "SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/service/ratelimit"
	"SignalDesk/internal/usecase"
	xhttp "SignalDesk/pkg/http"
	xlogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/queue"

	"github.com/labstack/echo/v4"
)

// Evaluator scores a symbol without persisting anything.
type Evaluator interface {
	Evaluate(ctx context.Context, symbol string, bars int) (*usecase.Evaluation, error)
}

// EventHistory returns the audit trail of one signal.
type EventHistory interface {
	History(ctx context.Context, signalID string) ([]models.SignalEvent, error)
}

// HealthCheck is one named dependency probe for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// SignalsEchoHandler serves the signal pool over Echo.
type SignalsEchoHandler struct {
	logger  *xlogger.Logger
	store   domrepo.SignalStore
	history EventHistory
	eval    Evaluator
	pool    usecase.Refiller
	queue   queue.QueueService
	limiter *ratelimit.Limiter
	checks  []HealthCheck
}

type HandlerOption func(*SignalsEchoHandler)

// WithHistory enables GET /api/signals/:id/events.
func WithHistory(h EventHistory) HandlerOption {
	return func(s *SignalsEchoHandler) { s.history = h }
}

// WithQueue makes refills asynchronous. Without it refills run inline.
func WithQueue(q queue.QueueService) HandlerOption {
	return func(s *SignalsEchoHandler) { s.queue = q }
}

func WithLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(s *SignalsEchoHandler) { s.limiter = l }
}

func WithHealthChecks(checks ...HealthCheck) HandlerOption {
	return func(s *SignalsEchoHandler) { s.checks = append(s.checks, checks...) }
}

func NewSignalsEchoHandler(logger *xlogger.Logger, store domrepo.SignalStore, eval Evaluator, pool usecase.Refiller, opts ...HandlerOption) *SignalsEchoHandler {
	h := &SignalsEchoHandler{logger: logger, store: store, eval: eval, pool: pool}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/signals", h.List)
	g.GET("/signals/:id", h.Get)
	g.GET("/signals/:id/events", h.Events)
	g.POST("/signals/refill", h.Refill)
	g.GET("/evaluate", h.Evaluate)
}

func (h *SignalsEchoHandler) List(c echo.Context) error {
	req := &models.ListSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var status *models.Status
	if req.Status != "" {
		st := models.Status(req.Status)
		status = &st
	}
	rows, err := h.store.Query(c.Request().Context(), status)
	if err != nil {
		h.logger.Error("api.list store_query", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("signal store unavailable").WithError(err))
	}
	total := int64(len(rows))
	if len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}
	return xhttp.ListResponse(c, rows, total)
}

func (h *SignalsEchoHandler) Get(c echo.Context) error {
	req := &models.GetSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.store.Get(c.Request().Context(), req.ID)
	if err != nil {
		return h.storeError(c, req.ID, err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *SignalsEchoHandler) Events(c echo.Context) error {
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("event history is disabled"))
	}
	req := &models.GetSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	if _, err := h.store.Get(ctx, req.ID); err != nil {
		return h.storeError(c, req.ID, err)
	}
	events, err := h.history.History(ctx, req.ID)
	if err != nil {
		h.logger.Error("api.events history", xlogger.String("signal_id", req.ID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("event history unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}

func (h *SignalsEchoHandler) storeError(c echo.Context, id string, err error) error {
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("signal %s not found", id))
	}
	h.logger.Error("api.get store_get", xlogger.String("signal_id", id), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("signal store unavailable").WithError(err))
}

// Evaluate scores a symbol on demand. Degenerate levels still return the
// breakdown with a reason and no signal.
func (h *SignalsEchoHandler) Evaluate(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("evaluate rate limit exceeded"))
	}
	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ev, err := h.eval.Evaluate(c.Request().Context(), req.Symbol, req.Bars)
	switch {
	case err == nil:
		return xhttp.SuccessResponse(c, models.EvaluateResponse{Signal: ev.Signal, Breakdown: ev.Breakdown, Bars: ev.Bars})
	case errors.Is(err, domrepo.ErrDegenerateLevels) && ev != nil:
		return xhttp.SuccessResponse(c, models.EvaluateResponse{Breakdown: ev.Breakdown, Bars: ev.Bars, Reason: err.Error()})
	case errors.Is(err, domrepo.ErrInsufficientHistory):
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableError(err.Error()).WithParam("symbol", req.Symbol))
	case errors.Is(err, domrepo.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("price history unavailable").WithError(err))
	default:
		h.logger.Error("api.evaluate failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("evaluation failed").WithError(err))
	}
}

type refillResponse struct {
	Requested int             `json:"requested"`
	Queued    bool            `json:"queued"`
	Added     []models.Signal `json:"added,omitempty"`
	Shortfall int             `json:"shortfall"`
}

// Refill queues a refill job, or runs it inline when no queue is set.
func (h *SignalsEchoHandler) Refill(c echo.Context) error {
	req := &models.RefillRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if h.queue != nil {
		if err := h.queue.PublishMessage(ctx, usecase.RefillJobType, usecase.RefillPayload{Count: req.Count}); err != nil {
			h.logger.Error("api.refill enqueue", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("refill queue unavailable").WithError(err))
		}
		return xhttp.AcceptedResponse(c, refillResponse{Requested: req.Count, Queued: true})
	}

	res, err := h.pool.Refill(ctx, req.Count)
	if err != nil {
		h.logger.Error("api.refill inline", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("refill failed").WithError(err))
	}
	return xhttp.AcceptedResponse(c, refillResponse{Requested: req.Count, Added: res.Selected, Shortfall: res.Shortfall})
}

// Health probes every dependency with a short deadline.
func (h *SignalsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			healthy = false
			status[chk.Name] = err.Error()
			continue
		}
		status[chk.Name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}
