package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	pkgkafka "SignalDesk/pkg/kafka"
)

// tickMessage is the ticks topic schema: {symbol, t, c, v}. t is seconds or
// milliseconds since epoch.
type tickMessage struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"`
	C      float64 `json:"c"`
	V      float64 `json:"v"`
}

// KafkaTicksHandler feeds ticks from the ticks topic into the price book.
type KafkaTicksHandler struct {
	topic   string
	sink    domrepo.TickSink
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, sink domrepo.TickSink, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

func (h *KafkaTicksHandler) Handle(_ context.Context, b []byte) error {
	var m tickMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.Symbol == "" || !(m.C > 0) {
		h.metrics.RecordError("consumer_invalid_tick")
		return fmt.Errorf("invalid tick %q price=%v", m.Symbol, m.C)
	}

	ts := time.Unix(m.T, 0)
	if m.T > 1e11 {
		ts = time.UnixMilli(m.T)
	}
	// event time to now
	h.metrics.RecordLatency("tick_ingest_lag", time.Since(ts).Seconds())

	h.sink.Update(models.Tick{Symbol: m.Symbol, Price: m.C, Volume: m.V, Timestamp: ts.UTC()})
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
