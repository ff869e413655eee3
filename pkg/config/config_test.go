package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
engine:
  universe: [BINANCE:BTCUSDT, AAPL]
`

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Engine.PoolTarget != 10 || c.Engine.HistoryBars != 250 || c.Engine.MinBars != 30 {
		t.Fatalf("engine defaults not applied: %+v", c.Engine)
	}
	if c.Engine.Interval != time.Minute {
		t.Fatalf("interval = %v", c.Engine.Interval)
	}
	if c.Engine.HighQualityRR != 2.5 {
		t.Fatalf("rr threshold = %v", c.Engine.HighQualityRR)
	}
	if c.Redis.Addr != "localhost:6379" || c.Server.Port != 8080 {
		t.Fatalf("infra defaults not applied: %+v %+v", c.Redis, c.Server)
	}
	if c.Kafka.Consumer.GroupID != "signaldesk" {
		t.Fatalf("consumer group = %q", c.Kafka.Consumer.GroupID)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty universe", "engine:\n  universe: []\n"},
		{"pool target zero", "engine:\n  pool_target: 0\n  universe: [AAPL]\n"},
		{"min bars above history", "engine:\n  history_bars: 40\n  min_bars: 50\n  universe: [AAPL]\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\nengine:\n  universe: [AAPL]\n"},
		{"finnhub without key", "finnhub:\n  enabled: true\nengine:\n  universe: [AAPL]\n"},
		{"bad analytics url", "analytics:\n  sentiment_url: not a url\nengine:\n  universe: [AAPL]\n"},
		{"bad log level", "logging:\n  level: loud\nengine:\n  universe: [AAPL]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	env := map[string]string{
		"SYMBOLS":         " ETH , SOL ,,",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"REDIS_ADDR":      "redis:6380",
		"FINNHUB_API_KEY": "secret",
		"POOL_TARGET":     "25",
	}
	c.applyEnv(func(k string) string { return env[k] })

	if len(c.Engine.Universe) != 2 || c.Engine.Universe[0] != "ETH" || c.Engine.Universe[1] != "SOL" {
		t.Fatalf("universe = %v", c.Engine.Universe)
	}
	if len(c.Kafka.Brokers) != 2 || c.Redis.Addr != "redis:6380" || c.Finnhub.APIKey != "secret" {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.Engine.PoolTarget != 25 {
		t.Fatalf("pool target = %d", c.Engine.PoolTarget)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	path := filepath.Join("..", "..", "config", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("config.yaml not found")
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Engine.Universe) == 0 {
		t.Fatalf("shipped universe is empty")
	}
}
