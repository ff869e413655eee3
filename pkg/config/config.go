package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Logging     LoggingConfig    `yaml:"logging"`
	Engine      EngineConfig     `yaml:"engine"`
	Redis       RedisConfig      `yaml:"redis"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Finnhub     FinnhubConfig    `yaml:"finnhub"`
	Analytics   AnalyticsConfig  `yaml:"analytics"`
	Queue       QueueConfig      `yaml:"queue"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	CORS            bool          `yaml:"cors" default:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	// Per-client token bucket for /api/evaluate.
	EvaluateBurst     float64 `yaml:"evaluate_burst" default:"10" validate:"gt=0"`
	EvaluatePerSecond float64 `yaml:"evaluate_per_second" default:"1" validate:"gt=0"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LoggingConfig struct {
	Level         string        `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format        string        `yaml:"format" default:"json" validate:"oneof=json console"`
	Output        string        `yaml:"output" default:"stdout"`
	CollectTopic  string        `yaml:"collect_topic"`
	CollectPeriod time.Duration `yaml:"collect_period" default:"30s"`
}

// EngineConfig drives the signal pool.
type EngineConfig struct {
	PoolTarget          int           `yaml:"pool_target" default:"10" validate:"min=1,max=500"`
	Interval            time.Duration `yaml:"interval" default:"1m" validate:"min=1s"`
	CallTimeout         time.Duration `yaml:"call_timeout" default:"10s" validate:"min=100ms"`
	HistoryBars         int           `yaml:"history_bars" default:"250" validate:"min=30"`
	MinBars             int           `yaml:"min_bars" default:"30" validate:"min=2"`
	HistoryCacheTTL     time.Duration `yaml:"history_cache_ttl" default:"1h"`
	MinCandidatePool    int           `yaml:"min_candidate_pool" default:"50" validate:"min=1"`
	MaxBatches          int           `yaml:"max_batches" default:"3" validate:"min=1"`
	Concurrency         int           `yaml:"concurrency" default:"8" validate:"min=1"`
	LockTTL             time.Duration `yaml:"lock_ttl" default:"30s"`
	PriceStaleAfter     time.Duration `yaml:"price_stale_after" default:"2m"`
	HighQualitySuccess  float64       `yaml:"high_quality_success" default:"75" validate:"gt=0,lte=100"`
	HighQualityDirScore float64       `yaml:"high_quality_direction" default:"70" validate:"gt=0,lte=100"`
	HighQualityRR       float64       `yaml:"high_quality_rr" default:"2.5" validate:"gt=0"`
	Seed                int64         `yaml:"seed"`
	Universe            []string      `yaml:"universe" validate:"required,min=1,dive,required"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr" default:"localhost:6379" validate:"required,hostname_port"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	PoolSize    int    `yaml:"pool_size" default:"10"`
	CachePrefix string `yaml:"cache_prefix" default:"signaldesk:cache"`
	StorePrefix string `yaml:"store_prefix" default:"signaldesk"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	EventsTopic  string   `yaml:"events_topic" default:"signaldesk.signal-events"`
	TicksTopic   string   `yaml:"ticks_topic"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"signaldesk"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"100"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

// ClickHouseConfig is required: it holds the daily candles history is read from.
type ClickHouseConfig struct {
	Host         string        `yaml:"host" default:"localhost" validate:"required"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"signaldesk"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	AsyncInsert  bool          `yaml:"async_insert"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecTime  time.Duration `yaml:"max_execution_time" default:"60s"`
	CandleTable  string        `yaml:"candle_table" default:"candles_1d"`
	EventTable   string        `yaml:"event_table" default:"signal_events"`
	WriteCandles bool          `yaml:"write_candles" default:"true"`
	FlushEvery   time.Duration `yaml:"flush_every" default:"30s"`
}

type FinnhubConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIKey         string        `yaml:"api_key"`
	WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
	Symbols        []string      `yaml:"symbols"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	ThrottleWindow time.Duration `yaml:"throttle_window" default:"250ms"`
}

// AnalyticsConfig points at the external sentiment and ML services.
// An empty URL disables that collaborator and neutral defaults are used.
type AnalyticsConfig struct {
	SentimentURL string        `yaml:"sentiment_url" validate:"omitempty,url"`
	PredictorURL string        `yaml:"predictor_url" validate:"omitempty,url"`
	Timeout      time.Duration `yaml:"timeout" default:"5s"`
	Retries      int           `yaml:"retries" default:"2"`
	CacheTTL     time.Duration `yaml:"cache_ttl" default:"10m"`
}

type QueueConfig struct {
	Enabled    bool          `yaml:"enabled" default:"true"`
	Workers    int           `yaml:"workers" default:"1"`
	RetryLimit int           `yaml:"retry_limit" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
	KeyPrefix  string        `yaml:"key_prefix" default:"signaldesk:queue"`
}

// Load reads a YAML file, applies struct defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present) and the YAML file, then overrides
// with environment variables and validates again.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.Engine.Universe = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("POOL_TARGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.PoolTarget = n
		}
	}
}

var validate = validator.New()

// Validate runs tag validation plus cross-field checks.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Finnhub.Enabled {
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required when finnhub is enabled")
		}
		if len(c.Finnhub.Symbols) == 0 {
			c.Finnhub.Symbols = c.Engine.Universe
		}
	}
	if c.Engine.MinBars > c.Engine.HistoryBars {
		return fmt.Errorf("engine.min_bars (%d) exceeds engine.history_bars (%d)", c.Engine.MinBars, c.Engine.HistoryBars)
	}
	return nil
}
