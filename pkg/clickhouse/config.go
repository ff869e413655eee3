package clickhouse

import (
	"net"
	"strconv"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// ClientConfig collects connection, pool and query settings for NewClient.
type ClientConfig struct {
	Host string
	Port int
	Auth ch.Auth

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration

	UseHTTP     bool
	AsyncInsert bool
	// MaxExecTime becomes the max_execution_time setting, in whole seconds.
	MaxExecTime time.Duration
}

type ClientOption func(*ClientConfig)

func defaultConfig() *ClientConfig {
	return &ClientConfig{
		Port:            9000,
		Auth:            ch.Auth{Database: "signaldesk", Username: "default"},
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     30 * time.Second,
	}
}

// WithAddr sets the host. A non-positive port keeps 9000.
func WithAddr(host string, port int) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		if port > 0 {
			c.Port = port
		}
	}
}

func WithDatabase(name string) ClientOption {
	return func(c *ClientConfig) {
		if name != "" {
			c.Auth.Database = name
		}
	}
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) { c.Auth.Username, c.Auth.Password = user, password }
}

func WithMaxConnections(open, idle int) ClientOption {
	return func(c *ClientConfig) { c.MaxOpenConns, c.MaxIdleConns = open, idle }
}

// WithTimeouts overrides the dial and read timeouts that are positive.
func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.DialTimeout = positiveOr(dial, c.DialTimeout)
		c.ReadTimeout = positiveOr(read, c.ReadTimeout)
	}
}

// WithHTTP selects the HTTP interface (port 8123) instead of the native protocol.
func WithHTTP(on bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = on }
}

// WithAsyncInsert lets the server buffer small audit inserts. Inserts still
// wait for the flush before returning.
func WithAsyncInsert(on bool) ClientOption {
	return func(c *ClientConfig) { c.AsyncInsert = on }
}

func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}

func positiveOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

func buildOptions(cfg *ClientConfig) *ch.Options {
	o := &ch.Options{
		Addr:        []string{net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))},
		Protocol:    ch.Native,
		Auth:        cfg.Auth,
		Settings:    ch.Settings{},
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	}
	if cfg.UseHTTP {
		o.Protocol = ch.HTTP
	}
	if cfg.MaxExecTime > 0 {
		o.Settings["max_execution_time"] = int(cfg.MaxExecTime.Seconds())
	}
	if cfg.AsyncInsert {
		o.Settings["async_insert"] = 1
		o.Settings["wait_for_async_insert"] = 1
	}
	return o
}
