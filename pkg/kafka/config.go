package kafka

import "time"

// ProducerConfig is assembled from ProducerOptions by NewProducer.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int // -1 waits for all in-sync replicas
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	BatchSize    int
	BatchTimeout time.Duration
	// HashByKey routes equal keys to one partition so per-signal events stay ordered.
	HashByKey bool
	Writer    Writer
}

type ProducerOption func(*ProducerConfig)

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithCompression accepts gzip, snappy, lz4 or zstd. Anything else means gzip.
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) { c.RequiredAcks = acks }
}

func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) { c.MaxAttempts = n }
}

func WithBatching(size int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) { c.BatchSize, c.BatchTimeout = size, linger }
}

func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(c *ProducerConfig) { c.WriteTimeout = d }
}

func WithHashByKey(on bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = on }
}

// WithWriter bypasses broker dialing. Tests pass an in-memory Writer.
func WithWriter(w Writer) ProducerOption {
	return func(c *ProducerConfig) { c.Writer = w }
}

// ConsumerConfig is assembled from ConsumerOptions by NewConsumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	AutoOffsetReset string // earliest or latest, for groups without a committed offset
	WorkerCount     int
	BufferSize      int
	RetryMax        int
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	DLQTopic        string
	MinBytes        int
	MaxBytes        int
	ReaderFactory   ReaderFactory
	DLQWriter       Writer
}

type ConsumerOption func(*ConsumerConfig)

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(id string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = id }
}

func WithConsumerAutoOffsetReset(reset string) ConsumerOption {
	return func(c *ConsumerConfig) { c.AutoOffsetReset = reset }
}

func WithConsumerWorkers(n int) ConsumerOption {
	return func(c *ConsumerConfig) { c.WorkerCount = n }
}

// WithConsumerRetry sets how many times a failed handler is retried and the
// jittered backoff bounds between attempts.
func WithConsumerRetry(retries int, minBackoff, maxBackoff time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax, c.BackoffMin, c.BackoffMax = retries, minBackoff, maxBackoff
	}
}

// WithConsumerDLQ names the topic that receives messages still failing after the last retry.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

// WithConsumerBufferSize ignores non-positive sizes.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

func WithReaderFactory(f ReaderFactory) ConsumerOption {
	return func(c *ConsumerConfig) { c.ReaderFactory = f }
}

func WithDLQWriter(w Writer) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQWriter = w }
}
