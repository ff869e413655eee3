package clickhouse

import "fmt"

// Schema returns the DDL for the daily candle table and the signal event log.
func Schema(candleTable, eventTable string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	symbol LowCardinality(String),
	day Date,
	open Float64,
	high Float64,
	low Float64,
	close Float64,
	volume Float64
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, day)`, candleTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	event_id UUID,
	signal_id String,
	symbol LowCardinality(String),
	kind LowCardinality(String),
	from_status LowCardinality(String),
	to_status LowCardinality(String),
	price Float64,
	payload String,
	occurred_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(occurred_at)
ORDER BY (signal_id, occurred_at)`, eventTable),
	}
}
