package clickhouse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/DATA-DOG/go-sqlmock"
)

func TestBuildOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithAddr("ch.local", 8123),
		WithDatabase("desk"),
		WithCredentials("svc", "pw"),
		WithHTTP(true),
		WithAsyncInsert(true),
		WithMaxExecutionTime(90 * time.Second),
	} {
		opt(cfg)
	}

	o := buildOptions(cfg)
	if len(o.Addr) != 1 || o.Addr[0] != "ch.local:8123" {
		t.Fatalf("addr = %v", o.Addr)
	}
	if o.Protocol != ch.HTTP {
		t.Fatalf("expected http protocol")
	}
	if o.Auth.Database != "desk" || o.Auth.Username != "svc" {
		t.Fatalf("auth = %+v", o.Auth)
	}
	if o.Settings["max_execution_time"] != 90 || o.Settings["async_insert"] != 1 {
		t.Fatalf("settings = %v", o.Settings)
	}
}

func TestNewClient_RequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}

func TestInitSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	stmts := Schema("candles_1d", "signal_events")
	for _, s := range stmts {
		if !strings.Contains(s, "IF NOT EXISTS") {
			t.Fatalf("ddl must be idempotent: %s", s)
		}
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS candles_1d").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS signal_events").WillReturnError(errors.New("boom"))

	c := NewClientFromDB(db)
	if err := c.InitSchema(context.Background(), stmts); err == nil {
		t.Fatalf("expected second statement to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
