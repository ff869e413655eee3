package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SignalDesk/pkg/logger"

	"github.com/gorilla/websocket"
)

func TestClient_StreamsTrades(t *testing.T) {
	subscribed := make(chan string, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "key" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub["symbol"]
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"BINANCE:BTCUSDT","p":50123.5,"v":0.01,"t":1700000000123}]}`))
		// hold the socket open until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New("key", wsURL, []string{"BINANCE:BTCUSDT"}, time.Millisecond, time.Hour, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got := <-subscribed; got != "BINANCE:BTCUSDT" {
		t.Fatalf("subscribed %q", got)
	}

	ticks, _ := c.Read(ctx)
	select {
	case tk := <-ticks:
		if tk.Symbol != "BINANCE:BTCUSDT" || tk.Price != 50123.5 {
			t.Fatalf("tick = %+v", tk)
		}
		if tk.Timestamp.UnixMilli() != 1700000000123 {
			t.Fatalf("timestamp = %v", tk.Timestamp)
		}
	case <-ctx.Done():
		t.Fatalf("no tick received")
	}

	if err := c.Close(); err != nil {
		t.Logf("close: %v", err)
	}
	if c.IsConnected() {
		t.Fatalf("still connected after close")
	}
}

func TestClient_SubscribeRequiresConnection(t *testing.T) {
	c := New("key", "ws://127.0.0.1:1", nil, 0, 0, logger.NewNop())
	if err := c.Subscribe(context.Background()); err == nil {
		t.Fatalf("expected error when not connected")
	}
	_, errs := c.Read(context.Background())
	if err := <-errs; err == nil {
		t.Fatalf("expected read error when not connected")
	}
}
