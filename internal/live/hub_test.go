package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/pixelclaim/internal/grid"
)

type fixedVersion uint64

func (v fixedVersion) Version() uint64 { return uint64(v) }

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := hub.Subscribe(conn)
		defer hub.Unsubscribe(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return ev
}

func TestHub_BroadcastsToEveryClient(t *testing.T) {
	metrics := NewMetrics()
	hub := NewHub(fixedVersion(7), metrics, nil)
	srv := newTestServer(t, hub)

	a, b := dial(t, srv), dial(t, srv)
	waitForClients(t, hub, 2)

	cells := []grid.Coord{{X: 1, Y: 2}, {X: 3, Y: 4}}
	hub.CellsAcquired(context.Background(), "wallet", cells)

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		if ev.Type != EventCellsAcquired || ev.Wallet != "wallet" || ev.Version != 7 {
			t.Errorf("unexpected event %+v", ev)
		}
		if len(ev.Cells) != 2 || ev.Cells[1] != (grid.Coord{X: 3, Y: 4}) {
			t.Errorf("Cells = %v", ev.Cells)
		}
	}

	if got := testutil.ToFloat64(metrics.events.WithLabelValues(string(EventCellsAcquired))); got != 1 {
		t.Errorf("events counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.clients); got != 2 {
		t.Errorf("clients gauge = %v, want 2", got)
	}
}

func TestHub_PaintEvents(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	srv := newTestServer(t, hub)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	ctx := context.Background()
	hub.CellsPainted(ctx, "w", []grid.ColorChange{{X: 5, Y: 6, Color: grid.Color(0xff0000)}})
	hub.CellsCleared(ctx, "w")
	hub.PlacementsChanged(ctx)

	ev := readEvent(t, conn)
	if ev.Type != EventCellsPainted || len(ev.Colors) != 1 || ev.Colors[0].Color != grid.Color(0xff0000) {
		t.Errorf("unexpected paint event %+v", ev)
	}
	if ev := readEvent(t, conn); ev.Type != EventCellsCleared || ev.Wallet != "w" {
		t.Errorf("unexpected clear event %+v", ev)
	}
	if ev := readEvent(t, conn); ev.Type != EventPlacementsChanged {
		t.Errorf("unexpected placement event %+v", ev)
	}
}

func TestHub_SkipsEmptyChanges(t *testing.T) {
	metrics := NewMetrics()
	hub := NewHub(nil, metrics, nil)

	hub.CellsAcquired(context.Background(), "w", nil)
	hub.CellsPainted(context.Background(), "w", nil)

	if got := testutil.CollectAndCount(metrics.events); got != 0 {
		t.Errorf("expected no events, got %d series", got)
	}
}

func TestHub_UnsubscribeOnDisconnect(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	srv := newTestServer(t, hub)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)
	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	srv := newTestServer(t, hub)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.Close()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount after Close = %d", hub.ClientCount())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}
