package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edgar-sessions/sessionize/internal/session"
	"github.com/edgar-sessions/sessionize/internal/stats"
	"github.com/gorilla/websocket"
)

// dialTestWS creates a test HTTP server that upgrades to WebSocket and returns
// the server-side and client-side connections. Both are closed on cleanup.
func dialTestWS(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn := <-connCh:
		t.Cleanup(func() { serverConn.Close() })
		return serverConn, clientConn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

type rawMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg rawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func closedSession(id string, rank int) *session.Session {
	ts := time.Date(2017, 6, 30, 0, 0, 0, 0, time.UTC)
	return &session.Session{ClientID: id, FirstSeen: ts, LastSeen: ts, RequestCount: 1, Duration: 1, Rank: rank}
}

func TestAddClient_MaxConnections(t *testing.T) {
	const maxConns = 2
	b := NewBroadcaster(100*time.Millisecond, time.Hour, maxConns, 0)
	defer b.Stop()

	var clients []*client
	for i := 0; i < maxConns; i++ {
		conn, _ := dialTestWS(t)
		c, err := b.AddClient(conn)
		if err != nil {
			t.Fatalf("AddClient[%d]: unexpected error: %v", i, err)
		}
		clients = append(clients, c)
	}

	if got := b.ClientCount(); got != maxConns {
		t.Fatalf("expected %d clients, got %d", maxConns, got)
	}

	conn, _ := dialTestWS(t)
	if _, err := b.AddClient(conn); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("expected ErrTooManyConnections, got %v", err)
	}

	// Freeing a slot admits the next client.
	b.RemoveClient(clients[0])
	conn, _ = dialTestWS(t)
	if _, err := b.AddClient(conn); err != nil {
		t.Fatalf("AddClient after removal: %v", err)
	}
}

func TestAddClient_SendsSnapshotThenDelta(t *testing.T) {
	b := NewBroadcaster(10*time.Millisecond, time.Hour, 0, 0)
	defer b.Stop()

	b.Emit([]*session.Session{closedSession("101.81.133.jja", 1)})
	// Let the first delta go out before anyone is listening.
	time.Sleep(50 * time.Millisecond)

	serverConn, clientConn := dialTestWS(t)
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatal(err)
	}

	snap := readMessage(t, clientConn)
	if snap.Type != MsgSnapshot {
		t.Fatalf("first message type = %q, want snapshot", snap.Type)
	}
	var sp SnapshotPayload
	if err := json.Unmarshal(snap.Payload, &sp); err != nil {
		t.Fatal(err)
	}
	if len(sp.Sessions) != 1 || sp.Sessions[0].ClientID != "101.81.133.jja" {
		t.Fatalf("snapshot sessions = %+v", sp.Sessions)
	}

	b.Emit([]*session.Session{closedSession("107.23.85.jfd", 2), closedSession("106.120.173.jie", 3)})

	delta := readMessage(t, clientConn)
	if delta.Type != MsgDelta {
		t.Fatalf("second message type = %q, want delta", delta.Type)
	}
	if delta.Seq <= snap.Seq {
		t.Errorf("delta seq %d not after snapshot seq %d", delta.Seq, snap.Seq)
	}
	var dp DeltaPayload
	if err := json.Unmarshal(delta.Payload, &dp); err != nil {
		t.Fatal(err)
	}
	if len(dp.Closed) != 2 || dp.Closed[0].Rank != 2 || dp.Closed[1].Rank != 3 {
		t.Fatalf("delta closed = %+v", dp.Closed)
	}
}

func TestEmit_CoalescesWithinThrottle(t *testing.T) {
	b := NewBroadcaster(50*time.Millisecond, time.Hour, 0, 0)
	defer b.Stop()

	serverConn, clientConn := dialTestWS(t)
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatal(err)
	}
	readMessage(t, clientConn) // snapshot

	b.Emit([]*session.Session{closedSession("a", 1)})
	b.Emit([]*session.Session{closedSession("b", 2)})
	b.Emit(nil)

	msg := readMessage(t, clientConn)
	var dp DeltaPayload
	if err := json.Unmarshal(msg.Payload, &dp); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MsgDelta || len(dp.Closed) != 2 {
		t.Fatalf("got %s with %d sessions, want one delta with 2", msg.Type, len(dp.Closed))
	}
}

func TestEmit_HistoryLimit(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, 2)
	defer b.Stop()

	b.Emit([]*session.Session{closedSession("a", 1), closedSession("b", 2)})
	b.Emit([]*session.Session{closedSession("c", 3)})

	got := b.Sessions()
	if len(got) != 2 || got[0].ClientID != "b" || got[1].ClientID != "c" {
		t.Fatalf("Sessions() = %+v, want [b c]", got)
	}

	snap := b.snapshotMessage().Payload.(SnapshotPayload)
	if snap.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", snap.Dropped)
	}
}

func TestEmit_CopiesSessions(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, 0)
	defer b.Stop()

	s := closedSession("a", 1)
	b.Emit([]*session.Session{s})
	s.RequestCount = 99

	if got := b.Sessions()[0].RequestCount; got != 1 {
		t.Errorf("history mutated through caller's pointer: RequestCount = %d", got)
	}
}

func TestComplete_FlushesPendingFirst(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, 0)
	defer b.Stop()

	serverConn, clientConn := dialTestWS(t)
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatal(err)
	}
	readMessage(t, clientConn) // snapshot

	b.Emit([]*session.Session{closedSession("a", 1)})
	b.Complete(stats.Summary{Sessions: 1, Done: true})

	if msg := readMessage(t, clientConn); msg.Type != MsgDelta {
		t.Fatalf("got %q, want delta before complete", msg.Type)
	}
	msg := readMessage(t, clientConn)
	if msg.Type != MsgComplete {
		t.Fatalf("got %q, want complete", msg.Type)
	}
	var cp CompletePayload
	if err := json.Unmarshal(msg.Payload, &cp); err != nil {
		t.Fatal(err)
	}
	if cp.Summary.Sessions != 1 || !cp.Summary.Done {
		t.Errorf("summary = %+v", cp.Summary)
	}
	if !b.Done() {
		t.Error("Done() = false after Complete")
	}
}

func TestProgress_BroadcastAndSnapshot(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, 0)
	defer b.Stop()

	serverConn, clientConn := dialTestWS(t)
	c, err := b.AddClient(serverConn)
	if err != nil {
		t.Fatal(err)
	}
	readMessage(t, clientConn) // snapshot

	b.Progress(ProgressPayload{Rows: 10, Skipped: 1, Open: 3})

	msg := readMessage(t, clientConn)
	if msg.Type != MsgProgress {
		t.Fatalf("got %q, want progress", msg.Type)
	}

	b.Resync(c)
	msg = readMessage(t, clientConn)
	var sp SnapshotPayload
	if err := json.Unmarshal(msg.Payload, &sp); err != nil {
		t.Fatal(err)
	}
	if sp.Progress == nil || sp.Progress.Rows != 10 {
		t.Errorf("snapshot progress = %+v, want rows 10", sp.Progress)
	}
}

func TestFilterSessions(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, 0)
	defer b.Stop()

	in := []*session.Session{closedSession("10.0.0.abc", 1), closedSession("crawler.x", 2)}

	if got := b.FilterSessions(in); len(got) != 2 {
		t.Fatalf("noop filter returned %d sessions", len(got))
	}

	b.SetPrivacyFilter(&session.PrivacyFilter{MaskClientIDs: true, BlockedClients: []string{"crawler.*"}})
	got := b.FilterSessions(in)
	if len(got) != 1 {
		t.Fatalf("filtered = %d sessions, want 1", len(got))
	}
	if got[0].ClientID == "10.0.0.abc" {
		t.Error("client id was not masked")
	}
	if in[0].ClientID != "10.0.0.abc" {
		t.Error("input session was modified")
	}

	b.SetPrivacyFilter(nil)
	if got := b.FilterSessions(in); len(got) != 2 || got[0].ClientID != "10.0.0.abc" {
		t.Error("nil filter should reset to noop")
	}
}

func TestSeqIncreasesPerBroadcast(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, 0)
	defer b.Stop()

	b.Progress(ProgressPayload{Rows: 1})
	b.Progress(ProgressPayload{Rows: 2})
	if got := b.seq.Load(); got != 2 {
		t.Fatalf("seq = %d, want 2", got)
	}
	if got := b.snapshotMessage().Seq; got != 2 {
		t.Errorf("snapshot seq = %d, want current seq 2", got)
	}
}

func TestRemoveClient_Idempotent(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, 0)
	defer b.Stop()

	conn, _ := dialTestWS(t)
	c, err := b.AddClient(conn)
	if err != nil {
		t.Fatal(err)
	}
	b.RemoveClient(c)
	b.RemoveClient(c)

	if got := b.ClientCount(); got != 0 {
		t.Fatalf("ClientCount = %d, want 0", got)
	}
}

func TestWritePump_RemovesClientOnWriteError(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, 0)
	defer b.Stop()

	serverConn, clientConn := dialTestWS(t)
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatal(err)
	}
	readMessage(t, clientConn) // snapshot

	// Closing the underlying conn makes the next write fail.
	serverConn.UnderlyingConn().Close()
	b.Progress(ProgressPayload{Rows: 1})

	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after write error")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStop_DisconnectsClients(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, 0)

	conn, _ := dialTestWS(t)
	if _, err := b.AddClient(conn); err != nil {
		t.Fatal(err)
	}

	b.Stop()
	b.Stop()

	if got := b.ClientCount(); got != 0 {
		t.Fatalf("ClientCount after Stop = %d, want 0", got)
	}
}
