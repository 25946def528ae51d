package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgar-sessions/sessionize/internal/session"
	"github.com/edgar-sessions/sessionize/internal/stats"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// ErrTooManyConnections is returned by AddClient when the connection limit
// has been reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
	once sync.Once
}

func newClient(conn *websocket.Conn, b *Broadcaster) *client {
	return &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Broadcaster publishes closed sessions to websocket viewers. It implements
// sessionize.Sink: Emit never blocks the sessionizer, batches are coalesced
// and flushed after the throttle interval.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
	privacy  *session.PrivacyFilter
	seq      atomic.Uint64

	throttle       time.Duration
	snapshotTicker *time.Ticker
	stop           chan struct{}
	stopOnce       sync.Once

	histMu       sync.RWMutex
	history      []*session.Session
	historyLimit int
	dropped      int
	progress     *ProgressPayload
	done         bool

	flushMu    sync.Mutex
	pending    []*session.Session
	flushTimer *time.Timer
}

// NewBroadcaster starts a broadcaster. maxConns <= 0 means unlimited;
// historyLimit <= 0 keeps every closed session.
func NewBroadcaster(throttle, snapshotInterval time.Duration, maxConns, historyLimit int) *Broadcaster {
	b := &Broadcaster{
		clients:      make(map[*client]bool),
		maxConns:     maxConns,
		privacy:      &session.PrivacyFilter{},
		throttle:     throttle,
		historyLimit: historyLimit,
		stop:         make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

// SetPrivacyFilter replaces the filter applied to everything sent out.
func (b *Broadcaster) SetPrivacyFilter(f *session.PrivacyFilter) {
	if f == nil {
		f = &session.PrivacyFilter{}
	}
	b.mu.Lock()
	b.privacy = f
	b.mu.Unlock()
}

// FilterSessions applies the privacy filter. The input is never modified.
func (b *Broadcaster) FilterSessions(sessions []*session.Session) []*session.Session {
	b.mu.RLock()
	f := b.privacy
	b.mu.RUnlock()
	if f.IsNoop() {
		out := make([]*session.Session, len(sessions))
		copy(out, sessions)
		return out
	}
	return f.FilterSlice(sessions)
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := newClient(conn, b)

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()
	b.sendTo(c, b.snapshotMessage())

	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// Resync sends a fresh snapshot to a single client.
func (b *Broadcaster) Resync(c *client) {
	b.sendTo(c, b.snapshotMessage())
}

// Emit records closed sessions and schedules a delta.
func (b *Broadcaster) Emit(closed []*session.Session) error {
	if len(closed) == 0 {
		return nil
	}
	copies := make([]*session.Session, len(closed))
	for i, s := range closed {
		copies[i] = s.Clone()
	}

	b.histMu.Lock()
	b.history = append(b.history, copies...)
	if b.historyLimit > 0 && len(b.history) > b.historyLimit {
		over := len(b.history) - b.historyLimit
		b.dropped += over
		b.history = append([]*session.Session(nil), b.history[over:]...)
	}
	b.histMu.Unlock()

	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pending = append(b.pending, copies...)
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
	return nil
}

// Progress publishes row counters immediately.
func (b *Broadcaster) Progress(p ProgressPayload) {
	b.histMu.Lock()
	b.progress = &p
	b.histMu.Unlock()

	b.broadcast(MsgProgress, p)
}

// Complete flushes pending sessions and announces the end of the run.
func (b *Broadcaster) Complete(summary stats.Summary) {
	b.flush()

	b.histMu.Lock()
	b.done = true
	b.histMu.Unlock()

	b.broadcast(MsgComplete, CompletePayload{Summary: summary})
}

// Sessions returns the filtered history in emission order.
func (b *Broadcaster) Sessions() []*session.Session {
	b.histMu.RLock()
	hist := make([]*session.Session, len(b.history))
	copy(hist, b.history)
	b.histMu.RUnlock()
	return b.FilterSessions(hist)
}

// Done reports whether Complete has been called.
func (b *Broadcaster) Done() bool {
	b.histMu.RLock()
	defer b.histMu.RUnlock()
	return b.done
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	closed := b.pending
	b.pending = nil
	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}
	b.flushMu.Unlock()

	if len(closed) == 0 {
		return
	}

	b.broadcast(MsgDelta, DeltaPayload{Closed: b.FilterSessions(closed)})
}

func (b *Broadcaster) snapshotMessage() WSMessage {
	b.histMu.RLock()
	hist := make([]*session.Session, len(b.history))
	copy(hist, b.history)
	payload := SnapshotPayload{
		Dropped:  b.dropped,
		Progress: b.progress,
		Done:     b.done,
	}
	b.histMu.RUnlock()

	payload.Sessions = b.FilterSessions(hist)
	return WSMessage{Type: MsgSnapshot, Seq: b.seq.Load(), Payload: payload}
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.stop:
			return
		case <-b.snapshotTicker.C:
			if b.ClientCount() == 0 {
				continue
			}
			msg := b.snapshotMessage()
			msg.Seq = b.seq.Add(1)
			b.send(msg)
		}
	}
}

func (b *Broadcaster) broadcast(t MessageType, payload interface{}) {
	b.send(WSMessage{Type: t, Seq: b.seq.Add(1), Payload: payload})
}

func (b *Broadcaster) send(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	// Client can't keep up, disconnect it
	for _, c := range slow {
		log.Printf("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) sendTo(c *client, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		// Client too slow, drop the snapshot
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop halts the snapshot loop and disconnects every client.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		b.snapshotTicker.Stop()

		b.flushMu.Lock()
		if b.flushTimer != nil {
			b.flushTimer.Stop()
			b.flushTimer = nil
		}
		b.flushMu.Unlock()

		b.mu.Lock()
		for c := range b.clients {
			delete(b.clients, c)
			c.close()
		}
		b.mu.Unlock()
	})
}
