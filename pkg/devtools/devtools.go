// Package devtools provides a live inspector for a fluxion Runtime: an HTTP
// endpoint serving activity statistics, a recent-event buffer, and a
// WebSocket stream of engine events as they happen.
//
// The inspector is a fluxion.Hook; register it at Runtime construction and
// mount its handler:
//
//	insp := devtools.New()
//	rt := fluxion.New(fluxion.WithHook(insp))
//
//	http.ListenAndServe(":6900", insp.Handler())
//
// Endpoints:
//   - GET /stats   JSON counters snapshot
//   - GET /events  recent events as JSON
//   - GET /live    WebSocket stream of events
//   - GET /metrics Prometheus metrics (default registry)
package devtools

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
)

// defaultBufferSize is how many recent events the inspector retains.
const defaultBufferSize = 512

// clientQueueSize is the per-client send queue; slow clients drop events
// rather than stalling the engine.
const clientQueueSize = 256

// EventKind identifies the type of an engine event.
type EventKind string

const (
	KindReaction    EventKind = "reaction"
	KindMemo        EventKind = "memo"
	KindTransaction EventKind = "transaction"
)

// Event is one engine activity record.
type Event struct {
	Seq  uint64    `json:"seq"`
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`

	// Name is the reaction or memo debug name, or the transaction name.
	Name string `json:"name,omitempty"`

	// TookMicros is the duration of the run, compute, or pass.
	TookMicros int64 `json:"took_micros"`

	// Error is the error string for failed reaction runs.
	Error string `json:"error,omitempty"`

	// ReactionsRun is set on transaction events.
	ReactionsRun int `json:"reactions_run,omitempty"`
}

// Stats is the counters snapshot served at /stats.
type Stats struct {
	ReactionRuns   uint64 `json:"reaction_runs"`
	ReactionErrors uint64 `json:"reaction_errors"`
	MemoRecomputes uint64 `json:"memo_recomputes"`
	Transactions   uint64 `json:"transactions"`

	// EventsDropped counts events discarded because a live client's send
	// queue was full.
	EventsDropped uint64 `json:"events_dropped"`
	ClientsLive   int    `json:"clients_live"`
}

// Inspector buffers and broadcasts engine events.
// It implements fluxion.Hook.
type Inspector struct {
	mu sync.Mutex

	seq    uint64
	buffer []Event // ring, newest at buffer[(head-1)%len]
	head   int
	filled bool

	stats Stats

	clients map[*client]struct{}

	upgrader websocket.Upgrader
}

// New creates an Inspector with the default buffer size.
func New() *Inspector {
	return &Inspector{
		buffer:  make([]Event, defaultBufferSize),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			// The inspector is a development tool; accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ReactionRan implements fluxion.Hook.
func (in *Inspector) ReactionRan(name string, took time.Duration, err error) {
	e := Event{
		Kind:       KindReaction,
		Name:       name,
		TookMicros: took.Microseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}

	in.mu.Lock()
	in.stats.ReactionRuns++
	if err != nil {
		in.stats.ReactionErrors++
	}
	in.record(e)
	in.mu.Unlock()
}

// MemoRecomputed implements fluxion.Hook.
func (in *Inspector) MemoRecomputed(name string, took time.Duration) {
	e := Event{
		Kind:       KindMemo,
		Name:       name,
		TookMicros: took.Microseconds(),
	}

	in.mu.Lock()
	in.stats.MemoRecomputes++
	in.record(e)
	in.mu.Unlock()
}

// TransactionEnded implements fluxion.Hook.
func (in *Inspector) TransactionEnded(txName string, took time.Duration, reactionsRun int) {
	e := Event{
		Kind:         KindTransaction,
		Name:         txName,
		TookMicros:   took.Microseconds(),
		ReactionsRun: reactionsRun,
	}

	in.mu.Lock()
	in.stats.Transactions++
	in.record(e)
	in.mu.Unlock()
}

// record stores an event in the ring and fans it out to live clients.
// Caller holds in.mu. Slow clients drop events rather than blocking the
// engine, which is mid-propagation when hooks fire.
func (in *Inspector) record(e Event) {
	in.seq++
	e.Seq = in.seq
	e.Time = time.Now()

	in.buffer[in.head] = e
	in.head++
	if in.head == len(in.buffer) {
		in.head = 0
		in.filled = true
	}

	for c := range in.clients {
		select {
		case c.send <- e:
		default:
			in.stats.EventsDropped++
		}
	}
}

// recent returns the buffered events, oldest first.
func (in *Inspector) recent() []Event {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.filled {
		out := make([]Event, in.head)
		copy(out, in.buffer[:in.head])
		return out
	}
	out := make([]Event, 0, len(in.buffer))
	out = append(out, in.buffer[in.head:]...)
	out = append(out, in.buffer[:in.head]...)
	return out
}

// snapshot returns the current stats.
func (in *Inspector) snapshot() Stats {
	in.mu.Lock()
	defer in.mu.Unlock()
	s := in.stats
	s.ClientsLive = len(in.clients)
	return s
}

// Handler returns the inspector's HTTP routes.
func (in *Inspector) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/stats", in.handleStats)
	r.Get("/events", in.handleEvents)
	r.Get("/live", in.handleLive)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (in *Inspector) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(in.snapshot())
}

func (in *Inspector) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(in.recent())
}

// handleLive upgrades to a WebSocket and streams events until the client
// disconnects.
func (in *Inspector) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := in.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Event, clientQueueSize),
	}

	in.mu.Lock()
	in.clients[c] = struct{}{}
	in.mu.Unlock()

	go c.writeLoop()
	c.readLoop(in)
}

// client is one connected WebSocket consumer.
type client struct {
	conn *websocket.Conn
	send chan Event

	closeOnce sync.Once
}

// writeLoop serializes events to the connection.
func (c *client) writeLoop() {
	for e := range c.send {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readLoop consumes control frames and detects disconnect.
// This method blocks until the connection is closed or an error occurs.
func (c *client) readLoop(in *Inspector) {
	defer c.close(in)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				return
			}
			return
		}
	}
}

// close unregisters the client and tears down the connection.
func (c *client) close(in *Inspector) {
	c.closeOnce.Do(func() {
		in.mu.Lock()
		delete(in.clients, c)
		in.mu.Unlock()

		close(c.send)
		_ = c.conn.Close()
	})
}

var _ fluxion.Hook = (*Inspector)(nil)
