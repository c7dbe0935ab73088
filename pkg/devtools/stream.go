package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/weave/internal/errors"
	"github.com/vango-dev/weave/pkg/observe"
)

const (
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// FlushRecord is the JSON message streamed to clients after every flush.
type FlushRecord struct {
	Seq           uint64             `json:"seq"`
	Started       time.Time          `json:"started"`
	DurationMs    float64            `json:"durationMs"`
	Iterations    int                `json:"iterations"`
	Deliveries    []observe.Delivery `json:"deliveries"`
	Notifications int                `json:"notifications"`
	Writes        int                `json:"writes"`
	Panicked      bool               `json:"panicked,omitempty"`
	Error         string             `json:"error,omitempty"`
	ErrorCode     string             `json:"errorCode,omitempty"`
}

// newFlushRecord converts flush statistics to a stream record.
func newFlushRecord(seq uint64, stats observe.FlushStats) FlushRecord {
	rec := FlushRecord{
		Seq:           seq,
		Started:       stats.Started,
		DurationMs:    float64(stats.Duration) / float64(time.Millisecond),
		Iterations:    stats.Iterations,
		Deliveries:    stats.Deliveries,
		Notifications: stats.Notifications,
		Writes:        stats.Writes,
		Panicked:      stats.Panicked,
	}
	if rec.Deliveries == nil {
		rec.Deliveries = []observe.Delivery{}
	}
	if stats.Err != nil {
		rec.Error = stats.Err.Error()
		rec.ErrorCode = errors.Code(stats.Err)
	}
	return rec
}

// streamClient is one connected websocket client.
type streamClient struct {
	id      string
	send    chan []byte
	dropped atomic.Uint64
}

// Stream broadcasts flush records to websocket clients. It is an
// observe.FlushHook: register it on the scheduler to feed it.
//
// FlushCompleted never blocks the flushing goroutine. A client whose
// buffer is full misses records; the count is reported when it
// disconnects.
type Stream struct {
	clients  map[string]*streamClient
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	buffer   int
	seq      atomic.Uint64
	logger   *slog.Logger
}

// NewStream creates a stream buffering up to buffer records per client.
func NewStream(buffer int, logger *slog.Logger) *Stream {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default().With("component", "devtools")
	}
	return &Stream{
		clients: make(map[string]*streamClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local tooling
			},
		},
		buffer: buffer,
		logger: logger,
	}
}

// FlushCompleted implements observe.FlushHook.
func (s *Stream) FlushCompleted(stats observe.FlushStats) {
	rec := newFlushRecord(s.seq.Add(1), stats)
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("flush record encode failed", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- data:
		default:
			c.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Stream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request and streams records until the client
// disconnects.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &streamClient{
		id:   uuid.New().String(),
		send: make(chan []byte, s.buffer),
	}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.logger.Info("stream client connected", "client", c.id, "remote", r.RemoteAddr)

	done := make(chan struct{})
	go s.writeLoop(conn, c, done)

	// Reads only detect disconnects and answer pings.
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	close(done)
	conn.Close()

	s.logger.Info("stream client disconnected", "client", c.id, "dropped", c.dropped.Load())
}

func (s *Stream) writeLoop(conn *websocket.Conn, c *streamClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case data := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
