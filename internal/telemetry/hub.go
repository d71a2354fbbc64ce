// Package telemetry broadcasts SRC manager statistics, faults and rate
// changes to WebSocket clients as JSON messages.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
)

// Message kinds.
const (
	KindStats = "stats"
	KindFault = "fault"
	KindRates = "rates"
)

const (
	broadcastQueue = 256
	writeTimeout   = time.Second
	bufferSize     = 1024
)

// Message is the envelope of every broadcast.
type Message struct {
	Session string    `json:"session"`
	Seq     uint64    `json:"seq"`
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// FaultEvent is the payload of a fault message.
type FaultEvent struct {
	Kind     string `json:"kind"`
	Tick     uint64 `json:"tick"`
	Instance int    `json:"instance"`
	Channel  int    `json:"channel"`
	Error    string `json:"error"`
}

// Hub fans messages out to connected WebSocket clients. Messages are
// dropped, not queued without bound, when clients cannot keep up.
type Hub struct {
	session  string
	log      logrus.FieldLogger
	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	broadcast chan []byte
	seq       atomic.Uint64
	dropped   atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	server    *http.Server
}

// NewHub creates a hub and starts its broadcast loop.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	session := uuid.New().String()

	h := &Hub{
		session: session,
		log:     log.WithField("session", session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan []byte, broadcastQueue),
		done:      make(chan struct{}),
	}
	go h.handleBroadcasts()
	return h
}

// Session returns the id stamped on every message from this hub.
func (h *Hub) Session() string {
	return h.session
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of messages dropped on a full queue.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request to a WebSocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = struct{}{}
	total := len(h.clients)
	h.clientsMu.Unlock()
	h.log.WithField("clients", total).Debug("telemetry client connected")

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Handler returns a mux serving the hub on /ws.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	return mux
}

// ListenAndServe serves Handler on addr until ctx is done or Close is
// called.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("telemetry: listen on %s: %w", addr, err)
	}

	h.server = &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}
	h.log.WithField("addr", ln.Addr().String()).Info("telemetry server listening")

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		_ = h.server.Close()
	}()

	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("telemetry: serve: %w", err)
	}
	return nil
}

// Publish encodes payload and queues it for every client.
func (h *Hub) Publish(kind string, payload any) error {
	data, err := sonic.Marshal(Message{
		Session: h.session,
		Seq:     h.seq.Add(1),
		Kind:    kind,
		Time:    time.Now().UTC(),
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("telemetry: encode %s: %w", kind, err)
	}

	select {
	case <-h.done:
		return nil
	default:
	}

	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// PublishFault publishes f. Its signature matches srcmanager.WithFaultHandler.
func (h *Hub) PublishFault(f srcmanager.Fault) {
	ev := FaultEvent{
		Kind:     f.Kind.String(),
		Tick:     f.Tick,
		Instance: f.Instance,
		Channel:  f.Channel,
	}
	if f.Err != nil {
		ev.Error = f.Err.Error()
	}
	if err := h.Publish(KindFault, ev); err != nil {
		h.log.WithError(err).Warn("failed to publish fault")
	}
}

// PublishRates publishes a newly applied rate pair. Its signature matches
// srcmanager.WithRateHandler.
func (h *Hub) PublishRates(p srcmanager.RatePair) {
	if err := h.Publish(KindRates, p); err != nil {
		h.log.WithError(err).Warn("failed to publish rates")
	}
}

func (h *Hub) handleBroadcasts() {
	for {
		select {
		case <-h.done:
			return
		case data := <-h.broadcast:
			h.clientsMu.Lock()
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					h.log.WithError(err).Debug("telemetry client write failed")
					_ = conn.Close()
					delete(h.clients, conn)
				}
			}
			h.clientsMu.Unlock()
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.clientsMu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	total := len(h.clients)
	h.clientsMu.Unlock()

	_ = conn.Close()
	if ok {
		h.log.WithField("clients", total).Debug("telemetry client disconnected")
	}
}

// Close disconnects every client and stops the hub.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)

		h.clientsMu.Lock()
		for conn := range h.clients {
			_ = conn.Close()
		}
		clear(h.clients)
		h.clientsMu.Unlock()
	})
	return nil
}
