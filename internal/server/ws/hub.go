// Package ws bridges the Redis signal bus to WebSocket clients so frontends
// can follow epochs, bids, and settlements live.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxFrameSize   = 2048
	sessionBacklog = 256
)

// lifecycleChannels are the bus channels every new session starts
// subscribed to; clients narrow the set with subscribe/unsubscribe frames.
var lifecycleChannels = []string{
	service.ChannelEpoch,
	service.ChannelAuction,
	service.ChannelVote,
	service.ChannelSettlement,
}

// The origin gate lives in the CORS middleware; the upgrade itself accepts
// any origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// session is one WebSocket connection and its channel filter.
type session struct {
	conn *websocket.Conn
	out  chan []byte

	mu   sync.RWMutex
	subs map[string]bool
}

func (s *session) wants(channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs[channel]
}

// controlFrame is the only inbound message shape: subscription changes.
type controlFrame struct {
	Action   string   `json:"action"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// Hub fans bus events out to connected sessions. Sessions that cannot keep
// up lose events rather than stalling the loop; the stream endpoints exist
// for catch-up.
type Hub struct {
	bus    domain.SignalBus
	logger *slog.Logger
	events chan event
	up     time.Time

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

type event struct {
	channel string
	payload []byte
}

func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		bus:      bus,
		logger:   logger.With(slog.String("component", "ws")),
		events:   make(chan event, 256),
		up:       time.Now().UTC(),
		sessions: make(map[*session]struct{}),
	}
}

// Run subscribes to the lifecycle channels and fans events out until ctx is
// cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range lifecycleChannels {
		go h.forward(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.sessions {
				close(s.out)
				delete(h.sessions, s)
			}
			h.mu.Unlock()
			return ctx.Err()

		case ev := <-h.events:
			h.mu.RLock()
			for s := range h.sessions {
				if !s.wants(ev.channel) {
					continue
				}
				select {
				case s.out <- ev.payload:
				default:
					h.logger.Warn("ws: session backlog full, dropping event",
						slog.String("channel", ev.channel))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// forward pipes one bus channel into the event loop.
func (h *Hub) forward(ctx context.Context, channel string) {
	in, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: bus subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()))
		return
	}
	for payload := range in {
		select {
		case h.events <- event{channel: channel, payload: payload}:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) attach(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	h.logger.Info("ws: session opened", slog.Int("sessions", n))
}

func (h *Hub) detach(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		close(s.out)
	}
	n := len(h.sessions)
	h.mu.Unlock()
	h.logger.Info("ws: session closed", slog.Int("sessions", n))
}

// HandleWS upgrades the request, greets the client, and starts the pumps.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	s := &session{
		conn: conn,
		out:  make(chan []byte, sessionBacklog),
		subs: make(map[string]bool, len(lifecycleChannels)),
	}
	for _, ch := range lifecycleChannels {
		s.subs[ch] = true
	}

	h.attach(s)
	h.greet(s)

	go s.writeLoop()
	go s.readLoop(h)
}

// greet queues a hello frame so clients can mark the connection healthy
// before any lifecycle event flows.
func (h *Hub) greet(s *session) {
	hello, err := json.Marshal(map[string]any{
		"type": "hello",
		"payload": map[string]any{
			"channels":       lifecycleChannels,
			"uptime_seconds": int64(time.Since(h.up).Seconds()),
		},
	})
	if err != nil {
		return
	}
	select {
	case s.out <- hello:
	default:
	}
}

// readLoop consumes inbound frames, which only ever carry subscription
// changes, and keeps the pong deadline fresh.
func (s *session) readLoop(h *Hub) {
	defer func() {
		h.detach(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ws: abnormal close", slog.String("error", err.Error()))
			}
			return
		}

		var ctrl controlFrame
		if err := json.Unmarshal(frame, &ctrl); err != nil {
			continue
		}
		s.mu.Lock()
		switch ctrl.Action {
		case "subscribe":
			for _, ch := range ctrl.Channels {
				s.subs[ch] = true
			}
		case "unsubscribe":
			for _, ch := range ctrl.Channels {
				delete(s.subs, ch)
			}
		}
		s.mu.Unlock()
	}
}

// writeLoop drains the outbound queue as text frames and pings on an
// interval to keep intermediaries from reaping the connection.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
