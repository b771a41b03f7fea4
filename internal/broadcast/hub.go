// Package broadcast delivers committed leaderboard snapshots to live viewers,
// locally over websockets and across instances over redis pub/sub.
package broadcast

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"skillport/internal/leaderboard"
	"skillport/pkg/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// LatestLoader returns the most recent snapshot known for a contest, or nil.
type LatestLoader interface {
	Latest(ctx context.Context, contestID uuid.UUID) (*leaderboard.Snapshot, error)
}

// Hub keeps one room of viewers per contest and the latest snapshot delivered
// to each room. Snapshots older than the cached one are ignored, so deliveries
// arriving out of order never move a room backwards.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*client]struct{}
	latest map[uuid.UUID]*leaderboard.Snapshot

	topN     int
	loader   LatestLoader
	log      *logrus.Entry
	metrics  *metrics.Manager
	upgrader websocket.Upgrader
}

type HubOption func(*Hub)

func WithTopN(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.topN = n
		}
	}
}

// WithLatestLoader sets where late joiners are served from when this instance
// has not seen a snapshot for the contest yet.
func WithLatestLoader(l LatestLoader) HubOption {
	return func(h *Hub) { h.loader = l }
}

func WithHubLogger(log *logrus.Entry) HubOption {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

func WithHubMetrics(m *metrics.Manager) HubOption {
	return func(h *Hub) { h.metrics = m }
}

func NewHub(opts ...HubOption) *Hub {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	h := &Hub{
		rooms:  make(map[uuid.UUID]map[*client]struct{}),
		latest: make(map[uuid.UUID]*leaderboard.Snapshot),
		topN:   50,
		log:    logrus.NewEntry(silent),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish implements leaderboard.Publisher for in-process delivery.
func (h *Hub) Publish(_ context.Context, snap *leaderboard.Snapshot) error {
	h.Deliver(snap)
	return nil
}

// Deliver caches snap as the contest's latest and pushes it to every viewer of
// the contest. It never blocks: a viewer whose buffer is full is disconnected.
// It reports whether snap was newer than what the hub had.
func (h *Hub) Deliver(snap *leaderboard.Snapshot) bool {
	if snap == nil {
		return false
	}

	payload, err := json.Marshal(snap.LiveMessage(h.topN))
	if err != nil {
		h.log.WithError(err).Error("failed to encode leaderboard snapshot")
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.latest[snap.ContestID]; ok && !snap.ComputedAt.After(cur.ComputedAt) {
		return false
	}
	h.latest[snap.ContestID] = snap

	room := h.rooms[snap.ContestID]
	for c := range room {
		select {
		case c.send <- payload:
			h.metrics.RecordBroadcast("websocket", metrics.OutcomeOK)
		default:
			h.metrics.RecordBroadcast("websocket", metrics.OutcomeError)
			h.log.WithField("contest_id", snap.ContestID.String()).
				WithField("remote_addr", c.remoteAddr).
				Warn("live viewer too slow, disconnecting")
			h.removeLocked(c)
		}
	}
	return true
}

// ServeWS upgrades the request and subscribes the connection to contestID.
// The latest snapshot, if any, is sent right away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, contestID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		contestID:  contestID,
		remoteAddr: r.RemoteAddr,
	}

	initial := h.latestFor(r.Context(), contestID)
	h.register(c, initial)

	go c.writePump()
	go c.readPump()
}

// Viewers returns the number of connected viewers of a contest.
func (h *Hub) Viewers(contestID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[contestID])
}

// Latest returns the hub's cached snapshot for a contest.
func (h *Hub) Latest(contestID uuid.UUID) *leaderboard.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest[contestID]
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for c := range room {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) latestFor(ctx context.Context, contestID uuid.UUID) *leaderboard.Snapshot {
	if snap := h.Latest(contestID); snap != nil {
		return snap
	}
	if h.loader == nil {
		return nil
	}

	snap, err := h.loader.Latest(ctx, contestID)
	if err != nil {
		h.log.WithError(err).WithField("contest_id", contestID.String()).Warn("failed to load latest snapshot")
		return nil
	}
	return snap
}

func (h *Hub) register(c *client, initial *leaderboard.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.contestID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.contestID] = room
	}
	room[c] = struct{}{}
	h.metrics.ViewerConnected()

	if cur, ok := h.latest[c.contestID]; ok && (initial == nil || cur.ComputedAt.After(initial.ComputedAt)) {
		initial = cur
	} else if initial != nil {
		h.latest[c.contestID] = initial
	}
	if initial == nil {
		return
	}

	payload, err := json.Marshal(initial.LiveMessage(h.topN))
	if err != nil {
		h.log.WithError(err).Error("failed to encode leaderboard snapshot")
		return
	}
	c.send <- payload
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	room, ok := h.rooms[c.contestID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.contestID)
	}
	close(c.send)
	h.metrics.ViewerDisconnected()
}

type client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	contestID  uuid.UUID
	remoteAddr string
}

// readPump drains the connection so pongs and close frames are processed.
// Viewers have nothing to say; anything they send is discarded.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).WithField("remote_addr", c.remoteAddr).Debug("live viewer read error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
