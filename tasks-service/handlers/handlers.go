package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chepyr/go-task-demo/shared"
	"github.com/chepyr/go-task-demo/shared/models"
)

const defaultRequestTimeout = 5 * time.Second

// TaskService is the domain API the HTTP layer translates requests into.
type TaskService interface {
	List(ctx context.Context) ([]models.TaskView, error)
	Get(ctx context.Context, id int64) (models.TaskView, error)
	Create(ctx context.Context, view models.TaskView) (models.TaskView, error)
	Update(ctx context.Context, id int64, partial models.TaskView) (models.TaskView, error)
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	Tasks          TaskService
	RateLimiter    *RateLimiter
	WSHub          *WSHub
	Logger         zerolog.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration
	// TrustProxy installs middleware.RealIP so the client address comes from
	// X-Forwarded-For / X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(r.Context(), timeout)
}

const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

// TaskEvent is pushed to websocket subscribers after a successful write.
type TaskEvent struct {
	Event  string           `json:"event"`
	TaskID int64            `json:"task_id"`
	Task   *models.TaskView `json:"task,omitempty"`
}

type WSHub struct {
	connections map[*websocket.Conn]*subscriber
	mutex       sync.Mutex
	logger      zerolog.Logger
}

// subscriber serializes writes to one connection; gorilla allows a single
// concurrent writer.
type subscriber struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewWSHub(logger zerolog.Logger) *WSHub {
	return &WSHub{
		connections: make(map[*websocket.Conn]*subscriber),
		logger:      logger,
	}
}

func (h *WSHub) register(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.connections[conn] = &subscriber{conn: conn}
}

func (h *WSHub) unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.connections[conn]; ok {
		delete(h.connections, conn)
		conn.Close()
	}
}

// Count returns the number of live subscribers.
func (h *WSHub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

// Broadcast sends an event to every subscriber. Connections that fail to
// accept the message are dropped. The hub lock is released before writing.
func (h *WSHub) Broadcast(event TaskEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to marshal task event")
		return
	}

	h.mutex.Lock()
	subscribers := make([]*subscriber, 0, len(h.connections))
	for _, sub := range h.connections {
		subscribers = append(subscribers, sub)
	}
	h.mutex.Unlock()

	for _, sub := range subscribers {
		if err := sub.write(message); err != nil {
			h.logger.Warn().
				Err(err).
				Msg("failed to send websocket message")
			h.unregister(sub.conn)
		}
	}
}

func (s *subscriber) write(message []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, message)
}

// Close disconnects every subscriber.
func (h *WSHub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.connections {
		conn.Close()
		delete(h.connections, conn)
	}
}

type RateLimiter struct {
	attempts map[string]int
	limit    int
	mutex    sync.Mutex
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	count, exists := rl.attempts[ip]
	if !exists {
		rl.attempts[ip] = 1
		return true
	}
	if count >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

// Stop ends the background reset loop.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

// reset the attempts map every window duration
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mutex.Lock()
			rl.attempts = make(map[string]int)
			rl.mutex.Unlock()
		case <-rl.done:
			return
		}
	}
}

// HandleWebSocket subscribes the caller to task events.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	if !h.RateLimiter.Allow(clientIP(r)) {
		shared.SendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		log.Warn().
			Err(err).
			Msg("websocket upgrade failed")
		return
	}
	h.WSHub.register(conn)

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug().
				Err(err).
				Msg("websocket closed")
			h.WSHub.unregister(conn)
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

// clientIP keys rate limiting on the connection address. Forwarding headers
// only count when NewRouter installed middleware.RealIP, which rewrites
// RemoteAddr before this runs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
