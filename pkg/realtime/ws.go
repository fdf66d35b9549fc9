package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport defaults.
const (
	DefaultSendBuffer   = 64
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
	DefaultReadLimit    = 1 << 20
)

// TransportConfig tunes the websocket endpoint.
type TransportConfig struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadLimit      int64
	AllowedOrigins []string // "*" allows any origin
}

func (c *TransportConfig) defaults() {
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = DefaultReadLimit
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

// WebsocketHandler upgrades HTTP requests to sessions of a Hub.
type WebsocketHandler struct {
	hub      *Hub
	config   TransportConfig
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*conn]struct{}
	closing  bool
	sessions sync.WaitGroup
}

// NewWebsocketHandler creates the websocket endpoint for hub.
func NewWebsocketHandler(hub *Hub, config TransportConfig) *WebsocketHandler {
	config.defaults()
	h := &WebsocketHandler{hub: hub, config: config, conns: make(map[*conn]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebsocketHandler) checkOrigin(r *http.Request) bool {
	if slices.Contains(h.config.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.config.AllowedOrigins, origin)
}

// ServeHTTP handles one connection for its whole lifetime. Closing the
// connection is the only way a session ends.
func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.hub.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	conn := newConn(ws, h.config, h.hub.logger)
	if !h.track(conn) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.close()
		return
	}
	defer h.untrack(conn)

	session := h.hub.Connect(remoteAddress(r), r.UserAgent(), conn)
	logger := h.hub.logger.With("session", session.ID)

	go conn.writeLoop()

	// In-flight commands outlive the connection; their replies become no-ops.
	ctx := context.WithoutCancel(r.Context())
	conn.readLoop(func(f Frame) {
		h.hub.Handle(ctx, session.ID, f.Event, f.Data)
	}, logger)

	conn.close()
	h.hub.Disconnect(session.ID)
}

func (h *WebsocketHandler) track(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[c] = struct{}{}
	h.sessions.Add(1)
	return true
}

func (h *WebsocketHandler) untrack(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	h.sessions.Done()
}

// Shutdown closes every open session and waits until each one has left the
// registry. Upgrades attempted afterwards are refused. http.Server.Shutdown
// does not cover hijacked connections, so callers run both.
func (h *WebsocketHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(c.config.WriteTimeout))
		c.close()
	}

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// conn is the Outbox of one websocket session. Frames are queued and written
// by a single goroutine; a full or closed queue drops the frame.
type conn struct {
	ws     *websocket.Conn
	config TransportConfig
	logger *slog.Logger

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, config TransportConfig, logger *slog.Logger) *conn {
	return &conn{
		ws:     ws,
		config: config,
		logger: logger,
		send:   make(chan []byte, config.SendBuffer),
		closed: make(chan struct{}),
	}
}

// Enqueue implements Outbox.
func (c *conn) Enqueue(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.closed:
		return false
	default:
		c.logger.Warn("send queue full, dropping frame")
		return false
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.closed:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				// A write deadline cannot be recovered on a websocket.
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

func (c *conn) readLoop(handle func(Frame), logger *slog.Logger) {
	pongWait := c.config.PingInterval * 2
	c.ws.SetReadLimit(c.config.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			continue
		}

		var f Frame
		if err := json.Unmarshal(message, &f); err != nil || f.Event == "" {
			logger.Debug("malformed frame", "error", err)
			c.Enqueue(mustEncode(EventError, ErrorPayload{Message: ErrInvalidPayload.Error()}))
			continue
		}
		handle(f)
	}
}

func mustEncode(event string, data any) []byte {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		panic(err)
	}
	return frame
}

// remoteAddress prefers the first X-Forwarded-For hop, then the socket peer.
func remoteAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
