// Package livereload pushes change notifications to connected browsers over
// a websocket. One Hub is created per develop session: Start launches its
// loop, Close tears it down, and tasks notify it through build.Notifier.
package livereload

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/logging"
)

const (
	// DefaultPath is where the hub accepts websocket connections.
	DefaultPath = "/__livereload"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// MessageType selects what the browser does with a message.
type MessageType string

const (
	TypeReload MessageType = "reload"
	TypeCSS    MessageType = "css"
	TypeError  MessageType = "error"
)

// Message is the JSON payload sent to browsers.
type Message struct {
	Type      MessageType `json:"type"`
	Paths     []string    `json:"paths,omitempty"`
	Task      string      `json:"task,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Options configures a Hub.
type Options struct {
	// CSSInjection swaps stylesheets in place. When false, style changes
	// reload the page.
	CSSInjection bool
	// OriginPatterns are extra origins allowed to connect besides the
	// server's own host.
	OriginPatterns []string
	Logger         logging.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans messages out to every connected browser. Slow clients whose
// buffers fill up are dropped.
type Hub struct {
	opts   Options
	logger logging.Logger

	clients   map[*client]struct{}
	clientsMu sync.RWMutex

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hub{
		opts:       opts,
		logger:     logger.WithComponent("livereload"),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
	}
}

// Start runs the hub loop until ctx is done or Close is called. Starting a
// running hub is a no-op.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	h.running = true
	go h.run(ctx, h.done)
}

// Close stops the loop and disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (h *Hub) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer h.dropAll()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.clientsMu.Unlock()
			h.logger.Debug(ctx, "Client connected", "clients", count)

		case c := <-h.unregister:
			h.drop(c, websocket.StatusNormalClosure)
			h.logger.Debug(ctx, "Client disconnected", "clients", h.Clients())

		case payload := <-h.broadcast:
			var slow []*client
			h.clientsMu.RLock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					slow = append(slow, c)
				}
			}
			h.clientsMu.RUnlock()

			for _, c := range slow {
				h.drop(c, websocket.StatusPolicyViolation)
				h.logger.Warn(ctx, nil, "Dropped slow client", "clients", h.Clients())
			}
		}
	}
}

func (h *Hub) drop(c *client, status websocket.StatusCode) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	go c.conn.Close(status, "")
}

func (h *Hub) dropAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		go c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// Clients reports the number of connected browsers.
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Notify broadcasts msg. Without clients, or before Start, it does nothing.
func (h *Hub) Notify(msg Message) {
	if h.Clients() == 0 {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to encode message")
		return
	}

	h.mu.Lock()
	running, done := h.running, h.done
	h.mu.Unlock()
	if !running {
		return
	}

	select {
	case h.broadcast <- payload:
	case <-done:
	}
}

// Reload asks every browser to reload the page.
func (h *Hub) Reload(paths ...string) {
	h.Notify(Message{Type: TypeReload, Paths: paths})
}

// Error shows a task failure in the browser console.
func (h *Hub) Error(task string, err error) {
	h.Notify(Message{Type: TypeError, Task: task, Message: err.Error()})
}

// Changed implements build.Notifier.
func (h *Hub) Changed(_ context.Context, kind build.ChangeKind, paths []string) {
	if kind == build.ChangeCSS && h.opts.CSSInjection {
		h.Notify(Message{Type: TypeCSS, Paths: paths})
		return
	}
	h.Reload(paths...)
}

// ServeHTTP upgrades the request and registers the browser.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	running, done := h.running, h.done
	h.mu.Unlock()
	if !running {
		http.Error(w, "live reload is not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go h.writePump(c)
	h.readPump(c, done)
}

// readPump discards browser messages and notices disconnects. Reading is
// also what processes pong frames for the pings sent by writePump.
func (h *Hub) readPump(c *client, done chan struct{}) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-done:
		}
	}()

	for {
		_, _, err := c.conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && status != -1 {
				h.logger.Debug(context.Background(), "WebSocket read ended", "status", status.String())
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				c.conn.CloseNow()
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), pongWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.conn.CloseNow()
				return
			}
		}
	}
}
