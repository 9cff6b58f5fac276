package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/bus"
	"github.com/dayuer/cacophony-go/internal/config"
)

const (
	WebSocketName = "websocket"

	wsSelfID      = "cacophony"
	wsReadTimeout = 60 * time.Second
)

// Frame is the JSON message exchanged with WebSocket clients.
//
//	client → bot:  {"type":"join","author":{"id":"u1","name":"alice"}}
//	client → bot:  {"type":"message","channel":"general","author":{...},"content":"!ping"}
//	bot → client:  {"type":"message","channel":"general","content":"_Pong!_"}
//	bot → client:  {"type":"direct","content":"..."}
//	bot → client:  {"type":"error","error":"..."}
type Frame struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Author  *bus.Author `json:"author,omitempty"`
	Content string      `json:"content,omitempty"`
	Error   string      `json:"error,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn wraps a websocket.Conn with a write mutex.
// gorilla/websocket does NOT support concurrent writes.
type wsConn struct {
	*websocket.Conn
	mu     sync.Mutex
	author string
}

func (c *wsConn) WriteJSONSafe(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(v)
}

func (c *wsConn) WriteCloseSafe(code int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text))
}

// WebSocketChannel is a local transport: clients connect to /ws and chat in
// the channels of one virtual server.
type WebSocketChannel struct {
	BaseChannel
	cfg config.WebSocketConfig
	mux *http.ServeMux

	srvMu sync.Mutex
	srv   *http.Server

	connMu sync.Mutex
	conns  map[*wsConn]bool
}

// NewWebSocketChannel creates a WebSocketChannel.
func NewWebSocketChannel(cfg config.WebSocketConfig, msgBus *bus.MessageBus, log *zap.Logger) *WebSocketChannel {
	w := &WebSocketChannel{
		BaseChannel: newBase(WebSocketName, msgBus, log),
		cfg:         cfg,
		mux:         http.NewServeMux(),
		conns:       make(map[*wsConn]bool),
	}
	w.SetSelfID(wsSelfID)
	w.mux.HandleFunc("GET /{$}", w.handleRoot)
	w.mux.HandleFunc("/ws", w.handleWS)
	return w
}

// Handler exposes the HTTP routes.
func (w *WebSocketChannel) Handler() http.Handler { return w.mux }

// Announce publishes readiness and the virtual server to the bus.
func (w *WebSocketChannel) Announce() {
	w.Publish(&bus.Ready{Channel: WebSocketName, SelfID: wsSelfID})
	w.Publish(&bus.ServerJoin{Channel: WebSocketName, ServerID: w.cfg.ServerID, ServerName: w.cfg.ServerName})
}

// Start serves HTTP on the configured address until ctx is cancelled.
func (w *WebSocketChannel) Start(ctx context.Context) error {
	srv := &http.Server{Addr: w.cfg.Listen, Handler: w.mux, ReadHeaderTimeout: 10 * time.Second}
	w.srvMu.Lock()
	w.srv = srv
	w.srvMu.Unlock()

	w.running.Store(true)
	defer w.running.Store(false)
	w.log.Info("websocket transport listening", zap.String("addr", w.cfg.Listen))
	w.Announce()

	go func() {
		<-ctx.Done()
		w.shutdown()
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes every connection and shuts the HTTP server down.
func (w *WebSocketChannel) Stop() error {
	return w.shutdown()
}

func (w *WebSocketChannel) shutdown() error {
	w.closeAll()
	w.srvMu.Lock()
	srv := w.srv
	w.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Send broadcasts channel envelopes to every client and delivers user
// envelopes to that user's connections only.
func (w *WebSocketChannel) Send(_ context.Context, env bus.Envelope) error {
	frame := Frame{Type: "message", Channel: env.Target.ID, Content: env.Content}
	if env.Target.Kind == bus.TargetUser {
		frame = Frame{Type: "direct", Content: env.Content}
	}

	w.connMu.Lock()
	targets := make([]*wsConn, 0, len(w.conns))
	for c := range w.conns {
		if env.Target.Kind == bus.TargetUser && c.author != env.Target.ID {
			continue
		}
		targets = append(targets, c)
	}
	w.connMu.Unlock()

	if env.Target.Kind == bus.TargetUser && len(targets) == 0 {
		return fmt.Errorf("websocket: user %s: %w", env.Target.ID, errNotConnected)
	}

	var errs []error
	for _, c := range targets {
		if err := c.WriteJSONSafe(frame); err != nil {
			errs = append(errs, err)
			w.drop(c)
		}
	}
	return errors.Join(errs...)
}

// ConnectionCount returns the number of open client connections.
func (w *WebSocketChannel) ConnectionCount() int {
	w.connMu.Lock()
	defer w.connMu.Unlock()
	return len(w.conns)
}

func (w *WebSocketChannel) handleRoot(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(rw, "Bot is running!")
}

func (w *WebSocketChannel) handleWS(rw http.ResponseWriter, r *http.Request) {
	raw, err := wsUpgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	conn := &wsConn{Conn: raw}
	peer := r.RemoteAddr
	w.connMu.Lock()
	w.conns[conn] = true
	w.connMu.Unlock()
	w.log.Debug("client connected", zap.String("peer", peer), zap.Int("connections", w.ConnectionCount()))
	defer func() {
		w.drop(conn)
		w.log.Debug("client disconnected", zap.String("peer", peer), zap.Int("connections", w.ConnectionCount()))
	}()

	raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.log.Warn("read failed", zap.String("peer", peer), zap.Error(err))
			}
			return
		}
		raw.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			conn.WriteJSONSafe(Frame{Type: "error", Error: "invalid frame"})
			continue
		}
		if err := w.handleFrame(conn, frame); err != nil {
			conn.WriteJSONSafe(Frame{Type: "error", Error: err.Error()})
		}
	}
}

func (w *WebSocketChannel) handleFrame(conn *wsConn, frame Frame) error {
	if frame.Author == nil || frame.Author.ID == "" {
		return errors.New("missing author")
	}
	author := *frame.Author
	if author.Name == "" {
		author.Name = author.ID
	}
	if author.Mention == "" {
		author.Mention = "@" + author.Name
	}

	w.connMu.Lock()
	conn.author = author.ID
	w.connMu.Unlock()

	switch frame.Type {
	case "join":
		w.Publish(&bus.MemberJoin{Channel: WebSocketName, ServerID: w.cfg.ServerID, Member: author})
	case "message":
		if !slices.Contains(w.cfg.Channels, frame.Channel) {
			return fmt.Errorf("unknown channel %q", frame.Channel)
		}
		w.HandleMessage(&bus.InboundMessage{
			ServerID:    w.cfg.ServerID,
			ChannelID:   frame.Channel,
			ChannelName: frame.Channel,
			Author:      author,
			Content:     frame.Content,
			Timestamp:   time.Now(),
		})
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
	return nil
}

func (w *WebSocketChannel) drop(c *wsConn) {
	w.connMu.Lock()
	_, ok := w.conns[c]
	delete(w.conns, c)
	w.connMu.Unlock()
	if ok {
		c.Close()
	}
}

func (w *WebSocketChannel) closeAll() {
	w.connMu.Lock()
	conns := make([]*wsConn, 0, len(w.conns))
	for c := range w.conns {
		conns = append(conns, c)
	}
	w.conns = make(map[*wsConn]bool)
	w.connMu.Unlock()

	for _, c := range conns {
		c.WriteCloseSafe(websocket.CloseGoingAway, "server shutdown")
		c.Close()
	}
}
