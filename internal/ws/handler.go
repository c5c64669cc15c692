package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/map-pickban-backend/internal/hub"
	"github.com/DoyleJ11/map-pickban-backend/internal/lobby"
	"github.com/DoyleJ11/map-pickban-backend/internal/types"
	wire "github.com/DoyleJ11/map-pickban-backend/pkg/types"
)

const (
	sendQueueSize = 32
	outboxSize    = 16
)

type Options struct {
	// OriginPatterns is passed to websocket.Accept. Empty means same origin only.
	OriginPatterns []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	Logger         *zap.Logger
}

type Gateway struct {
	hub  *hub.Hub
	opts Options
	log  *zap.Logger
}

func New(h *hub.Hub, opts Options) *Gateway {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 16 << 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gateway{hub: h, opts: opts, log: opts.Logger}
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	return New(h, opts).ServeHTTP
}

// conn is one websocket client. The read loop runs on the request goroutine;
// writes go through send and a single writer goroutine.
type conn struct {
	id   string
	ws   *websocket.Conn
	g    *Gateway
	log  *zap.Logger
	send chan types.ServerMessage

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce   sync.Once
	closeStatus websocket.StatusCode
	closeReason string

	mu    sync.Mutex
	rooms map[string]*lobby.Lobby
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.opts.OriginPatterns,
	})
	if err != nil {
		g.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	wsConn.SetReadLimit(g.opts.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{
		id:          uuid.NewString(),
		ws:          wsConn,
		g:           g,
		send:        make(chan types.ServerMessage, sendQueueSize),
		ctx:         ctx,
		cancel:      cancel,
		closeStatus: websocket.StatusNormalClosure,
		rooms:       make(map[string]*lobby.Lobby),
	}
	c.log = g.log.With(zap.String("client_id", c.id))
	c.log.Debug("client connected", zap.String("remote", r.RemoteAddr))

	go c.writePump()
	c.readPump()

	c.leaveAll()
	c.closeWith(websocket.StatusNormalClosure, "")
	_ = wsConn.Close(c.closeStatus, c.closeReason)
	c.log.Debug("client disconnected")
}

func (c *conn) readPump() {
	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			// Treat clean close/going-away as normal.
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if c.ctx.Err() == nil {
					c.log.Debug("read failed", zap.Error(err))
				}
			}
			return
		}

		var msg types.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", errBadJSON)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.g.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case msg := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, c.g.opts.WriteTimeout)
			err := wsjson.Write(ctx, c.ws, msg)
			cancel()
			if err != nil {
				c.log.Debug("write failed", zap.Error(err))
				c.closeWith(websocket.StatusGoingAway, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, c.g.opts.WriteTimeout)
			err := c.ws.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				c.closeWith(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

// enqueue never blocks the caller; a client that cannot keep up is closed.
func (c *conn) enqueue(msg types.ServerMessage) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	default:
		c.log.Warn("send queue full, closing client")
		c.closeWith(websocket.StatusPolicyViolation, "too slow")
	}
}

func (c *conn) closeWith(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeStatus = status
		c.closeReason = reason
		c.cancel()
	})
}

// forward relays one lobby subscription until the lobby closes the outbox.
func (c *conn) forward(code string, lb *lobby.Lobby, out <-chan lobby.Snapshot) {
	for snap := range out {
		view := types.NewRoomView(snap.Version, snap.State)
		c.enqueue(types.ServerMessage{Type: wire.TypeRoomUpdated, Code: code, Room: &view})
	}

	c.mu.Lock()
	cur := c.rooms[code]
	subscribed := cur == lb
	if subscribed {
		delete(c.rooms, code)
	}
	c.mu.Unlock()
	if !subscribed {
		return // left on purpose or replaced
	}

	select {
	case <-lb.Done():
		c.enqueue(types.ServerMessage{Type: wire.TypeRoomClosed, Code: code})
	default:
		c.log.Warn("dropped by lobby as slow", zap.String("code", code))
		c.closeWith(websocket.StatusPolicyViolation, "too slow")
	}
}

func (c *conn) leaveAll() {
	c.mu.Lock()
	rooms := c.rooms
	c.rooms = make(map[string]*lobby.Lobby)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, lb := range rooms {
		lb.Leave(ctx, c.id)
	}
}
