package hub

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
	"github.com/DoyleJ11/map-pickban-backend/internal/errs"
	"github.com/DoyleJ11/map-pickban-backend/internal/lobby"
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Code   string
	Format engine.Format
	Reply  chan Created
}

// Created is the outcome of CreateLobby. AdminToken is only ever handed to
// the creator.
type Created struct {
	Lobby      *lobby.Lobby
	AdminToken string
	Err        error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby unregisters Code only while it still maps to Lobby, so a late
// close of a replaced lobby cannot evict its successor.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []string
}

type ShutdownHub struct {
	Done chan struct{}
}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	IdleTimeout time.Duration
	OnComplete  func(engine.State)
	NewToken    func() (string, error)
	Logger      *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.NewToken == nil {
		opts.NewToken = lobby.NewToken
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed after the hub has shut down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg.Code, msg.Format)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				if cur := h.lobbies[msg.Code]; cur != nil && cur == msg.Lobby {
					delete(h.lobbies, msg.Code)
					h.log.Info("lobby removed", zap.String("code", msg.Code), zap.Int("live", len(h.lobbies)))
				}

			case ListLobbies:
				codes := make([]string, 0, len(h.lobbies))
				for code := range h.lobbies {
					codes = append(codes, code)
				}
				slices.Sort(codes)
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				if msg.Done != nil {
					close(msg.Done)
				}
				return
			}
		}
	}
}

func (h *Hub) create(code string, format engine.Format) Created {
	if !engine.ValidCode(code) {
		return Created{Err: errs.ErrInvalidCode}
	}
	if _, err := engine.SequenceFor(format); err != nil {
		return Created{Err: err}
	}
	if h.lobbies[code] != nil {
		return Created{Err: errs.ErrDuplicateCode}
	}

	adminToken, err := h.opts.NewToken()
	if err != nil {
		return Created{Err: errs.Wrap(errs.CodeInternal, "could not issue admin token", err)}
	}
	state, err := engine.NewState(code, format, adminToken)
	if err != nil {
		return Created{Err: err}
	}

	lb := lobby.NewLobby(h.ctx, state, lobby.Options{
		IdleTimeout: h.opts.IdleTimeout,
		OnClose:     h.removeLater,
		OnComplete:  h.opts.OnComplete,
		NewToken:    h.opts.NewToken,
		Logger:      h.log,
	})
	h.lobbies[code] = lb
	h.log.Info("lobby created",
		zap.String("code", code),
		zap.String("format", string(format)),
		zap.Int("live", len(h.lobbies)))
	return Created{Lobby: lb, AdminToken: adminToken}
}

// removeLater is called from a lobby goroutine, so it must never block on a
// hub that is busy or gone.
func (h *Hub) removeLater(lb *lobby.Lobby) {
	go func() {
		select {
		case h.inbox <- RemoveLobby{Code: lb.Code(), Lobby: lb}:
		case <-h.ctx.Done():
		}
	}()
}

func (h *Hub) shutdown() {
	for code, lb := range h.lobbies {
		lb.Close()
		delete(h.lobbies, code)
	}
	h.cancel()
}
