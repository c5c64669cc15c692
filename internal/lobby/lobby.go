package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
	"github.com/DoyleJ11/map-pickban-backend/internal/errs"
)

type Msg interface{ isLobbyMsg() }

// FromClient carries any engine command other than a join. Reply is optional
// and buffered by the sender.
type FromClient struct {
	Cmd   engine.Command
	Reply chan error
}

func (FromClient) isLobbyMsg() {}

// Join adds ClientID to the broadcast membership and applies a join command
// for Role. A nil Outbox keeps the subscription the client already has.
type Join struct {
	ClientID string
	Role     engine.Role
	Name     string
	Token    string
	Outbox   chan Snapshot
	Reply    chan JoinResult
}

func (Join) isLobbyMsg() {}

type JoinResult struct {
	// Side and Token are set when the client holds a seat after the join.
	Side  engine.Side
	Token string
	Err   error
}

// Leave closes the client's outbox and removes it from the membership. The
// lobby closes itself once nobody is left.
type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// Snapshot is what members receive after every accepted change. State is
// never mutated after it is published.
type Snapshot struct {
	Version int
	State   engine.State
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
}

type Options struct {
	// IdleTimeout closes the lobby when no message arrives for that long.
	// Zero disables it.
	IdleTimeout time.Duration
	// OnClose runs on the lobby goroutine once the lobby closes by itself
	// (empty membership, idle, Shutdown message). It must not block.
	OnClose func(*Lobby)
	// OnComplete receives the state of every finished ritual. It must not block.
	OnComplete func(engine.State)
	NewToken   func() (string, error)
	Logger     *zap.Logger
}

type Lobby struct {
	code    string
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan Snapshot
	// dropped holds members cut off as too slow whose leave is still pending.
	dropped []string
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewLobby(parent context.Context, initial engine.State, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if opts.NewToken == nil {
		opts.NewToken = NewToken
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	l := &Lobby{
		code:    initial.Code,
		inbox:   make(chan Msg, 64),
		state:   initial,
		version: 0,
		clients: make(map[string]chan Snapshot),
		opts:    opts,
		log:     log.With(zap.String("code", initial.Code)),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Done is closed once the lobby stops processing messages.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Inbox exposes the raw mailbox; the helpers below are usually simpler.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) loop() {
	var idle <-chan time.Time
	var timer *time.Timer
	if l.opts.IdleTimeout > 0 {
		timer = time.NewTimer(l.opts.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-idle:
			l.log.Info("lobby idle, closing", zap.Duration("idle_timeout", l.opts.IdleTimeout))
			l.close()
			return

		case m := <-l.inbox:
			if timer != nil {
				timer.Reset(l.opts.IdleTimeout)
			}

			switch msg := m.(type) {
			case Join:
				l.handleJoin(msg)

			case FromClient:
				events, err := l.apply(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- err
				}
				if err != nil {
					l.log.Debug("command rejected",
						zap.String("command", string(msg.Cmd.Type)),
						zap.String("client_id", msg.Cmd.ClientID),
						zap.Error(err))
					break
				}
				l.commit(events)

			case Leave:
				ch, member := l.clients[msg.ClientID]
				if member {
					close(ch)
					delete(l.clients, msg.ClientID)
				}
				if events, err := l.apply(engine.Command{Type: engine.CmdLeave, ClientID: msg.ClientID}); err == nil {
					l.commit(events)
				}
				if l.evictDropped() {
					return
				}
				if member && len(l.clients) == 0 {
					l.log.Info("last member left, closing")
					l.close()
					return
				}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state,
				}

			case Shutdown:
				l.close()
				return
			}

			if l.evictDropped() {
				return
			}
		}
	}
}

func (l *Lobby) handleJoin(msg Join) {
	// Membership is granted even when the role is rejected.
	if msg.Outbox != nil {
		if old, ok := l.clients[msg.ClientID]; ok && old != msg.Outbox {
			close(old)
		}
		l.clients[msg.ClientID] = msg.Outbox
	}

	cmd := engine.Command{
		Type:     engine.CmdJoin,
		ClientID: msg.ClientID,
		Role:     msg.Role,
		Name:     msg.Name,
		Token:    msg.Token,
	}
	var res JoinResult
	if msg.Role == engine.RoleRepresentative && msg.Token == "" {
		tok, err := l.opts.NewToken()
		if err != nil {
			res.Err = errs.Wrap(errs.CodeInternal, "could not issue seat token", err)
		}
		cmd.NewToken = tok
	}

	var events []engine.Event
	if res.Err == nil {
		events, res.Err = l.apply(cmd)
	}
	if res.Err == nil {
		if side := l.state.SeatOf(msg.ClientID); side != engine.SideNone {
			res.Side = side
			res.Token = l.state.SeatFor(side).Token
		}
	}
	if msg.Reply != nil {
		msg.Reply <- res
	}

	if len(events) > 0 {
		l.commit(events)
		return
	}
	if ch, ok := l.clients[msg.ClientID]; ok {
		l.deliver(msg.ClientID, ch, Snapshot{Version: l.version, State: l.state})
	}
}

// apply runs cmd against the current state. A panic inside the engine is
// reported as an internal error and the previous state is kept.
func (l *Lobby) apply(cmd engine.Command) (events []engine.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("engine panic",
				zap.String("command", string(cmd.Type)),
				zap.Any("panic", r))
			events, err = nil, errs.ErrInternal
		}
	}()

	var next engine.State
	events, next, err = engine.Apply(l.state, cmd)
	if err != nil {
		return nil, err
	}
	l.state = next
	return events, nil
}

func (l *Lobby) commit(events []engine.Event) {
	if len(events) == 0 {
		return
	}
	l.version++
	l.broadcast(Snapshot{Version: l.version, State: l.state})

	if engine.ContainsEvent(events, engine.EvtRitualCompleted) {
		l.log.Info("ritual completed", zap.Int("version", l.version))
		if l.opts.OnComplete != nil {
			l.opts.OnComplete(l.state.Clone())
		}
	}
}

// evictDropped applies a leave for every member dropped as too slow and
// reports whether the lobby closed because its membership is now empty.
func (l *Lobby) evictDropped() bool {
	if len(l.dropped) == 0 {
		return false
	}
	for len(l.dropped) > 0 {
		ids := l.dropped
		l.dropped = nil
		var events []engine.Event
		for _, id := range ids {
			if evs, err := l.apply(engine.Command{Type: engine.CmdLeave, ClientID: id}); err == nil {
				events = append(events, evs...)
			}
		}
		// Broadcasting the departures can drop further members.
		l.commit(events)
	}
	if len(l.clients) == 0 {
		l.log.Info("last member dropped, closing")
		l.close()
		return true
	}
	return false
}

func (l *Lobby) close() {
	l.shutdown()
	if l.opts.OnClose != nil {
		l.opts.OnClose(l)
	}
}

// shutdown cancels first so a member seeing its outbox close can already
// observe Done.
func (l *Lobby) shutdown() {
	l.cancel()
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		l.deliver(id, ch, snap)
	}
}

func (l *Lobby) deliver(id string, ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		//ok
	default:
		// Client is slow/full - drop them.
		l.log.Warn("dropping slow client", zap.String("client_id", id))
		close(ch)
		delete(l.clients, id)
		l.dropped = append(l.dropped, id)
	}
}
