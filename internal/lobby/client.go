package lobby

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
	"github.com/DoyleJ11/map-pickban-backend/internal/errs"
)

// NewToken returns an opaque base64url credential for seats and administrators.
func NewToken() (string, error) {
	var b [18]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.URLEncoding.Strict().EncodeToString(b[:]), nil
}

// Join sends req and waits for its outcome. Any Reply set on req is replaced.
func (l *Lobby) Join(ctx context.Context, req Join) (JoinResult, error) {
	reply := make(chan JoinResult, 1)
	req.Reply = reply
	if err := l.send(ctx, req); err != nil {
		return JoinResult{}, err
	}
	select {
	case res := <-reply:
		return res, res.Err
	case <-l.ctx.Done():
		// The reply may have been sent just before the lobby closed.
		select {
		case res := <-reply:
			return res, res.Err
		default:
		}
		return JoinResult{}, errs.ErrSessionNotFound
	case <-ctx.Done():
		return JoinResult{}, ctx.Err()
	}
}

// Submit applies cmd and returns the engine's verdict.
func (l *Lobby) Submit(ctx context.Context, cmd engine.Command) error {
	reply := make(chan error, 1)
	if err := l.send(ctx, FromClient{Cmd: cmd, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-l.ctx.Done():
		select {
		case err := <-reply:
			return err
		default:
		}
		return errs.ErrSessionNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave drops clientID from the membership. It does not wait.
func (l *Lobby) Leave(ctx context.Context, clientID string) {
	_ = l.send(ctx, Leave{ClientID: clientID})
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		return View{}, errs.ErrSessionNotFound
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Close stops the lobby without notifying the registry.
func (l *Lobby) Close() { l.cancel() }

func (l *Lobby) send(ctx context.Context, m Msg) error {
	select {
	case <-l.ctx.Done():
		return errs.ErrSessionNotFound
	default:
	}
	select {
	case l.inbox <- m:
		return nil
	case <-l.ctx.Done():
		return errs.ErrSessionNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}
