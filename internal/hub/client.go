package hub

import (
	"context"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
	"github.com/DoyleJ11/map-pickban-backend/internal/errs"
	"github.com/DoyleJ11/map-pickban-backend/internal/lobby"
)

var errHubClosed = errs.New(errs.CodeInternal, "session registry is shut down")

// Create registers a new lobby and returns it with its administrator token.
func (h *Hub) Create(ctx context.Context, code string, format engine.Format) (*lobby.Lobby, string, error) {
	reply := make(chan Created, 1)
	if err := h.send(ctx, CreateLobby{Code: code, Format: format, Reply: reply}); err != nil {
		return nil, "", err
	}
	select {
	case res := <-reply:
		return res.Lobby, res.AdminToken, res.Err
	case <-h.ctx.Done():
		return nil, "", errHubClosed
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

// Get returns the live lobby for code or ErrSessionNotFound.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case lb := <-reply:
		if lb == nil {
			return nil, errs.ErrSessionNotFound
		}
		return lb, nil
	case <-h.ctx.Done():
		return nil, errHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// List returns the codes of all live lobbies, sorted.
func (h *Hub) List(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.send(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case codes := <-reply:
		return codes, nil
	case <-h.ctx.Done():
		return nil, errHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Remove(ctx context.Context, lb *lobby.Lobby) error {
	return h.send(ctx, RemoveLobby{Code: lb.Code(), Lobby: lb})
}

// Shutdown closes every lobby and stops the hub. It returns once the hub
// loop has exited or ctx expires.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	if err := h.send(ctx, ShutdownHub{Done: done}); err != nil {
		if err == errHubClosed {
			return nil
		}
		return err
	}
	select {
	case <-done:
		return nil
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case <-h.ctx.Done():
		return errHubClosed
	default:
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return errHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
