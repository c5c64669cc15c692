package ws

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
	"github.com/DoyleJ11/map-pickban-backend/internal/errs"
	"github.com/DoyleJ11/map-pickban-backend/internal/lobby"
	"github.com/DoyleJ11/map-pickban-backend/internal/types"
	wire "github.com/DoyleJ11/map-pickban-backend/pkg/types"
)

var (
	errBadJSON     = errs.New(errs.CodeBadRequest, "bad json")
	errUnknownType = errs.New(errs.CodeBadRequest, "unknown type")
	errBadSide     = errs.New(errs.CodeBadRequest, "unknown acting side")
)

func (c *conn) dispatch(m types.ClientMessage) {
	switch m.Type {
	case wire.TypeCreateRoom:
		c.createRoom(m)
	case wire.TypeJoinRoom:
		c.joinRoom(m)
	case wire.TypeStartPickban:
		c.submit(m, engine.Command{Type: engine.CmdStart, ClientID: c.id, Token: m.Token})
	case wire.TypeResetPickban:
		c.submit(m, engine.Command{Type: engine.CmdReset, ClientID: c.id, Token: m.Token})
	case wire.TypeSelectMap:
		side, ok := parseSide(m.ActingSide)
		if !ok {
			c.sendError(m.Type, errBadSide)
			return
		}
		c.submit(m, engine.Command{Type: engine.CmdSelectMap, ClientID: c.id, Side: side, MapName: m.MapName})
	case wire.TypeSelectSide:
		side, ok := parseSide(m.ActingSide)
		if !ok {
			c.sendError(m.Type, errBadSide)
			return
		}
		choice := engine.SideChoice(strings.ToUpper(strings.TrimSpace(m.Side)))
		c.submit(m, engine.Command{Type: engine.CmdSelectSide, ClientID: c.id, Side: side, Choice: choice})
	case wire.TypeLeaveRoom:
		c.leaveRoom(m.Code)
	default:
		c.sendError(m.Type, errUnknownType)
	}
}

func (c *conn) createRoom(m types.ClientMessage) {
	lb, adminToken, err := c.g.hub.Create(c.ctx, m.Code, engine.Format(m.Format))
	if err != nil {
		c.sendError(m.Type, err)
		return
	}
	c.log.Info("room created", zap.String("code", m.Code), zap.String("format", m.Format))
	c.enqueue(types.ServerMessage{Type: wire.TypeRoomCreated, Code: m.Code, AdminToken: adminToken})

	// The creator follows the room as its administrator.
	if _, err := c.join(lb, engine.RoleAdministrator, "", ""); err != nil {
		c.sendError(m.Type, err)
	}
}

func (c *conn) joinRoom(m types.ClientMessage) {
	lb, err := c.g.hub.Get(c.ctx, m.Code)
	if err != nil {
		c.sendError(m.Type, err)
		return
	}
	if _, err := c.join(lb, parseRole(m.Role), m.DisplayName, m.Token); err != nil {
		c.sendError(m.Type, err)
	}
}

// join subscribes the connection to lb unless it already is, then applies
// the join. A seated representative hears seat-assigned before any snapshot.
func (c *conn) join(lb *lobby.Lobby, role engine.Role, name, token string) (lobby.JoinResult, error) {
	code := lb.Code()

	c.mu.Lock()
	var out chan lobby.Snapshot
	if c.rooms[code] != lb {
		out = make(chan lobby.Snapshot, outboxSize)
		c.rooms[code] = lb
	}
	c.mu.Unlock()

	res, err := lb.Join(c.ctx, lobby.Join{
		ClientID: c.id,
		Role:     role,
		Name:     name,
		Token:    token,
		Outbox:   out,
	})
	if errors.Is(err, errs.ErrSessionNotFound) {
		c.mu.Lock()
		if c.rooms[code] == lb {
			delete(c.rooms, code)
		}
		c.mu.Unlock()
		return res, err
	}

	if err == nil && res.Side != engine.SideNone && res.Side != "" {
		c.enqueue(types.ServerMessage{
			Type:  wire.TypeSeatAssigned,
			Code:  code,
			Side:  string(res.Side),
			Token: res.Token,
		})
	}
	if out != nil {
		go c.forward(code, lb, out)
	}
	return res, err
}

// submit forwards a command to the room. Rejected selects are dropped
// without a reply; stale clicks are expected.
func (c *conn) submit(m types.ClientMessage, cmd engine.Command) {
	lb, err := c.g.hub.Get(c.ctx, m.Code)
	if err != nil {
		c.sendError(m.Type, err)
		return
	}
	err = lb.Submit(c.ctx, cmd)
	if err == nil {
		return
	}
	if (cmd.Type == engine.CmdSelectMap || cmd.Type == engine.CmdSelectSide) && errors.Is(err, errs.ErrIllegalAction) {
		c.log.Debug("select ignored", zap.String("code", m.Code), zap.Error(err))
		return
	}
	c.sendError(m.Type, err)
}

func (c *conn) leaveRoom(code string) {
	c.mu.Lock()
	lb := c.rooms[code]
	delete(c.rooms, code)
	c.mu.Unlock()
	if lb != nil {
		lb.Leave(c.ctx, c.id)
	}
}

func (c *conn) sendError(requestType string, err error) {
	code := errs.CodeOf(err)
	if code == errs.CodeInternal {
		c.log.Error("request failed", zap.String("request_type", requestType), zap.Error(err))
	}
	c.enqueue(types.ServerMessage{
		Type: wire.TypeError,
		Error: &types.ErrorPayload{
			Code:        string(code),
			Message:     errs.MessageOf(err),
			RequestType: requestType,
		},
	})
}

func parseRole(role string) engine.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case wire.RoleRepresentative, wire.RoleAliasTeamLeader:
		return engine.RoleRepresentative
	case wire.RoleObserver, wire.RoleAliasSpectator:
		return engine.RoleObserver
	case wire.RoleAdministrator, wire.RoleAliasAdmin:
		return engine.RoleAdministrator
	default:
		return engine.Role(role)
	}
}

func parseSide(side string) (engine.Side, bool) {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "sidea", "leader1":
		return engine.SideA, true
	case "sideb", "leader2":
		return engine.SideB, true
	default:
		return "", false
	}
}
