// Package types holds the JSON shapes exchanged with pick/ban clients over
// the websocket and REST surfaces.
package types

// Client -> Server frame types.
const (
	TypeCreateRoom   = "create-room"
	TypeJoinRoom     = "join-room"
	TypeStartPickban = "start-pickban"
	TypeResetPickban = "reset-pickban"
	TypeSelectMap    = "select-map"
	TypeSelectSide   = "select-side"
	TypeLeaveRoom    = "leave-room"
)

// Server -> Client frame types.
const (
	TypeRoomCreated  = "room-created"
	TypeSeatAssigned = "seat-assigned"
	TypeRoomUpdated  = "room-updated"
	TypeRoomClosed   = "room-closed"
	TypeError        = "error"
)

// Roles as sent by clients. The aliases are what older clients send.
const (
	RoleRepresentative = "representative"
	RoleObserver       = "observer"
	RoleAdministrator  = "administrator"

	RoleAliasTeamLeader = "teamleader"
	RoleAliasSpectator  = "spectator"
	RoleAliasAdmin      = "admin"
)
