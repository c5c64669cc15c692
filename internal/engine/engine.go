package engine

import (
	"crypto/subtle"
	"slices"

	"github.com/DoyleJ11/map-pickban-backend/internal/errs"
)

// All turn violations share the ILLEGAL_ACTION code; the messages only help
// when reading logs.
var (
	ErrWrongTurn            = errs.New(errs.CodeIllegalAction, "invalid turn")
	ErrIllegalMap           = errs.New(errs.CodeIllegalAction, "illegal map")
	ErrIllegalSide          = errs.New(errs.CodeIllegalAction, "illegal side choice")
	ErrNotStarted           = errs.New(errs.CodeIllegalAction, "pick/ban not started")
	ErrGameAlreadyCompleted = errs.New(errs.CodeIllegalAction, "pick/ban already completed")
	ErrUnsupportedCommand   = errs.New(errs.CodeBadRequest, "unsupported command")
)

type Side string

const (
	SideA      Side = "sideA"
	SideB      Side = "sideB"
	SideNone   Side = "none"
	SideSystem Side = "system"
)

type Action string

const (
	ActionBan      Action = "ban"
	ActionPickMap  Action = "pick-map"
	ActionPickSide Action = "pick-side"
	ActionDecider  Action = "decider"
)

type SideChoice string

const (
	SideChoiceAttack  SideChoice = "ATTACK"
	SideChoiceDefense SideChoice = "DEFENSE"
)

type Role string

const (
	RoleRepresentative Role = "representative"
	RoleObserver       Role = "observer"
	RoleAdministrator  Role = "administrator"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
)

type TurnStep struct {
	Side   Side   `json:"side"`
	Action Action `json:"action"`
}

// ChosenEntry is one resolved step. Target is a map name, or a SideChoice for
// pick-side entries.
type ChosenEntry struct {
	Target string `json:"target"`
	Kind   Action `json:"kind"`
	Actor  Side   `json:"actor"`
}

type Seat struct {
	Name     string
	ClientID string
	Token    string
}

func (s Seat) Occupied() bool { return s.Name != "" }

type State struct {
	Code       string
	Format     Format
	AdminToken string
	SideA      Seat
	SideB      Seat
	Observers  map[string]bool
	Started    bool
	Cursor     int
	Sequence   []TurnStep
	Chosen     []ChosenEntry
}

type CommandType string

const (
	CmdJoin       CommandType = "Join"
	CmdStart      CommandType = "Start"
	CmdReset      CommandType = "Reset"
	CmdSelectMap  CommandType = "SelectMap"
	CmdSelectSide CommandType = "SelectSide"
	CmdLeave      CommandType = "Leave"
)

/*
	CmdJoin       -> EvtSeatClaimed | EvtSeatReclaimed | EvtObserverJoined | nothing (rejoin, admin)
	CmdStart      -> EvtRitualStarted
	CmdReset      -> EvtRitualReset
	CmdSelectMap  -> EvtMapBanned|EvtMapPicked -> EvtTurnAdvanced [-> EvtDeciderResolved -> EvtTurnAdvanced] [-> EvtRitualCompleted]
	CmdSelectSide -> EvtSidePicked -> EvtTurnAdvanced [-> EvtRitualCompleted]
	                 EvtStepSkipped -> EvtTurnAdvanced follows either once the map pool runs dry
	CmdLeave      -> EvtObserverLeft | nothing
*/

type Command struct {
	Type     CommandType
	ClientID string
	Role     Role
	Name     string
	// Token is the credential the client presents: a seat token on join, the
	// administrator token on start/reset.
	Token string
	// NewToken is handed to a representative claiming a free seat.
	NewToken string
	Side     Side
	MapName  string
	Choice   SideChoice
}

type EventType string

const (
	EvtSeatClaimed     EventType = "SeatClaimed"
	EvtSeatReclaimed   EventType = "SeatReclaimed"
	EvtObserverJoined  EventType = "ObserverJoined"
	EvtObserverLeft    EventType = "ObserverLeft"
	EvtRitualStarted   EventType = "RitualStarted"
	EvtRitualReset     EventType = "RitualReset"
	EvtMapBanned       EventType = "MapBanned"
	EvtMapPicked       EventType = "MapPicked"
	EvtDeciderResolved EventType = "DeciderResolved"
	EvtSidePicked      EventType = "SidePicked"
	EvtStepSkipped     EventType = "StepSkipped"
	EvtTurnAdvanced    EventType = "TurnAdvanced"
	EvtRitualCompleted EventType = "RitualCompleted"
)

type Event struct {
	Type     EventType
	Side     Side
	Target   string
	ClientID string
}

// Apply validates cmd against s. On success it returns the produced events
// and the next state; s itself is never modified. On error the returned state
// is s unchanged. A nil error with no events means the command was a no-op.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdStart:
		return applyStart(s, cmd)
	case CmdReset:
		return applyReset(s, cmd)
	case CmdSelectMap:
		return applySelectMap(s, cmd)
	case CmdSelectSide:
		return applySelectSide(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyJoin(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Role {
	case RoleRepresentative:
		// Same connection asking again, e.g. a page refresh over a kept socket.
		if s.SeatOf(cmd.ClientID) != SideNone {
			return nil, s, nil
		}

		if cmd.Token != "" {
			side, ok := s.seatByToken(cmd.Token)
			if !ok {
				return nil, s, errs.ErrUnauthorized
			}
			next := s.Clone()
			next.seat(side).ClientID = cmd.ClientID
			return []Event{{Type: EvtSeatReclaimed, Side: side, ClientID: cmd.ClientID}}, next, nil
		}

		name := NormalizeName(cmd.Name)
		if name == "" {
			return nil, s, errs.ErrEmptyName
		}

		var side Side
		switch {
		case !s.SideA.Occupied():
			side = SideA
		case !s.SideB.Occupied():
			side = SideB
		default:
			return nil, s, errs.ErrBothSidesTaken
		}

		next := s.Clone()
		*next.seat(side) = Seat{Name: name, ClientID: cmd.ClientID, Token: cmd.NewToken}
		return []Event{{Type: EvtSeatClaimed, Side: side, Target: name, ClientID: cmd.ClientID}}, next, nil

	case RoleObserver:
		if s.Observers[cmd.ClientID] {
			return nil, s, nil
		}
		next := s.Clone()
		next.Observers[cmd.ClientID] = true
		return []Event{{Type: EvtObserverJoined, ClientID: cmd.ClientID}}, next, nil

	case RoleAdministrator:
		// No slot; membership alone is tracked by the lobby.
		return nil, s, nil

	default:
		return nil, s, errs.ErrInvalidRole
	}
}

func applyStart(s State, cmd Command) ([]Event, State, error) {
	if !adminAllowed(s, cmd.Token) {
		return nil, s, errs.ErrUnauthorized
	}
	if s.Started {
		return nil, s, errs.ErrAlreadyStarted
	}
	if !s.SideA.Occupied() || !s.SideB.Occupied() {
		return nil, s, errs.ErrSidesIncomplete
	}

	next, err := restarted(s)
	if err != nil {
		return nil, s, err
	}
	return []Event{{Type: EvtRitualStarted}}, next, nil
}

func applyReset(s State, cmd Command) ([]Event, State, error) {
	if !adminAllowed(s, cmd.Token) {
		return nil, s, errs.ErrUnauthorized
	}
	if !s.Started {
		return nil, s, ErrNotStarted
	}

	next, err := restarted(s)
	if err != nil {
		return nil, s, err
	}
	return []Event{{Type: EvtRitualReset}}, next, nil
}

func restarted(s State) (State, error) {
	seq, err := SequenceFor(s.Format)
	if err != nil {
		return s, err
	}
	next := s.Clone()
	next.Started = true
	next.Cursor = 0
	next.Chosen = []ChosenEntry{}
	next.Sequence = seq
	return next, nil
}

func applySelectMap(s State, cmd Command) ([]Event, State, error) {
	step, err := turnFor(s, cmd)
	if err != nil {
		return nil, s, err
	}
	if step.Action != ActionBan && step.Action != ActionPickMap {
		return nil, s, ErrWrongTurn
	}
	if !slices.Contains(mapPool, cmd.MapName) || mapTaken(s, cmd.MapName) {
		return nil, s, ErrIllegalMap
	}

	evt := EvtMapBanned
	if step.Action == ActionPickMap {
		evt = EvtMapPicked
	}
	events := []Event{
		{Type: evt, Side: cmd.Side, Target: cmd.MapName},
		{Type: EvtTurnAdvanced},
	}

	next := s.Clone()
	next.Chosen = append(next.Chosen, ChosenEntry{Target: cmd.MapName, Kind: step.Action, Actor: cmd.Side})
	next.Cursor++
	events = resolveAutomatic(&next, events)

	if next.Cursor >= len(next.Sequence) {
		events = append(events, Event{Type: EvtRitualCompleted})
	}
	return events, next, nil
}

// resolveAutomatic advances past steps that need no human: a decider takes
// the last unchosen map (or nothing if the pool is empty), and a ban or pick
// with no map left to choose is skipped.
func resolveAutomatic(s *State, events []Event) []Event {
	for {
		step, done := currentStep(*s)
		if done {
			return events
		}
		switch step.Action {
		case ActionDecider:
			if remaining := RemainingMaps(*s); len(remaining) > 0 {
				s.Chosen = append(s.Chosen, ChosenEntry{Target: remaining[0], Kind: ActionDecider, Actor: SideSystem})
				events = append(events, Event{Type: EvtDeciderResolved, Side: SideSystem, Target: remaining[0]})
			}
		case ActionBan, ActionPickMap:
			if len(RemainingMaps(*s)) > 0 {
				return events
			}
			events = append(events, Event{Type: EvtStepSkipped, Side: step.Side})
		default:
			return events
		}
		s.Cursor++
		events = append(events, Event{Type: EvtTurnAdvanced})
	}
}

func applySelectSide(s State, cmd Command) ([]Event, State, error) {
	step, err := turnFor(s, cmd)
	if err != nil {
		return nil, s, err
	}
	if step.Action != ActionPickSide {
		return nil, s, ErrWrongTurn
	}
	if cmd.Choice != SideChoiceAttack && cmd.Choice != SideChoiceDefense {
		return nil, s, ErrIllegalSide
	}

	events := []Event{
		{Type: EvtSidePicked, Side: cmd.Side, Target: string(cmd.Choice)},
		{Type: EvtTurnAdvanced},
	}

	next := s.Clone()
	next.Chosen = append(next.Chosen, ChosenEntry{Target: string(cmd.Choice), Kind: ActionPickSide, Actor: cmd.Side})
	next.Cursor++
	events = resolveAutomatic(&next, events)

	if next.Cursor >= len(next.Sequence) {
		events = append(events, Event{Type: EvtRitualCompleted})
	}
	return events, next, nil
}

func applyLeave(s State, cmd Command) ([]Event, State, error) {
	// Seats survive disconnects so the representative can come back.
	if !s.Observers[cmd.ClientID] {
		return nil, s, nil
	}
	next := s.Clone()
	delete(next.Observers, cmd.ClientID)
	return []Event{{Type: EvtObserverLeft, ClientID: cmd.ClientID}}, next, nil
}

// turnFor returns the step at the cursor if cmd's side owns it and cmd comes
// from the client seated on that side.
func turnFor(s State, cmd Command) (TurnStep, error) {
	if !s.Started {
		return TurnStep{}, ErrNotStarted
	}
	step, done := currentStep(s)
	if done {
		return TurnStep{}, ErrGameAlreadyCompleted
	}
	if step.Side != cmd.Side {
		return TurnStep{}, ErrWrongTurn
	}
	seat := s.SeatFor(cmd.Side)
	if !seat.Occupied() || seat.ClientID != cmd.ClientID {
		return TurnStep{}, ErrWrongTurn
	}
	return step, nil
}

func currentStep(s State) (TurnStep, bool) {
	if s.Cursor >= len(s.Sequence) {
		return TurnStep{}, true
	}
	return s.Sequence[s.Cursor], false
}

func mapTaken(s State, name string) bool {
	for _, c := range s.Chosen {
		if c.Kind != ActionPickSide && c.Target == name {
			return true
		}
	}
	return false
}

func adminAllowed(s State, token string) bool {
	if s.AdminToken == "" {
		return true
	}
	return tokensEqual(s.AdminToken, token)
}

func (s State) seatByToken(token string) (Side, bool) {
	if s.SideA.Token != "" && tokensEqual(s.SideA.Token, token) {
		return SideA, true
	}
	if s.SideB.Token != "" && tokensEqual(s.SideB.Token, token) {
		return SideB, true
	}
	return SideNone, false
}

func (s *State) seat(side Side) *Seat {
	if side == SideB {
		return &s.SideB
	}
	return &s.SideA
}

func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
