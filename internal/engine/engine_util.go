package engine

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/map-pickban-backend/internal/errs"
)

const maxNameRunes = 32

var codePattern = regexp.MustCompile(`^[A-Z0-9]{1,16}$`)

// NewState builds the pending state of a freshly created session.
func NewState(code string, format Format, adminToken string) (State, error) {
	if !ValidCode(code) {
		return State{}, errs.ErrInvalidCode
	}
	seq, err := SequenceFor(format)
	if err != nil {
		return State{}, err
	}
	return State{
		Code:       code,
		Format:     format,
		AdminToken: adminToken,
		Observers:  map[string]bool{},
		Sequence:   seq,
		Chosen:     []ChosenEntry{},
	}, nil
}

func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// NormalizeName trims a display name, folds it to NFC so composed and
// decomposed Hangul compare equal, and caps its length.
func NormalizeName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}

// Clone deep-copies every reference field so the copy can be mutated freely.
func (s State) Clone() State {
	out := s
	out.Observers = make(map[string]bool, len(s.Observers))
	for id := range s.Observers {
		out.Observers[id] = true
	}
	out.Sequence = append([]TurnStep(nil), s.Sequence...)
	out.Chosen = append(make([]ChosenEntry, 0, len(s.Chosen)+2), s.Chosen...)
	return out
}

func (s State) Status() Status {
	if !s.Started {
		return StatusPending
	}
	if s.Cursor >= len(s.Sequence) {
		return StatusComplete
	}
	return StatusRunning
}

// SeatOf reports which side clientID occupies, or SideNone.
func (s State) SeatOf(clientID string) Side {
	if clientID == "" {
		return SideNone
	}
	switch clientID {
	case s.SideA.ClientID:
		return SideA
	case s.SideB.ClientID:
		return SideB
	}
	return SideNone
}

func (s State) SeatFor(side Side) Seat {
	switch side {
	case SideA:
		return s.SideA
	case SideB:
		return s.SideB
	}
	return Seat{}
}

// CurrentStep returns the step awaiting action and false, or true once the
// sequence is exhausted.
func (s State) CurrentStep() (TurnStep, bool) {
	return currentStep(s)
}

// RemainingMaps lists pool maps not yet banned, picked or decided, in pool order.
func RemainingMaps(s State) []string {
	out := make([]string, 0, len(mapPool))
	for _, m := range mapPool {
		if !mapTaken(s, m) {
			out = append(out, m)
		}
	}
	return out
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
