package engine

import "github.com/DoyleJ11/map-pickban-backend/internal/errs"

type Format string

const (
	FormatBo1 Format = "Bo1"
	FormatBo3 Format = "Bo3"
	FormatBo5 Format = "Bo5"
)

// mapPool is the single map universe every format draws from. Decider
// resolution and map validation both read it.
var mapPool = []string{
	"Ascent",
	"Haven",
	"Icebox",
	"Lotus",
	"Pearl",
	"Split",
	"Sunset",
}

var formatOrder = []Format{FormatBo1, FormatBo3, FormatBo5}

var sequences = map[Format][]TurnStep{
	FormatBo1: bo1Order(),

	FormatBo3: {
		{Side: SideA, Action: ActionBan},
		{Side: SideB, Action: ActionBan},
		{Side: SideA, Action: ActionPickMap},
		{Side: SideB, Action: ActionPickSide},
		{Side: SideB, Action: ActionPickMap},
		{Side: SideA, Action: ActionPickSide},
		{Side: SideA, Action: ActionBan},
		{Side: SideB, Action: ActionBan},
		{Side: SideNone, Action: ActionDecider},
		{Side: SideA, Action: ActionPickSide},
	},

	FormatBo5: {
		{Side: SideA, Action: ActionBan},
		{Side: SideB, Action: ActionBan},
		{Side: SideA, Action: ActionPickMap},
		{Side: SideB, Action: ActionPickSide},
		{Side: SideB, Action: ActionPickMap},
		{Side: SideA, Action: ActionPickSide},
		{Side: SideB, Action: ActionBan},
		{Side: SideA, Action: ActionBan},
		{Side: SideA, Action: ActionPickMap},
		{Side: SideB, Action: ActionPickSide},
		{Side: SideB, Action: ActionBan},
		{Side: SideA, Action: ActionBan},
		{Side: SideNone, Action: ActionDecider},
		{Side: SideA, Action: ActionPickSide},
	},
}

// bo1Order alternates bans until one map is left, then resolves the decider
// and lets SideA choose a side on it.
func bo1Order() []TurnStep {
	order := make([]TurnStep, 0, len(mapPool)+1)
	for i := 0; i < len(mapPool)-1; i++ {
		side := SideA
		if i%2 == 1 {
			side = SideB
		}
		order = append(order, TurnStep{Side: side, Action: ActionBan})
	}
	order = append(order,
		TurnStep{Side: SideNone, Action: ActionDecider},
		TurnStep{Side: SideA, Action: ActionPickSide},
	)
	return order
}

// SequenceFor returns a fresh copy of the step order for format.
func SequenceFor(format Format) ([]TurnStep, error) {
	order, ok := sequences[format]
	if !ok {
		return nil, errs.ErrInvalidFormat
	}
	out := make([]TurnStep, len(order))
	copy(out, order)
	return out, nil
}

// Formats lists the built-in formats in display order.
func Formats() []Format {
	out := make([]Format, len(formatOrder))
	copy(out, formatOrder)
	return out
}

func MapPool() []string {
	out := make([]string, len(mapPool))
	copy(out, mapPool)
	return out
}
