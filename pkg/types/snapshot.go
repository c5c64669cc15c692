package types

// RoomView is the session snapshot every member receives. It never carries
// seat tokens, the administrator token or connection ids.
type RoomView struct {
	Code          string       `json:"code"`
	Format        string       `json:"format"`
	Version       int          `json:"version"`
	Status        string       `json:"status"`
	SideA         SeatView     `json:"sideA"`
	SideB         SeatView     `json:"sideB"`
	ObserverCount int          `json:"observerCount"`
	Started       bool         `json:"started"`
	Cursor        int          `json:"cursor"`
	CurrentStep   *StepView    `json:"currentStep,omitempty"`
	Sequence      []StepView   `json:"sequence"`
	ChosenLog     []ChosenView `json:"chosenLog"`
	RemainingMaps []string     `json:"remainingMaps"`
}

type SeatView struct {
	Name     string `json:"name"`
	Occupied bool   `json:"occupied"`
}

type StepView struct {
	Action string `json:"action"`
	Side   string `json:"side"`
}

type ChosenView struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Actor  string `json:"actor"`
}

// FormatView describes one built-in format for GET /formats.
type FormatView struct {
	Name     string     `json:"name"`
	Sequence []StepView `json:"sequence"`
}
