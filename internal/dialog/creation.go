package dialog

// CreationState is a step of the event creation flow.
type CreationState int

const (
	CreationFinalize        CreationState = -1
	CreationIdle            CreationState = 0
	CreationAwaitTitle      CreationState = 1
	CreationAwaitType       CreationState = 2
	CreationAwaitHours      CreationState = 3
	CreationAwaitMinutes    CreationState = 4
	CreationAwaitContent    CreationState = 5
	CreationAwaitDay        CreationState = 6
	CreationAwaitPingStart  CreationState = 10
	CreationAwaitPingSelect CreationState = 11
)

var creationNames = map[CreationState]string{
	CreationFinalize:        "finalize",
	CreationIdle:            "idle",
	CreationAwaitTitle:      "await_title",
	CreationAwaitType:       "await_type",
	CreationAwaitHours:      "await_hours",
	CreationAwaitMinutes:    "await_minutes",
	CreationAwaitContent:    "await_content",
	CreationAwaitDay:        "await_day",
	CreationAwaitPingStart:  "await_ping_start",
	CreationAwaitPingSelect: "await_ping_select",
}

func (s CreationState) String() string {
	if n, ok := creationNames[s]; ok {
		return n
	}
	return "unknown"
}

// CreationMachine reads and writes creation states. Transitions are not
// validated here; the handler decides what is legal.
type CreationMachine struct {
	m *Manager
}

func NewCreationMachine(m *Manager) *CreationMachine {
	return &CreationMachine{m: m}
}

// State returns CreationIdle for users without a creation session.
func (c *CreationMachine) State(userID int64) CreationState {
	s := c.m.flowSession(userID, FlowCreation)
	if s == nil {
		return CreationIdle
	}
	return s.Creation
}

// SetState overwrites the user's state. Setting CreationIdle ends the flow
// and drops its session.
func (c *CreationMachine) SetState(userID int64, state CreationState) {
	if state == CreationIdle {
		if c.m.flowSession(userID, FlowCreation) != nil {
			c.m.End(userID)
		}
		return
	}
	s := c.m.flowSession(userID, FlowCreation)
	if s == nil {
		s = c.m.Begin(userID, FlowCreation)
	}
	s.Creation = state
}
