package dialog

// AlterationState is a step of the edit and delete flows.
type AlterationState int

const (
	AlterationDone AlterationState = -1
	AlterationIdle AlterationState = 0

	// Hub is the field-choice menu every edit returns to.
	AlterationHub AlterationState = 99

	AlterationName    AlterationState = 1
	AlterationContent AlterationState = 2
	AlterationType    AlterationState = 3
	AlterationStart   AlterationState = 4
	AlterationPings   AlterationState = 5
	AlterationDay     AlterationState = 6

	AlterationNameReply    AlterationState = 11
	AlterationContentReply AlterationState = 12
	AlterationTypeReply    AlterationState = 13
	AlterationDayReply     AlterationState = 16
	AlterationStartHours   AlterationState = 41
	AlterationStartMinutes AlterationState = 42
	AlterationPingsSelect  AlterationState = 51

	AlterationDeleteConfirm AlterationState = 101
)

var replyStates = map[AlterationState]AlterationState{
	AlterationName:    AlterationNameReply,
	AlterationContent: AlterationContentReply,
	AlterationType:    AlterationTypeReply,
	AlterationStart:   AlterationStartHours,
	AlterationPings:   AlterationPingsSelect,
	AlterationDay:     AlterationDayReply,
}

// IsField reports whether s is one of the editable field choices.
func (s AlterationState) IsField() bool {
	_, ok := replyStates[s]
	return ok
}

// IsReply reports whether s waits for the user's answer to a field prompt.
func (s AlterationState) IsReply() bool {
	switch s {
	case AlterationNameReply, AlterationContentReply, AlterationTypeReply, AlterationDayReply,
		AlterationStartHours, AlterationStartMinutes, AlterationPingsSelect:
		return true
	}
	return false
}

// next is the state after a reply in s was accepted.
func (s AlterationState) next() AlterationState {
	if s == AlterationStartHours {
		return AlterationStartMinutes
	}
	return AlterationHub
}

type AlterationMachine struct {
	m *Manager
}

func NewAlterationMachine(m *Manager) *AlterationMachine {
	return &AlterationMachine{m: m}
}

// State returns AlterationIdle for users without an alteration session.
func (a *AlterationMachine) State(userID int64) AlterationState {
	s := a.m.flowSession(userID, FlowAlteration)
	if s == nil {
		return AlterationIdle
	}
	return s.Alteration
}

// SetState overwrites the user's state. Setting AlterationIdle ends the flow
// and drops its session.
func (a *AlterationMachine) SetState(userID int64, state AlterationState) {
	if state == AlterationIdle {
		if a.m.flowSession(userID, FlowAlteration) != nil {
			a.m.End(userID)
		}
		return
	}
	s := a.m.flowSession(userID, FlowAlteration)
	if s == nil {
		s = a.m.Begin(userID, FlowAlteration)
	}
	s.Alteration = state
}

// ReplyState returns the state that collects the answer for field, or the
// hub when field is not a field choice.
func (a *AlterationMachine) ReplyState(field AlterationState) AlterationState {
	if r, ok := replyStates[field]; ok {
		return r
	}
	return AlterationHub
}

// Choose moves the user through the field state into its reply state and
// returns the new state.
func (a *AlterationMachine) Choose(userID int64, field AlterationState) AlterationState {
	a.SetState(userID, field)
	next := a.ReplyState(field)
	a.SetState(userID, next)
	return next
}

// CompleteReply advances past an accepted reply. Leaf replies return to the
// hub; the hours step of the start time continues with the minutes.
func (a *AlterationMachine) CompleteReply(userID int64) AlterationState {
	cur := a.State(userID)
	if !cur.IsReply() {
		return cur
	}
	next := cur.next()
	a.SetState(userID, next)
	return next
}
