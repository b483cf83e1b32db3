package dialog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownUserIsIdle(t *testing.T) {
	m := NewManager()
	assert.Equal(t, CreationIdle, NewCreationMachine(m).State(42))
	assert.Equal(t, AlterationIdle, NewAlterationMachine(m).State(42))
	assert.Nil(t, m.Session(42))
}

func TestCreationSetState(t *testing.T) {
	m := NewManager()
	c := NewCreationMachine(m)

	c.SetState(1, CreationAwaitTitle)
	assert.Equal(t, CreationAwaitTitle, c.State(1))
	require.NotNil(t, m.Session(1))
	assert.Equal(t, FlowCreation, m.Session(1).Flow)

	c.SetState(1, CreationAwaitHours)
	assert.Equal(t, CreationAwaitHours, c.State(1))

	c.SetState(1, CreationIdle)
	assert.Equal(t, CreationIdle, c.State(1))
	assert.Nil(t, m.Session(1))
	assert.Equal(t, 0, m.Len())
}

func TestFlowsReplaceEachOther(t *testing.T) {
	m := NewManager()
	c := NewCreationMachine(m)
	a := NewAlterationMachine(m)

	c.SetState(1, CreationAwaitDay)
	a.SetState(1, AlterationHub)

	assert.Equal(t, CreationIdle, c.State(1))
	assert.Equal(t, AlterationHub, a.State(1))

	// ending a flow the user is not in leaves the other one alone
	c.SetState(1, CreationIdle)
	assert.Equal(t, AlterationHub, a.State(1))
}

func TestReplyReturnsToHub(t *testing.T) {
	fields := []AlterationState{
		AlterationName, AlterationContent, AlterationType,
		AlterationStart, AlterationPings, AlterationDay,
	}
	for _, field := range fields {
		m := NewManager()
		a := NewAlterationMachine(m)
		a.SetState(7, AlterationHub)

		state := a.Choose(7, field)
		assert.True(t, state.IsReply(), "field %d", field)

		for i := 0; state != AlterationHub && i < 3; i++ {
			state = a.CompleteReply(7)
		}
		assert.Equal(t, AlterationHub, state, "field %d", field)
		assert.Equal(t, AlterationHub, a.State(7))
	}
}

func TestStartTimeGoesThroughMinutes(t *testing.T) {
	a := NewAlterationMachine(NewManager())
	a.SetState(1, AlterationHub)

	assert.Equal(t, AlterationStartHours, a.Choose(1, AlterationStart))
	assert.Equal(t, AlterationStartMinutes, a.CompleteReply(1))
	assert.Equal(t, AlterationHub, a.CompleteReply(1))
}

func TestCompleteReplyOutsideReplyIsNoop(t *testing.T) {
	a := NewAlterationMachine(NewManager())
	a.SetState(1, AlterationDeleteConfirm)
	assert.Equal(t, AlterationDeleteConfirm, a.CompleteReply(1))
	assert.Equal(t, AlterationIdle, a.CompleteReply(2))
}

func TestReplyStateMapping(t *testing.T) {
	a := NewAlterationMachine(NewManager())
	cases := map[AlterationState]AlterationState{
		AlterationName:    AlterationNameReply,
		AlterationContent: AlterationContentReply,
		AlterationType:    AlterationTypeReply,
		AlterationStart:   AlterationStartHours,
		AlterationPings:   AlterationPingsSelect,
		AlterationDay:     AlterationDayReply,
		AlterationHub:     AlterationHub,
	}
	for field, want := range cases {
		assert.Equal(t, want, a.ReplyState(field))
	}
}

func TestEvictIdleSessions(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	m := NewManager()
	m.SetClock(func() time.Time { return now })

	m.Begin(1, FlowCreation)
	now = now.Add(20 * time.Minute)
	m.Begin(2, FlowAlteration)
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, m.Evict(30*time.Minute))
	assert.Nil(t, m.Session(1))
	assert.NotNil(t, m.Session(2))
}

func TestEvictSkipsLockedUser(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	m := NewManager()
	m.SetClock(func() time.Time { return now })
	m.Begin(1, FlowCreation)
	now = now.Add(time.Hour)

	unlock := m.Lock(1)
	assert.Equal(t, 0, m.Evict(time.Minute))
	unlock()
	assert.Equal(t, 1, m.Evict(time.Minute))
}

func TestLockSerializesUser(t *testing.T) {
	m := NewManager()
	c := NewCreationMachine(m)
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(9)
			defer unlock()
			counter++
			c.SetState(9, CreationAwaitTitle)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, CreationAwaitTitle, c.State(9))
}
