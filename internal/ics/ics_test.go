package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/weekping/internal/domain"
)

func TestTrigger(t *testing.T) {
	assert.Equal(t, "-PT30M", Trigger(30*time.Minute))
	assert.Equal(t, "-PT1H", Trigger(time.Hour))
	assert.Equal(t, "-PT24H", Trigger(24*time.Hour))
	assert.Equal(t, "-PT1H30M", Trigger(90*time.Minute))
	assert.Equal(t, "-PT0M", Trigger(0))
}

func TestExport(t *testing.T) {
	now := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC) // Saturday

	weekly, err := domain.NewEvent(domain.EventParams{
		UserID:  1,
		Title:   "Choir, practice",
		Content: "Bring notes",
		Day:     domain.WeekdayTuesday,
		Type:    domain.EventRecurring,
		Start:   domain.StartTime{Hour: 8, Minute: 0},
		Offsets: []domain.Offset{domain.Offset1h},
	}, now)
	require.NoError(t, err)

	once, err := domain.NewEvent(domain.EventParams{
		UserID:  1,
		Title:   "Dentist",
		Content: "Checkup",
		Day:     domain.WeekdayMonday,
		Type:    domain.EventSingle,
		Start:   domain.StartTime{Hour: 10, Minute: 0},
		Offsets: []domain.Offset{domain.Offset30m, domain.Offset24h},
	}, now)
	require.NoError(t, err)

	data, err := Export([]*domain.Event{weekly, once}, now)
	require.NoError(t, err)
	out := strings.ReplaceAll(string(data), "\r\n", "\n")

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "PRODID:"+productID)
	assert.Contains(t, out, "UID:"+weekly.ID+"@weekping")
	assert.Contains(t, out, "UID:"+once.ID+"@weekping")
	assert.Contains(t, out, `SUMMARY:Choir\, practice`)
	assert.Contains(t, out, "DTSTART:20261020T080000Z")
	assert.Contains(t, out, "DTSTART:20261019T100000Z")
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;BYDAY=TU")
	assert.Equal(t, 1, strings.Count(out, "RRULE:"), "single events do not repeat")
	assert.Equal(t, 3, strings.Count(out, "BEGIN:VALARM"))
	assert.Contains(t, out, "TRIGGER:-PT1H")
	assert.Contains(t, out, "TRIGGER:-PT30M")
	assert.Contains(t, out, "TRIGGER:-PT24H")
}
