// Package ics renders events as iCalendar data for the export command and
// the CalDAV mirror.
package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/weekping/internal/domain"
)

const productID = "-//WeekPing//Events//EN"

// UID is the calendar identifier of an event.
func UID(e *domain.Event) string {
	return e.ID + "@weekping"
}

// Calendar builds a calendar holding all events. Start times are taken from
// each event's next occurrence after now, in now's location.
func Calendar(events []*domain.Event, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, e := range events {
		cal.Children = append(cal.Children, vevent(e, now).Component)
	}
	return cal
}

func vevent(e *domain.Event, now time.Time) *ical.Event {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, UID(e))
	ev.Props.SetText(ical.PropSummary, e.Title)
	if e.Content != "" {
		ev.Props.SetText(ical.PropDescription, e.Content)
	}
	ev.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, e.NextOccurrence(now))

	// SetText would escape the semicolons of the rule.
	if rule := e.RRule(); rule != "" {
		p := ical.NewProp(ical.PropRecurrenceRule)
		p.Value = rule
		ev.Props.Set(p)
	}

	for _, o := range e.ActiveOffsets() {
		ev.Children = append(ev.Children, alarm(e.Title, o))
	}
	return ev
}

func alarm(title string, o domain.Offset) *ical.Component {
	a := ical.NewComponent(ical.CompAlarm)
	a.Props.SetText(ical.PropAction, "DISPLAY")
	a.Props.SetText(ical.PropDescription, title)

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = Trigger(o.Duration())
	a.Props.Set(trigger)
	return a
}

// Trigger formats a lead time as a negative RFC 5545 duration, e.g. "-PT1H30M".
func Trigger(d time.Duration) string {
	var sb strings.Builder
	sb.WriteString("-PT")
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h > 0 {
		fmt.Fprintf(&sb, "%dH", h)
	}
	if m > 0 || h == 0 {
		fmt.Fprintf(&sb, "%dM", m)
	}
	return sb.String()
}

// Encode serializes cal.
func Encode(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// Export renders events into an .ics document.
func Export(events []*domain.Event, now time.Time) ([]byte, error) {
	return Encode(Calendar(events, now))
}
