package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/weekping/internal/sanitize"
)

type EventType string

const (
	EventRecurring EventType = "recurring"
	EventSingle    EventType = "single"
)

func (t EventType) Valid() bool {
	return t == EventRecurring || t == EventSingle
}

// StartTime is a wall-clock time on the event's day.
type StartTime struct {
	Hour   int
	Minute int
}

func (t StartTime) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t StartTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseStartTime parses "HH:MM".
func ParseStartTime(s string) (StartTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return StartTime{}, fmt.Errorf("invalid time format: %s", s)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	st := StartTime{Hour: h, Minute: m}
	if errH != nil || errM != nil || !st.Valid() {
		return StartTime{}, fmt.Errorf("invalid time: %s", s)
	}
	return st, nil
}

// Phase is the lifecycle position of an event within its current occurrence.
type Phase string

const (
	PhaseArmed         Phase = "armed"          // nothing fired yet
	PhaseConsuming     Phase = "consuming"      // some offsets fired, start not reached
	PhaseAwaitingReset Phase = "awaiting_reset" // recurring, started, waits for the weekly rearm
	PhaseExpired       Phase = "expired"        // single, started, deleted once the occurrence is over
)

// Event is a user-scheduled reminder on a weekday.
type Event struct {
	ID      string
	UserID  int64
	Title   string
	Content string
	Day     Weekday
	Type    EventType
	Start   StartTime

	// PingOffsets holds the armed flag per offset. An armed offset fires once
	// and is then moved to PendingRearm until the occurrence is over.
	PingOffsets   OffsetSet
	StartPingDone bool
	PendingRearm  OffsetSet

	InDailyDigest bool

	// ScheduledAt is when day, time, type or offsets were last set.
	ScheduledAt time.Time
	CreatedAt   time.Time
}

type EventParams struct {
	UserID        int64
	Title         string
	Content       string
	Day           Weekday
	Type          EventType
	Start         StartTime
	Offsets       []Offset
	InDailyDigest bool
}

// NewEvent sanitizes and validates params and returns an armed event with a
// fresh identifier.
func NewEvent(p EventParams, now time.Time) (*Event, error) {
	e := &Event{
		ID:            uuid.NewString(),
		UserID:        p.UserID,
		Title:         sanitize.Title(p.Title),
		Content:       sanitize.Content(p.Content),
		Day:           p.Day,
		Type:          p.Type,
		Start:         p.Start,
		PingOffsets:   NewOffsetSet(),
		PendingRearm:  NewOffsetSet(),
		InDailyDigest: p.InDailyDigest,
		ScheduledAt:   now,
		CreatedAt:     now,
	}
	for _, o := range p.Offsets {
		if !o.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOffset, string(o))
		}
		e.PingOffsets[o] = true
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Event) Validate() error {
	if e.ID == "" {
		return invalid("id", "empty")
	}
	if strings.TrimSpace(e.Title) == "" {
		return invalid("title", "empty")
	}
	if strings.TrimSpace(e.Content) == "" {
		return invalid("content", "empty")
	}
	if !e.Day.Valid() {
		return invalid("day", fmt.Sprintf("%d out of range", int(e.Day)))
	}
	if !e.Type.Valid() {
		return invalid("type", fmt.Sprintf("unknown type %q", string(e.Type)))
	}
	if !e.Start.Valid() {
		return invalid("start_time", e.Start.String())
	}
	if err := e.PingOffsets.validate(); err != nil {
		return err
	}
	return e.PendingRearm.validate()
}

// StartOn returns the start instant of the occurrence on date's calendar day.
func (e *Event) StartOn(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, e.Start.Hour, e.Start.Minute, 0, 0, date.Location())
}

// IsDue reports whether the armed offset o has been crossed for the
// occurrence on date. date must fall on the event's day.
func (e *Event) IsDue(o Offset, date, now time.Time) bool {
	if !e.PingOffsets[o] || WeekdayOf(date) != e.Day {
		return false
	}
	return !now.Before(e.StartOn(date).Add(-o.Duration()))
}

// PingResult is what one evaluation of an event produced.
type PingResult struct {
	Offsets []Offset // advance pings that fired, shortest lead first
	Started bool     // the start ping fired
	Expired bool     // single event whose occurrence is over
}

// Pinged reports whether a notification must be sent.
func (r PingResult) Pinged() bool {
	return len(r.Offsets) > 0 || r.Started
}

// Evaluate disarms every due offset and marks the start for the occurrence on
// date. The event is mutated; callers persist it when Pinged is true.
func (e *Event) Evaluate(date, now time.Time) PingResult {
	var res PingResult
	if WeekdayOf(date) != e.Day {
		return res
	}
	for _, o := range Offsets {
		if e.IsDue(o, date, now) {
			e.consume(o)
			res.Offsets = append(res.Offsets, o)
		}
	}

	start := e.StartOn(date)
	if now.Before(start) {
		return res
	}
	if !e.StartPingDone {
		e.StartPingDone = true
		res.Started = true
	}
	if e.Type == EventSingle && e.OwnsOccurrence(date) {
		res.Expired = true
	}
	return res
}

// OwnsOccurrence reports whether the occurrence on date was scheduled before
// it started. An event created or rescheduled at or after that start belongs
// to the following week; Settle marks it started in that case.
func (e *Event) OwnsOccurrence(date time.Time) bool {
	return e.ScheduledAt.Before(e.StartOn(date))
}

func (e *Event) consume(o Offset) {
	e.PingOffsets[o] = false
	if e.PendingRearm == nil {
		e.PendingRearm = NewOffsetSet()
	}
	e.PendingRearm[o] = true
}

// Reset re-arms the consumed offsets and clears the start flag. Running it
// more than once has no further effect.
func (e *Event) Reset() bool {
	changed := e.StartPingDone
	e.StartPingDone = false
	if e.PingOffsets == nil {
		e.PingOffsets = NewOffsetSet()
	}
	for _, o := range e.PendingRearm.On() {
		e.PingOffsets[o] = true
		changed = true
	}
	e.PendingRearm = NewOffsetSet()
	return changed
}

// Reschedule arms exactly the selected offsets for a new schedule and then
// settles the event against now.
func (e *Event) Reschedule(selected []Offset, now time.Time) {
	e.PingOffsets = NewOffsetSet(selected...)
	e.PendingRearm = NewOffsetSet()
	e.StartPingDone = false
	e.ScheduledAt = now
	e.Settle(now)
}

// Settle marks everything that already lies in the past for the upcoming
// occurrence as consumed, so a freshly (re)scheduled event does not fire a
// burst of stale pings. If the start on today already passed, the event is
// marked started and all its offsets wait for the next rollover.
func (e *Event) Settle(now time.Time) {
	today := Midnight(now)
	date := today.AddDate(0, 0, DaysUntil(WeekdayOf(today), e.Day))
	start := e.StartOn(date)

	for _, o := range Offsets {
		if e.PingOffsets[o] && !now.Before(start.Add(-o.Duration())) {
			e.consume(o)
		}
	}
	if !now.Before(start) {
		e.StartPingDone = true
	}
}

// ActiveOffsets are the offsets the user selected: armed or waiting for rearm.
func (e *Event) ActiveOffsets() []Offset {
	var out []Offset
	for _, o := range Offsets {
		if e.PingOffsets[o] || e.PendingRearm[o] {
			out = append(out, o)
		}
	}
	return out
}

// Phase reports the lifecycle state as of now. A single event that was
// created after its start this week waits for the reset like a recurring one.
func (e *Event) Phase(now time.Time) Phase {
	if e.StartPingDone {
		last := Midnight(now).AddDate(0, 0, -DaysUntil(e.Day, WeekdayOf(now)))
		if e.Type == EventSingle && e.OwnsOccurrence(last) {
			return PhaseExpired
		}
		return PhaseAwaitingReset
	}
	if len(e.PendingRearm.On()) > 0 {
		return PhaseConsuming
	}
	return PhaseArmed
}

// SameSchedule reports whether o fires at the same times as e.
func (e *Event) SameSchedule(o *Event) bool {
	if e.Day != o.Day || e.Type != o.Type || e.Start != o.Start {
		return false
	}
	a, b := e.ActiveOffsets(), o.ActiveOffsets()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (e *Event) Clone() *Event {
	c := *e
	c.PingOffsets = e.PingOffsets.Clone()
	c.PendingRearm = e.PendingRearm.Clone()
	return &c
}

// Summary is the display view of an event.
type Summary struct {
	ID      string
	Title   string
	Content string
	Type    EventType
	Day     Weekday
	Start   StartTime
	Offsets []Offset
	Digest  bool
}

func (e *Event) Summary() Summary {
	return Summary{
		ID:      e.ID,
		Title:   e.Title,
		Content: e.Content,
		Type:    e.Type,
		Day:     e.Day,
		Start:   e.Start,
		Offsets: e.ActiveOffsets(),
		Digest:  e.InDailyDigest,
	}
}

var rruleDays = map[Weekday]rrule.Weekday{
	WeekdaySunday:    rrule.SU,
	WeekdayMonday:    rrule.MO,
	WeekdayTuesday:   rrule.TU,
	WeekdayWednesday: rrule.WE,
	WeekdayThursday:  rrule.TH,
	WeekdayFriday:    rrule.FR,
	WeekdaySaturday:  rrule.SA,
}

var byDay = map[Weekday]string{
	WeekdaySunday:    "SU",
	WeekdayMonday:    "MO",
	WeekdayTuesday:   "TU",
	WeekdayWednesday: "WE",
	WeekdayThursday:  "TH",
	WeekdayFriday:    "FR",
	WeekdaySaturday:  "SA",
}

// RRule returns the RFC 5545 recurrence of a recurring event, empty for single ones.
func (e *Event) RRule() string {
	if e.Type != EventRecurring {
		return ""
	}
	return "FREQ=WEEKLY;BYDAY=" + byDay[e.Day]
}

// NextOccurrence returns the next start at or after now.
func (e *Event) NextOccurrence(now time.Time) time.Time {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   Midnight(now),
		Byweekday: []rrule.Weekday{rruleDays[e.Day]},
		Byhour:    []int{e.Start.Hour},
		Byminute:  []int{e.Start.Minute},
		Bysecond:  []int{0},
	})
	if err != nil {
		today := Midnight(now)
		return e.StartOn(today.AddDate(0, 0, DaysUntil(WeekdayOf(today), e.Day)))
	}
	return r.After(now, true)
}
