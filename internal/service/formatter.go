package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/tazhate/weekping/internal/domain"
	"github.com/tazhate/weekping/internal/i18n"
)

// Formatter renders events and notifications as Telegram HTML.
type Formatter struct {
	cat *i18n.Catalog
	loc *time.Location
}

func NewFormatter(cat *i18n.Catalog, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{cat: cat, loc: loc}
}

func (f *Formatter) Location() *time.Location {
	return f.loc
}

func (f *Formatter) Catalog() *i18n.Catalog {
	return f.cat
}

func (f *Formatter) T(lang, key string, args ...any) string {
	return f.cat.T(lang, key, args...)
}

func (f *Formatter) Day(lang string, d domain.Weekday) string {
	return f.cat.T(lang, d.Key())
}

func (f *Formatter) Type(lang string, t domain.EventType) string {
	return f.cat.T(lang, "type_"+string(t))
}

func (f *Formatter) Offset(lang string, o domain.Offset) string {
	return f.cat.T(lang, "offset_"+string(o))
}

func (f *Formatter) Offsets(lang string, offsets []domain.Offset) string {
	if len(offsets) == 0 {
		return f.cat.T(lang, "pings_none")
	}
	labels := make([]string, len(offsets))
	for i, o := range offsets {
		labels[i] = f.Offset(lang, o)
	}
	return strings.Join(labels, ", ")
}

func (f *Formatter) yesNo(lang string, v bool) string {
	if v {
		return f.cat.T(lang, "word_yes")
	}
	return f.cat.T(lang, "word_no")
}

// Summary renders the full view of an event.
func (f *Formatter) Summary(lang string, s domain.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", html.EscapeString(s.Title))
	if s.Content != "" {
		fmt.Fprintf(&sb, "%s\n", html.EscapeString(s.Content))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s: %s\n", f.cat.T(lang, "label_type"), f.Type(lang, s.Type))
	fmt.Fprintf(&sb, "%s: %s, %s\n", f.cat.T(lang, "label_when"), f.Day(lang, s.Day), s.Start)
	fmt.Fprintf(&sb, "%s: %s\n", f.cat.T(lang, "label_pings"), f.Offsets(lang, s.Offsets))
	fmt.Fprintf(&sb, "%s: %s", f.cat.T(lang, "label_digest"), f.yesNo(lang, s.Digest))
	return sb.String()
}

// Line renders an event as one list entry.
func (f *Formatter) Line(lang string, e *domain.Event) string {
	icon := "🔁"
	if e.Type == domain.EventSingle {
		icon = "1️⃣"
	}
	return fmt.Sprintf("%s %s %s · <b>%s</b>", icon, f.Day(lang, e.Day), e.Start, html.EscapeString(e.Title))
}

// List renders all events of a user.
func (f *Formatter) List(lang string, events []*domain.Event) string {
	if len(events) == 0 {
		return f.cat.T(lang, "list_empty")
	}
	lines := []string{f.cat.T(lang, "list_header"), ""}
	for _, e := range events {
		lines = append(lines, f.Line(lang, e))
	}
	return strings.Join(lines, "\n")
}

// Due is one event that produced pings in a scan pass.
type Due struct {
	Event  *domain.Event
	Result domain.PingResult
}

// Notification renders every due event of one pass into a single message.
// All due offsets are consumed, the text names the closest one.
func (f *Formatter) Notification(lang string, due []Due) string {
	var parts []string
	for _, d := range due {
		if !d.Result.Pinged() {
			continue
		}
		title := html.EscapeString(d.Event.Title)
		var line string
		if d.Result.Started {
			line = f.cat.T(lang, "notify_started", title)
		} else {
			line = f.cat.T(lang, "notify_advance", title, f.Offset(lang, d.Result.Offsets[0]), d.Event.Start)
		}
		if d.Event.Content != "" {
			line += "\n<i>" + html.EscapeString(d.Event.Content) + "</i>"
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n\n")
}

// Digest renders the daily overview; empty when there is nothing to show.
func (f *Formatter) Digest(lang string, events []*domain.Event) string {
	if len(events) == 0 {
		return ""
	}
	lines := []string{f.cat.T(lang, "digest_header"), ""}
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("%s · <b>%s</b>", e.Start, html.EscapeString(e.Title)))
	}
	return strings.Join(lines, "\n")
}
