package service

import (
	"strconv"
	"strings"

	"github.com/tazhate/weekping/internal/domain"
	"github.com/tazhate/weekping/internal/i18n"
)

// Callback tokens use the "verb:arg[:arg]" form.
const (
	prefixNew    = "new"
	prefixAlter  = "alt"
	prefixDelete = "del"
	prefixConfig = "cfg"
)

func token(parts ...string) string {
	return strings.Join(parts, ":")
}

func (f *Formatter) typeKeyboard(lang, prefix string) [][]Button {
	return [][]Button{
		{
			{Label: f.Type(lang, domain.EventRecurring), Data: token(prefix, "type", string(domain.EventRecurring))},
			{Label: f.Type(lang, domain.EventSingle), Data: token(prefix, "type", string(domain.EventSingle))},
		},
		{f.cancelButton(lang, prefix)},
	}
}

func (f *Formatter) dayKeyboard(lang, prefix string) [][]Button {
	var rows [][]Button
	var row []Button
	for i, d := range domain.WeekOrder {
		row = append(row, Button{Label: f.Day(lang, d), Data: token(prefix, "day", strconv.Itoa(int(d)))})
		if len(row) == 3 || i == len(domain.WeekOrder)-1 {
			rows = append(rows, row)
			row = nil
		}
	}
	return append(rows, []Button{f.cancelButton(lang, prefix)})
}

func (f *Formatter) pingStartKeyboard(lang string) [][]Button {
	return [][]Button{
		{
			{Label: f.T(lang, "btn_yes"), Data: token(prefixNew, "ping", "yes")},
			{Label: f.T(lang, "btn_no"), Data: token(prefixNew, "ping", "no")},
		},
		{f.cancelButton(lang, prefixNew)},
	}
}

// offsetKeyboard shows every offset with its selection mark.
func (f *Formatter) offsetKeyboard(lang, prefix string, selected domain.OffsetSet) [][]Button {
	var rows [][]Button
	var row []Button
	for i, o := range domain.Offsets {
		label := f.Offset(lang, o)
		if selected[o] {
			label = "✅ " + label
		}
		row = append(row, Button{Label: label, Data: token(prefix, "ping", string(o))})
		if len(row) == 2 || i == len(domain.Offsets)-1 {
			rows = append(rows, row)
			row = nil
		}
	}
	return append(rows, []Button{
		{Label: f.T(lang, "btn_done"), Data: token(prefix, "ping", "done")},
		f.cancelButton(lang, prefix),
	})
}

func (f *Formatter) hubKeyboard(lang string, digest bool) [][]Button {
	field := func(key, name string) Button {
		return Button{Label: f.T(lang, key), Data: token(prefixAlter, "field", name)}
	}
	digestLabel := f.T(lang, "field_digest") + ": " + f.yesNo(lang, digest)
	return [][]Button{
		{field("field_name", "name"), field("field_content", "content")},
		{field("field_type", "type"), field("field_day", "day")},
		{field("field_start", "start"), field("field_ping", "ping")},
		{{Label: digestLabel, Data: token(prefixAlter, "field", "digest")}},
		{
			{Label: f.T(lang, "btn_save"), Data: token(prefixAlter, "done")},
			f.cancelButton(lang, prefixAlter),
		},
	}
}

func (f *Formatter) listKeyboard(lang string, events []*domain.Event) [][]Button {
	rows := make([][]Button, 0, len(events))
	for _, e := range events {
		rows = append(rows, []Button{
			{Label: f.T(lang, "btn_edit", truncate(e.Title, 25)), Data: token(prefixAlter, "open", e.ID)},
			{Label: f.T(lang, "btn_delete"), Data: token(prefixDelete, "ask", e.ID)},
		})
	}
	return rows
}

func (f *Formatter) confirmKeyboard(lang string) [][]Button {
	return [][]Button{{
		{Label: f.T(lang, "btn_yes"), Data: token(prefixDelete, "yes")},
		{Label: f.T(lang, "btn_no"), Data: token(prefixDelete, "no")},
	}}
}

func (f *Formatter) configKeyboard(lang string) [][]Button {
	return [][]Button{{
		{Label: f.T(lang, "config_start_language"), Data: token(prefixConfig, "lang")},
		{Label: f.T(lang, "config_start_daily_ping"), Data: token(prefixConfig, "daily")},
	}}
}

func languageKeyboard(languages []i18n.Language) [][]Button {
	rows := make([][]Button, 0, len(languages))
	for _, l := range languages {
		rows = append(rows, []Button{{Label: l.Name, Data: token(prefixConfig, "lang", l.Code)}})
	}
	return rows
}

func (f *Formatter) cancelButton(lang, prefix string) Button {
	return Button{Label: f.T(lang, "btn_cancel"), Data: token(prefix, "cancel")}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
