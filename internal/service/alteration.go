package service

import (
	"context"
	"html"

	"go.uber.org/zap"

	"github.com/tazhate/weekping/internal/dialog"
	"github.com/tazhate/weekping/internal/domain"
	"github.com/tazhate/weekping/internal/sanitize"
)

// openAlteration loads the event into a working copy and shows the hub. The
// copy arms exactly the offsets the user selected, so the ping keyboard shows
// the selection rather than what already fired.
func (h *EventHandler) openAlteration(ctx context.Context, userID int64, lang, eventID string) []Reply {
	e, err := h.store.GetEvent(ctx, userID, eventID)
	if err != nil {
		return h.fail(lang, userID, "get event", err)
	}
	if e == nil {
		h.sessions.End(userID)
		return say(h.format.T(lang, "not_found"))
	}

	draft := e.Clone()
	draft.PingOffsets = domain.NewOffsetSet(e.ActiveOffsets()...)
	draft.PendingRearm = domain.NewOffsetSet()
	draft.StartPingDone = false

	sess := h.sessions.Begin(userID, dialog.FlowAlteration)
	sess.EventID = e.ID
	sess.Draft = draft
	h.alteration.SetState(userID, dialog.AlterationHub)
	return []Reply{h.hub(lang, draft, false)}
}

func (h *EventHandler) hub(lang string, draft *domain.Event, edit bool) Reply {
	return Reply{
		Text:    h.format.T(lang, "alt_hub", h.format.Summary(lang, draft.Summary())),
		Buttons: h.format.hubKeyboard(lang, draft.InDailyDigest),
		Edit:    edit,
	}
}

func (h *EventHandler) alterationButton(ctx context.Context, userID int64, lang string, args []string) []Reply {
	arg := argAt(args, 1)
	if args[0] == "open" {
		return h.openAlteration(ctx, userID, lang, arg)
	}

	state := h.alteration.State(userID)
	sess := h.sessions.Session(userID)
	if state == dialog.AlterationIdle || sess == nil || sess.Draft == nil {
		return say(h.format.T(lang, "stale_button"))
	}
	draft := sess.Draft

	switch {
	case args[0] == "cancel":
		h.alteration.SetState(userID, dialog.AlterationIdle)
		return []Reply{{Text: h.format.T(lang, "cancelled"), Edit: true}}

	case args[0] == "field" && state == dialog.AlterationHub:
		return h.chooseField(userID, lang, sess, arg)

	case args[0] == "type" && state == dialog.AlterationTypeReply:
		t := domain.EventType(arg)
		if !t.Valid() {
			return say(h.format.T(lang, "use_buttons"))
		}
		draft.Type = t
		h.alteration.CompleteReply(userID)
		return []Reply{h.hub(lang, draft, true)}

	case args[0] == "day" && state == dialog.AlterationDayReply:
		day, err := domain.ParseWeekday(arg)
		if err != nil {
			return say(h.format.T(lang, "use_buttons"))
		}
		draft.Day = day
		h.alteration.CompleteReply(userID)
		return []Reply{h.hub(lang, draft, true)}

	case args[0] == "ping" && state == dialog.AlterationPingsSelect:
		if arg == "done" {
			draft.PingOffsets = sess.Selected.Clone()
			h.alteration.CompleteReply(userID)
			return []Reply{h.hub(lang, draft, true)}
		}
		o, err := domain.ParseOffset(arg)
		if err != nil {
			return say(h.format.T(lang, "use_buttons"))
		}
		sess.Selected[o] = !sess.Selected[o]
		return h.offsetPrompt(lang, prefixAlter, sess.Selected)

	case args[0] == "done" && state == dialog.AlterationHub:
		return h.commitAlteration(ctx, userID, lang, sess)
	}
	return say(h.format.T(lang, "stale_button"))
}

func (h *EventHandler) chooseField(userID int64, lang string, sess *dialog.Session, field string) []Reply {
	draft := sess.Draft

	switch field {
	case "name":
		h.alteration.Choose(userID, dialog.AlterationName)
		return say(h.format.T(lang, "alt_ask_name"))
	case "content":
		h.alteration.Choose(userID, dialog.AlterationContent)
		return say(h.format.T(lang, "alt_ask_content"))
	case "type":
		h.alteration.Choose(userID, dialog.AlterationType)
		return []Reply{{Text: h.format.T(lang, "new_ask_type"), Buttons: h.format.typeKeyboard(lang, prefixAlter), Edit: true}}
	case "day":
		h.alteration.Choose(userID, dialog.AlterationDay)
		return []Reply{{Text: h.format.T(lang, "new_ask_day"), Buttons: h.format.dayKeyboard(lang, prefixAlter), Edit: true}}
	case "start":
		h.alteration.Choose(userID, dialog.AlterationStart)
		return say(h.format.T(lang, "new_ask_hours"))
	case "ping":
		h.alteration.Choose(userID, dialog.AlterationPings)
		sess.Selected = draft.PingOffsets.Clone()
		return h.offsetPrompt(lang, prefixAlter, sess.Selected)
	case "digest":
		draft.InDailyDigest = !draft.InDailyDigest
		return []Reply{h.hub(lang, draft, true)}
	}
	return say(h.format.T(lang, "use_buttons"))
}

func (h *EventHandler) alterationText(userID int64, lang string, sess *dialog.Session, input string) []Reply {
	draft := sess.Draft
	if draft == nil {
		return say(h.format.T(lang, "use_buttons"))
	}

	switch h.alteration.State(userID) {
	case dialog.AlterationNameReply:
		title := sanitize.Title(input)
		if title == "" {
			return say(h.format.T(lang, "invalid_text"))
		}
		draft.Title = title
		h.alteration.CompleteReply(userID)
		return []Reply{h.hub(lang, draft, false)}

	case dialog.AlterationContentReply:
		content := sanitize.Content(input)
		if content == "" {
			return say(h.format.T(lang, "invalid_text"))
		}
		draft.Content = content
		h.alteration.CompleteReply(userID)
		return []Reply{h.hub(lang, draft, false)}

	case dialog.AlterationStartHours:
		if st, err := domain.ParseStartTime(input); err == nil {
			draft.Start = st
			h.alteration.CompleteReply(userID)
			h.alteration.CompleteReply(userID)
			return []Reply{h.hub(lang, draft, false)}
		}
		hour, ok := parseNumber(input, 23)
		if !ok {
			return say(h.format.T(lang, "invalid_hours"))
		}
		draft.Start.Hour = hour
		h.alteration.CompleteReply(userID)
		return say(h.format.T(lang, "new_ask_minutes"))

	case dialog.AlterationStartMinutes:
		minute, ok := parseNumber(input, 59)
		if !ok {
			return say(h.format.T(lang, "invalid_minutes"))
		}
		draft.Start.Minute = minute
		h.alteration.CompleteReply(userID)
		return []Reply{h.hub(lang, draft, false)}
	}
	return say(h.format.T(lang, "use_buttons"))
}

// commitAlteration writes the edits onto the stored event. The ping state of
// the stored event is only replaced when the schedule itself changed, so a
// pure text edit does not re-fire offsets the scheduler already consumed.
func (h *EventHandler) commitAlteration(ctx context.Context, userID int64, lang string, sess *dialog.Session) []Reply {
	h.alteration.SetState(userID, dialog.AlterationDone)

	stored, err := h.store.GetEvent(ctx, userID, sess.EventID)
	if err != nil {
		return h.fail(lang, userID, "get event", err)
	}
	if stored == nil {
		h.alteration.SetState(userID, dialog.AlterationIdle)
		return []Reply{{Text: h.format.T(lang, "not_found"), Edit: true}}
	}

	draft := sess.Draft
	stored.Title = draft.Title
	stored.Content = draft.Content
	stored.InDailyDigest = draft.InDailyDigest
	if !stored.SameSchedule(draft) {
		stored.Day = draft.Day
		stored.Type = draft.Type
		stored.Start = draft.Start
		stored.Reschedule(draft.ActiveOffsets(), h.now())
	}
	if err := stored.Validate(); err != nil {
		return h.fail(lang, userID, "validate event", err)
	}

	if err := h.store.SaveEvent(ctx, stored); err != nil {
		return h.fail(lang, userID, "save event", err)
	}
	h.mirrorPut(ctx, stored)
	h.alteration.SetState(userID, dialog.AlterationIdle)

	h.logger.Info("event altered", zap.Int64("user_id", userID), zap.String("event_id", stored.ID))
	return []Reply{{Text: h.format.T(lang, "alt_saved", h.format.Summary(lang, stored.Summary())), Edit: true}}
}

// === Deletion ===

func (h *EventHandler) deletionButton(ctx context.Context, userID int64, lang string, args []string) []Reply {
	switch args[0] {
	case "ask":
		e, err := h.store.GetEvent(ctx, userID, argAt(args, 1))
		if err != nil {
			return h.fail(lang, userID, "get event", err)
		}
		if e == nil {
			h.sessions.End(userID)
			return say(h.format.T(lang, "not_found"))
		}
		sess := h.sessions.Begin(userID, dialog.FlowAlteration)
		sess.EventID = e.ID
		h.alteration.SetState(userID, dialog.AlterationDeleteConfirm)
		return []Reply{{
			Text:    h.format.T(lang, "del_confirm", html.EscapeString(e.Title)),
			Buttons: h.format.confirmKeyboard(lang),
		}}

	case "yes", "no":
		sess := h.sessions.Session(userID)
		if h.alteration.State(userID) != dialog.AlterationDeleteConfirm || sess == nil {
			return say(h.format.T(lang, "stale_button"))
		}
		if args[0] == "no" {
			h.alteration.SetState(userID, dialog.AlterationIdle)
			return []Reply{{Text: h.format.T(lang, "del_kept"), Edit: true}}
		}
		return h.deleteEvent(ctx, userID, lang, sess.EventID)
	}
	return say(h.format.T(lang, "stale_button"))
}

// deleteEvent removes the event. An id that is already gone, e.g. expired by
// the scheduler meanwhile, is reported as not found.
func (h *EventHandler) deleteEvent(ctx context.Context, userID int64, lang, eventID string) []Reply {
	defer h.alteration.SetState(userID, dialog.AlterationIdle)

	e, err := h.store.GetEvent(ctx, userID, eventID)
	if err != nil {
		return h.fail(lang, userID, "get event", err)
	}
	if err := h.store.DeleteEvent(ctx, userID, eventID); err != nil {
		return h.fail(lang, userID, "delete event", err)
	}
	if e == nil {
		return []Reply{{Text: h.format.T(lang, "not_found"), Edit: true}}
	}
	h.mirrorDelete(ctx, userID, eventID)

	h.logger.Info("event deleted", zap.Int64("user_id", userID), zap.String("event_id", eventID))
	return []Reply{{Text: h.format.T(lang, "del_done"), Edit: true}}
}
