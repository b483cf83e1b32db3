package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/weekping/internal/dialog"
	"github.com/tazhate/weekping/internal/domain"
	"github.com/tazhate/weekping/internal/ics"
	"github.com/tazhate/weekping/internal/sanitize"
)

const mirrorTimeout = 15 * time.Second

// EventHandler turns commands, texts and button clicks into dialog
// transitions, event changes and replies. Interactions of one user are
// handled one at a time.
type EventHandler struct {
	store      Store
	sessions   *dialog.Manager
	creation   *dialog.CreationMachine
	alteration *dialog.AlterationMachine
	settings   *SettingsService
	format     *Formatter
	mirror     Mirror
	logger     *zap.Logger
	now        func() time.Time
}

func NewEventHandler(store Store, sessions *dialog.Manager, format *Formatter, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		store:      store,
		sessions:   sessions,
		creation:   dialog.NewCreationMachine(sessions),
		alteration: dialog.NewAlterationMachine(sessions),
		settings:   NewSettingsService(store, format.Catalog()),
		format:     format,
		logger:     logger.Named("handler"),
		now:        func() time.Time { return time.Now().In(format.Location()) },
	}
}

// SetMirror enables copying saved and deleted events to m.
func (h *EventHandler) SetMirror(m Mirror) {
	h.mirror = m
}

func (h *EventHandler) SetClock(now func() time.Time) {
	h.now = now
}

// OnCommand handles a slash command; args is the text after the command.
func (h *EventHandler) OnCommand(ctx context.Context, userID int64, name, args string) []Reply {
	unlock := h.sessions.Lock(userID)
	defer unlock()
	lang := h.language(ctx, userID)

	switch strings.ToLower(name) {
	case "start":
		return say(h.format.T(lang, "greeting"))
	case "help":
		return say(h.format.T(lang, "help"))
	case "new", "new_event":
		return h.startCreation(userID, lang, args)
	case "list", "list_events":
		return h.listEvents(ctx, userID, lang)
	case "config":
		return []Reply{{Text: h.format.T(lang, "config_dialog_started"), Buttons: h.format.configKeyboard(lang)}}
	case "export":
		return h.export(ctx, userID, lang)
	case "cancel":
		if h.sessions.Session(userID) == nil {
			return say(h.format.T(lang, "nothing_to_cancel"))
		}
		h.sessions.End(userID)
		return say(h.format.T(lang, "cancelled"))
	}
	return say(h.format.T(lang, "confused_echo"))
}

// OnText handles a plain message, which only means something inside a flow.
func (h *EventHandler) OnText(ctx context.Context, userID int64, input string) []Reply {
	unlock := h.sessions.Lock(userID)
	defer unlock()
	lang := h.language(ctx, userID)

	sess := h.sessions.Session(userID)
	if sess == nil {
		return say(h.format.T(lang, "confused_echo"))
	}
	switch sess.Flow {
	case dialog.FlowCreation:
		return h.creationText(userID, lang, sess, input)
	case dialog.FlowAlteration:
		return h.alterationText(userID, lang, sess, input)
	}
	return say(h.format.T(lang, "confused_echo"))
}

// OnButton handles a callback token of the form "verb:arg[:arg]".
func (h *EventHandler) OnButton(ctx context.Context, userID int64, data string) []Reply {
	unlock := h.sessions.Lock(userID)
	defer unlock()
	lang := h.language(ctx, userID)

	parts := strings.Split(data, ":")
	args := parts[1:]
	if len(args) == 0 {
		return say(h.format.T(lang, "stale_button"))
	}

	switch parts[0] {
	case prefixNew:
		return h.creationButton(ctx, userID, lang, args)
	case prefixAlter:
		return h.alterationButton(ctx, userID, lang, args)
	case prefixDelete:
		return h.deletionButton(ctx, userID, lang, args)
	case prefixConfig:
		return h.configButton(ctx, userID, lang, args)
	}
	return say(h.format.T(lang, "stale_button"))
}

func (h *EventHandler) language(ctx context.Context, userID int64) string {
	st, err := h.store.LoadSettings(ctx, userID)
	if err != nil {
		h.logger.Warn("load settings failed", zap.Int64("user_id", userID), zap.Error(err))
		return h.format.Catalog().Default()
	}
	return st.Language
}

// fail logs err, drops the user's flow and answers with the generic error.
func (h *EventHandler) fail(lang string, userID int64, msg string, err error) []Reply {
	h.logger.Error(msg, zap.Int64("user_id", userID), zap.Error(err))
	h.sessions.End(userID)
	return say(h.format.T(lang, "error_generic"))
}

// === Creation ===

func (h *EventHandler) startCreation(userID int64, lang, args string) []Reply {
	sess := h.sessions.Begin(userID, dialog.FlowCreation)
	sess.Draft = &domain.Event{UserID: userID, InDailyDigest: true}

	if title := sanitize.Title(args); title != "" {
		sess.Draft.Title = title
		h.creation.SetState(userID, dialog.CreationAwaitContent)
		return say(h.format.T(lang, "new_ask_content"))
	}
	h.creation.SetState(userID, dialog.CreationAwaitTitle)
	return say(h.format.T(lang, "new_ask_title"))
}

func (h *EventHandler) creationText(userID int64, lang string, sess *dialog.Session, input string) []Reply {
	d := sess.Draft

	switch h.creation.State(userID) {
	case dialog.CreationAwaitTitle:
		title := sanitize.Title(input)
		if title == "" {
			return say(h.format.T(lang, "invalid_text"))
		}
		d.Title = title
		h.creation.SetState(userID, dialog.CreationAwaitContent)
		return say(h.format.T(lang, "new_ask_content"))

	case dialog.CreationAwaitContent:
		content := sanitize.Content(input)
		if content == "" {
			return say(h.format.T(lang, "invalid_text"))
		}
		d.Content = content
		h.creation.SetState(userID, dialog.CreationAwaitType)
		return []Reply{{Text: h.format.T(lang, "new_ask_type"), Buttons: h.format.typeKeyboard(lang, prefixNew)}}

	case dialog.CreationAwaitHours:
		if st, err := domain.ParseStartTime(input); err == nil {
			d.Start = st
			return h.askPingStart(userID, lang)
		}
		hour, ok := parseNumber(input, 23)
		if !ok {
			return say(h.format.T(lang, "invalid_hours"))
		}
		d.Start.Hour = hour
		h.creation.SetState(userID, dialog.CreationAwaitMinutes)
		return say(h.format.T(lang, "new_ask_minutes"))

	case dialog.CreationAwaitMinutes:
		minute, ok := parseNumber(input, 59)
		if !ok {
			return say(h.format.T(lang, "invalid_minutes"))
		}
		d.Start.Minute = minute
		return h.askPingStart(userID, lang)
	}
	return say(h.format.T(lang, "use_buttons"))
}

func (h *EventHandler) askPingStart(userID int64, lang string) []Reply {
	h.creation.SetState(userID, dialog.CreationAwaitPingStart)
	return []Reply{{Text: h.format.T(lang, "new_ask_ping"), Buttons: h.format.pingStartKeyboard(lang)}}
}

func (h *EventHandler) creationButton(ctx context.Context, userID int64, lang string, args []string) []Reply {
	state := h.creation.State(userID)
	sess := h.sessions.Session(userID)
	if state == dialog.CreationIdle || sess == nil {
		return say(h.format.T(lang, "stale_button"))
	}
	if args[0] == "cancel" {
		h.creation.SetState(userID, dialog.CreationIdle)
		return []Reply{{Text: h.format.T(lang, "cancelled"), Edit: true}}
	}

	d := sess.Draft
	arg := argAt(args, 1)

	switch {
	case args[0] == "type" && state == dialog.CreationAwaitType:
		t := domain.EventType(arg)
		if !t.Valid() {
			return say(h.format.T(lang, "use_buttons"))
		}
		d.Type = t
		h.creation.SetState(userID, dialog.CreationAwaitDay)
		return []Reply{{Text: h.format.T(lang, "new_ask_day"), Buttons: h.format.dayKeyboard(lang, prefixNew), Edit: true}}

	case args[0] == "day" && state == dialog.CreationAwaitDay:
		day, err := domain.ParseWeekday(arg)
		if err != nil {
			return say(h.format.T(lang, "use_buttons"))
		}
		d.Day = day
		h.creation.SetState(userID, dialog.CreationAwaitHours)
		return []Reply{{Text: h.format.T(lang, "new_ask_hours"), Edit: true}}

	case args[0] == "ping" && state == dialog.CreationAwaitPingStart:
		switch arg {
		case "yes":
			h.creation.SetState(userID, dialog.CreationAwaitPingSelect)
			return h.offsetPrompt(lang, prefixNew, sess.Selected)
		case "no":
			return h.finalizeCreation(ctx, userID, lang, sess)
		}

	case args[0] == "ping" && state == dialog.CreationAwaitPingSelect:
		if arg == "done" {
			return h.finalizeCreation(ctx, userID, lang, sess)
		}
		o, err := domain.ParseOffset(arg)
		if err != nil {
			return say(h.format.T(lang, "use_buttons"))
		}
		sess.Selected[o] = !sess.Selected[o]
		return h.offsetPrompt(lang, prefixNew, sess.Selected)
	}
	return say(h.format.T(lang, "stale_button"))
}

func (h *EventHandler) offsetPrompt(lang, prefix string, selected domain.OffsetSet) []Reply {
	return []Reply{{
		Text:    h.format.T(lang, "new_ask_ping_select"),
		Buttons: h.format.offsetKeyboard(lang, prefix, selected),
		Edit:    true,
	}}
}

// finalizeCreation builds, settles and stores the drafted event.
func (h *EventHandler) finalizeCreation(ctx context.Context, userID int64, lang string, sess *dialog.Session) []Reply {
	h.creation.SetState(userID, dialog.CreationFinalize)
	d := sess.Draft
	now := h.now()

	e, err := domain.NewEvent(domain.EventParams{
		UserID:        userID,
		Title:         d.Title,
		Content:       d.Content,
		Day:           d.Day,
		Type:          d.Type,
		Start:         d.Start,
		Offsets:       sess.Selected.On(),
		InDailyDigest: d.InDailyDigest,
	}, now)
	if err != nil {
		return h.fail(lang, userID, "build event", err)
	}
	// created for a time already past this week: nothing may fire until the rollover
	e.Settle(now)

	if err := h.store.SaveEvent(ctx, e); err != nil {
		return h.fail(lang, userID, "save event", err)
	}
	h.mirrorPut(ctx, e)
	h.creation.SetState(userID, dialog.CreationIdle)

	h.logger.Info("event created",
		zap.Int64("user_id", userID),
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("phase", string(e.Phase(now))),
	)
	return []Reply{{Text: h.format.T(lang, "event_created", h.format.Summary(lang, e.Summary())), Edit: true}}
}

// === Listing and export ===

func (h *EventHandler) listEvents(ctx context.Context, userID int64, lang string) []Reply {
	events, err := h.store.LoadEvents(ctx, userID)
	if err != nil {
		return h.fail(lang, userID, "load events", err)
	}
	return []Reply{{Text: h.format.List(lang, events), Buttons: h.format.listKeyboard(lang, events)}}
}

func (h *EventHandler) export(ctx context.Context, userID int64, lang string) []Reply {
	events, err := h.store.LoadEvents(ctx, userID)
	if err != nil {
		return h.fail(lang, userID, "load events", err)
	}
	if len(events) == 0 {
		return say(h.format.T(lang, "list_empty"))
	}
	data, err := ics.Export(events, h.now())
	if err != nil {
		return h.fail(lang, userID, "export events", err)
	}
	return []Reply{{
		Text:     h.format.T(lang, "export_caption"),
		Document: &Document{Name: "weekping.ics", Data: data},
	}}
}

// === Settings ===

func (h *EventHandler) configButton(ctx context.Context, userID int64, lang string, args []string) []Reply {
	switch {
	case args[0] == "lang" && len(args) == 1:
		return []Reply{{
			Text:    h.format.T(lang, "config_language_which"),
			Buttons: languageKeyboard(h.format.Catalog().Languages()),
			Edit:    true,
		}}

	case args[0] == "lang":
		code := args[1]
		if !h.format.Catalog().Has(code) {
			return say(h.format.T(lang, "use_buttons"))
		}
		st, err := h.settings.SetLanguage(ctx, userID, code)
		if err != nil {
			return h.fail(lang, userID, "change language", err)
		}
		return []Reply{{Text: h.format.T(st.Language, "config_language_changed"), Edit: true}}

	case args[0] == "daily":
		st, err := h.settings.ToggleDailyPing(ctx, userID)
		if err != nil {
			return h.fail(lang, userID, "toggle daily ping", err)
		}
		key := "config_daily_ping_off"
		if st.DailyPingEnabled {
			key = "config_daily_ping_on"
		}
		return []Reply{{Text: h.format.T(lang, key), Edit: true}}
	}
	return say(h.format.T(lang, "stale_button"))
}

// === Mirror ===

func (h *EventHandler) mirrorPut(ctx context.Context, e *domain.Event) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	if err := h.mirror.PutEvent(ctx, e); err != nil {
		h.logger.Warn("mirror event failed", zap.Int64("user_id", e.UserID), zap.String("event_id", e.ID), zap.Error(err))
	}
}

func (h *EventHandler) mirrorDelete(ctx context.Context, userID int64, eventID string) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	if err := h.mirror.DeleteEvent(ctx, userID, eventID); err != nil {
		h.logger.Warn("mirror delete failed", zap.Int64("user_id", userID), zap.String("event_id", eventID), zap.Error(err))
	}
}

func parseNumber(s string, maxValue int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > maxValue {
		return 0, false
	}
	return n, true
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
