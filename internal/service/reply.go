package service

import (
	"context"

	"github.com/tazhate/weekping/internal/domain"
)

// Button is an inline button; Data is the callback token sent back on click.
type Button struct {
	Label string
	Data  string
}

type Document struct {
	Name string
	Data []byte
}

// Reply is one outbound message. Edit asks the transport to replace the
// message the triggering button belonged to instead of sending a new one.
type Reply struct {
	Text     string
	Buttons  [][]Button
	Edit     bool
	Document *Document
}

func say(s string) []Reply {
	return []Reply{{Text: s}}
}

// Store is the persistence the handlers need.
type Store interface {
	LoadSettings(ctx context.Context, userID int64) (*domain.Settings, error)
	SaveSettings(ctx context.Context, st *domain.Settings) error
	LoadEvents(ctx context.Context, userID int64) ([]*domain.Event, error)
	GetEvent(ctx context.Context, userID int64, eventID string) (*domain.Event, error)
	SaveEvent(ctx context.Context, e *domain.Event) error
	DeleteEvent(ctx context.Context, userID int64, eventID string) error
}

// Mirror receives a copy of every saved or deleted event, e.g. a CalDAV
// calendar. Its failures never reach the user.
type Mirror interface {
	PutEvent(ctx context.Context, e *domain.Event) error
	DeleteEvent(ctx context.Context, userID int64, eventID string) error
}
