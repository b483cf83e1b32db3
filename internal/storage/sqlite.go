package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tazhate/weekping/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultLanguage is used for lazily created settings unless overridden.
const DefaultLanguage = "DE"

type Storage struct {
	db              *sql.DB
	defaultLanguage string
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db, defaultLanguage: DefaultLanguage}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// SetDefaultLanguage sets the language given to lazily created settings.
func (s *Storage) SetDefaultLanguage(lang string) {
	s.defaultLanguage = lang
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			user_id INTEGER PRIMARY KEY,
			language TEXT NOT NULL,
			daily_ping INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			day INTEGER NOT NULL,
			type TEXT NOT NULL,
			start_hour INTEGER NOT NULL,
			start_minute INTEGER NOT NULL,
			ping_offsets TEXT NOT NULL DEFAULT '{}',
			start_ping_done INTEGER NOT NULL DEFAULT 0,
			pending_rearm TEXT NOT NULL DEFAULT '{}',
			in_daily_digest INTEGER NOT NULL DEFAULT 1,
			scheduled_at INTEGER NOT NULL, -- unix nanoseconds
			created_at INTEGER NOT NULL,
			UNIQUE (user_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// === Settings ===

// LoadSettings returns the user's settings, creating the defaults on first access.
func (s *Storage) LoadSettings(ctx context.Context, userID int64) (*domain.Settings, error) {
	st := &domain.Settings{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT language, daily_ping FROM settings WHERE user_id = ?`,
		userID,
	).Scan(&st.Language, &st.DailyPingEnabled)
	if err == nil {
		return st, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	st = domain.DefaultSettings(userID, s.defaultLanguage)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (user_id, language, daily_ping) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		st.UserID, st.Language, st.DailyPingEnabled,
	); err != nil {
		return nil, fmt.Errorf("create settings: %w", err)
	}
	return st, nil
}

func (s *Storage) SaveSettings(ctx context.Context, st *domain.Settings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (user_id, language, daily_ping) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET language = excluded.language, daily_ping = excluded.daily_ping`,
		st.UserID, st.Language, st.DailyPingEnabled,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// ListUserIDs returns every user that has settings or events.
func (s *Storage) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM settings UNION SELECT user_id FROM events ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// === Events ===

const eventColumns = `id, user_id, title, content, day, type, start_hour, start_minute,
	ping_offsets, start_ping_done, pending_rearm, in_daily_digest, scheduled_at, created_at`

// SaveEvent inserts the event or replaces the stored record with the same id.
func (s *Storage) SaveEvent(ctx context.Context, e *domain.Event) error {
	armed, err := domain.MarshalOffsets(e.PingOffsets)
	if err != nil {
		return fmt.Errorf("encode ping offsets: %w", err)
	}
	pending, err := domain.MarshalOffsets(e.PendingRearm)
	if err != nil {
		return fmt.Errorf("encode pending rearm: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			day = excluded.day,
			type = excluded.type,
			start_hour = excluded.start_hour,
			start_minute = excluded.start_minute,
			ping_offsets = excluded.ping_offsets,
			start_ping_done = excluded.start_ping_done,
			pending_rearm = excluded.pending_rearm,
			in_daily_digest = excluded.in_daily_digest,
			scheduled_at = excluded.scheduled_at`,
		e.ID, e.UserID, e.Title, e.Content, int(e.Day), string(e.Type), e.Start.Hour, e.Start.Minute,
		armed, e.StartPingDone, pending, e.InDailyDigest, e.ScheduledAt.UnixNano(), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save event %s: %w", e.ID, err)
	}
	return nil
}

// GetEvent returns nil when the user has no event with that id.
func (s *Storage) GetEvent(ctx context.Context, userID int64, eventID string) (*domain.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? AND id = ?`,
		userID, eventID,
	)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return e, nil
}

// LoadEvents returns the user's events in creation order.
func (s *Storage) LoadEvents(ctx context.Context, userID int64) ([]*domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("load events: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteEvent removes the event; deleting a missing id is not an error.
func (s *Storage) DeleteEvent(ctx context.Context, userID int64, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE user_id = ? AND id = ?`,
		userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var (
		e                  domain.Event
		day                int
		typ                string
		armed, pending     string
		scheduled, created int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Content, &day, &typ, &e.Start.Hour, &e.Start.Minute,
		&armed, &e.StartPingDone, &pending, &e.InDailyDigest, &scheduled, &created); err != nil {
		return nil, err
	}
	e.Day = domain.Weekday(day)
	e.Type = domain.EventType(typ)
	e.ScheduledAt = time.Unix(0, scheduled).UTC()
	e.CreatedAt = time.Unix(0, created).UTC()

	var err error
	if e.PingOffsets, err = domain.UnmarshalOffsets(armed); err != nil {
		return nil, err
	}
	if e.PendingRearm, err = domain.UnmarshalOffsets(pending); err != nil {
		return nil, err
	}
	return &e, nil
}

// === Meta ===

// GetMeta returns "" when the key is not set.
func (s *Storage) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, nil
}

func (s *Storage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}
