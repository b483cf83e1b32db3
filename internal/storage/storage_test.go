package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/weekping/internal/domain"
)

type store interface {
	SetDefaultLanguage(lang string)
	LoadSettings(ctx context.Context, userID int64) (*domain.Settings, error)
	SaveSettings(ctx context.Context, st *domain.Settings) error
	ListUserIDs(ctx context.Context) ([]int64, error)
	SaveEvent(ctx context.Context, e *domain.Event) error
	GetEvent(ctx context.Context, userID int64, eventID string) (*domain.Event, error)
	LoadEvents(ctx context.Context, userID int64) ([]*domain.Event, error)
	DeleteEvent(ctx context.Context, userID int64, eventID string) error
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	Close() error
}

func backends(t *testing.T) map[string]func(t *testing.T) store {
	return map[string]func(t *testing.T) store{
		"sqlite": func(t *testing.T) store {
			s, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"memory": func(t *testing.T) store {
			return NewMemory()
		},
	}
}

func testEvent(t *testing.T, userID int64, title string) *domain.Event {
	t.Helper()
	now := time.Date(2026, time.October, 18, 9, 15, 0, 0, time.UTC)
	e, err := domain.NewEvent(domain.EventParams{
		UserID:        userID,
		Title:         title,
		Content:       "details",
		Day:           domain.WeekdayMonday,
		Type:          domain.EventSingle,
		Start:         domain.StartTime{Hour: 10, Minute: 0},
		Offsets:       []domain.Offset{domain.Offset30m, domain.Offset24h},
		InDailyDigest: true,
	}, now)
	require.NoError(t, err)
	return e
}

func TestStorageContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("settings created lazily with defaults", func(t *testing.T) {
				s := open(t)
				s.SetDefaultLanguage("EN")
				ctx := context.Background()

				st, err := s.LoadSettings(ctx, 7)
				require.NoError(t, err)
				assert.Equal(t, &domain.Settings{UserID: 7, Language: "EN"}, st)

				st.Language = "DE"
				st.DailyPingEnabled = true
				require.NoError(t, s.SaveSettings(ctx, st))

				again, err := s.LoadSettings(ctx, 7)
				require.NoError(t, err)
				assert.Equal(t, st, again)
			})

			t.Run("event round trip", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				e := testEvent(t, 1, "Dentist")
				e.Evaluate(time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC),
					time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC))
				require.True(t, e.PendingRearm[domain.Offset24h])

				require.NoError(t, s.SaveEvent(ctx, e))

				got, err := s.GetEvent(ctx, 1, e.ID)
				require.NoError(t, err)
				require.NotNil(t, got)
				assertSameEvent(t, e, got)

				all, err := s.LoadEvents(ctx, 1)
				require.NoError(t, err)
				require.Len(t, all, 1)
				assertSameEvent(t, e, all[0])
			})

			t.Run("save upserts by id", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				first := testEvent(t, 1, "First")
				second := testEvent(t, 1, "Second")
				require.NoError(t, s.SaveEvent(ctx, first))
				require.NoError(t, s.SaveEvent(ctx, second))

				first.Title = "First renamed"
				first.StartPingDone = true
				require.NoError(t, s.SaveEvent(ctx, first))

				all, err := s.LoadEvents(ctx, 1)
				require.NoError(t, err)
				require.Len(t, all, 2)
				assert.Equal(t, "First renamed", all[0].Title, "store order is insertion order")
				assert.True(t, all[0].StartPingDone)
				assert.Equal(t, "Second", all[1].Title)
			})

			t.Run("events are scoped per user", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				e := testEvent(t, 1, "Mine")
				require.NoError(t, s.SaveEvent(ctx, e))

				got, err := s.GetEvent(ctx, 2, e.ID)
				require.NoError(t, err)
				assert.Nil(t, got)

				other, err := s.LoadEvents(ctx, 2)
				require.NoError(t, err)
				assert.Empty(t, other)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				e := testEvent(t, 1, "Gone")
				require.NoError(t, s.SaveEvent(ctx, e))

				require.NoError(t, s.DeleteEvent(ctx, 1, e.ID))
				require.NoError(t, s.DeleteEvent(ctx, 1, e.ID))
				require.NoError(t, s.DeleteEvent(ctx, 1, "does-not-exist"))

				got, err := s.GetEvent(ctx, 1, e.ID)
				require.NoError(t, err)
				assert.Nil(t, got)
			})

			t.Run("list users", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				_, err := s.LoadSettings(ctx, 30)
				require.NoError(t, err)
				require.NoError(t, s.SaveEvent(ctx, testEvent(t, 10, "A")))
				require.NoError(t, s.SaveEvent(ctx, testEvent(t, 30, "B")))

				ids, err := s.ListUserIDs(ctx)
				require.NoError(t, err)
				assert.Equal(t, []int64{10, 30}, ids)
			})

			t.Run("meta", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				v, err := s.GetMeta(ctx, "last_scan_day")
				require.NoError(t, err)
				assert.Empty(t, v)

				require.NoError(t, s.SetMeta(ctx, "last_scan_day", "2026-10-19"))
				require.NoError(t, s.SetMeta(ctx, "last_scan_day", "2026-10-20"))
				v, err = s.GetMeta(ctx, "last_scan_day")
				require.NoError(t, err)
				assert.Equal(t, "2026-10-20", v)
			})
		})
	}
}

func assertSameEvent(t *testing.T, want, got *domain.Event) {
	t.Helper()
	assert.True(t, want.ScheduledAt.Equal(got.ScheduledAt), "scheduled_at")
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at")

	w, g := want.Clone(), got.Clone()
	w.ScheduledAt, g.ScheduledAt = time.Time{}, time.Time{}
	w.CreatedAt, g.CreatedAt = time.Time{}, time.Time{}
	assert.Equal(t, w, g)
}

func TestTimestampsKeepSubSecondPrecision(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			created := time.Date(2026, time.October, 19, 10, 0, 0, 400_123_456, time.UTC)
			e := testEvent(t, 1, "Dentist")
			e.CreatedAt = created
			e.ScheduledAt = created.Add(time.Nanosecond)
			require.NoError(t, s.SaveEvent(ctx, e))

			got, err := s.GetEvent(ctx, 1, e.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, 400_123_457, got.ScheduledAt.Nanosecond())
			assert.Equal(t, 400_123_456, got.CreatedAt.Nanosecond())
			assertSameEvent(t, e, got)
		})
	}
}

func TestUnknownOffsetRejectedOnLoad(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	e := testEvent(t, 1, "Broken")
	require.NoError(t, s.SaveEvent(ctx, e))
	_, err = s.db.Exec(`UPDATE events SET ping_offsets = '{"45m":true}' WHERE id = ?`, e.ID)
	require.NoError(t, err)

	_, err = s.GetEvent(ctx, 1, e.ID)
	assert.ErrorIs(t, err, domain.ErrUnknownOffset)
}
