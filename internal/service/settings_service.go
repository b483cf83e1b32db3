package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tazhate/weekping/internal/domain"
	"github.com/tazhate/weekping/internal/i18n"
)

// SettingsService changes the per-user preferences.
type SettingsService struct {
	store Store
	cat   *i18n.Catalog
}

func NewSettingsService(store Store, cat *i18n.Catalog) *SettingsService {
	return &SettingsService{store: store, cat: cat}
}

func (s *SettingsService) Get(ctx context.Context, userID int64) (*domain.Settings, error) {
	return s.store.LoadSettings(ctx, userID)
}

// SetLanguage stores code as the user's language. Unknown codes are rejected.
func (s *SettingsService) SetLanguage(ctx context.Context, userID int64, code string) (*domain.Settings, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !s.cat.Has(code) {
		return nil, fmt.Errorf("unsupported language %q", code)
	}

	st, err := s.store.LoadSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	st.Language = code
	if err := s.store.SaveSettings(ctx, st); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return st, nil
}

// ToggleDailyPing flips the daily digest opt-in.
func (s *SettingsService) ToggleDailyPing(ctx context.Context, userID int64) (*domain.Settings, error) {
	st, err := s.store.LoadSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	st.DailyPingEnabled = !st.DailyPingEnabled
	if err := s.store.SaveSettings(ctx, st); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return st, nil
}
