package domain

// Settings are the per-user preferences. They are created lazily on first
// access and never deleted.
type Settings struct {
	UserID           int64
	Language         string
	DailyPingEnabled bool
}

func DefaultSettings(userID int64, language string) *Settings {
	return &Settings{
		UserID:           userID,
		Language:         language,
		DailyPingEnabled: false,
	}
}
