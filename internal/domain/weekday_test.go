package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		input string
		want  Weekday
	}{
		{"1", WeekdayMonday},
		{"0", WeekdaySunday},
		{"tuesday", WeekdayTuesday},
		{"Sat", WeekdaySaturday},
	}
	for _, tt := range tests {
		got, err := ParseWeekday(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"7", "-1", "someday", ""} {
		_, err := ParseWeekday(bad)
		assert.Error(t, err, bad)
	}
}

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 0, DaysUntil(WeekdayMonday, WeekdayMonday))
	assert.Equal(t, 1, DaysUntil(WeekdayMonday, WeekdayTuesday))
	assert.Equal(t, 6, DaysUntil(WeekdayMonday, WeekdaySunday))
	assert.Equal(t, 1, DaysUntil(WeekdaySaturday, WeekdaySunday))
}

func TestWeekdayKey(t *testing.T) {
	assert.Equal(t, "day_mon", WeekdayMonday.Key())
	assert.Equal(t, "day_sun", WeekdaySunday.Key())
	assert.Equal(t, "day_unknown", Weekday(9).Key())
}

func TestMidnight(t *testing.T) {
	assert.Equal(t, at(19, 0, 0), Midnight(at(19, 23, 59)))
}
