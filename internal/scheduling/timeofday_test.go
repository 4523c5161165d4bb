package scheduling

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in   string
		want TimeOfDay
		ok   bool
	}{
		{"09:00", 540, true},
		{"9:05", 545, true},
		{"17:30:00", 1050, true},
		{"00:00", 0, true},
		{"23:59", 1439, true},
		{"24:00", 1440, true},
		{"24:30", 0, false},
		{"25:00", 0, false},
		{"12:60", 0, false},
		{"12:5", 0, false},
		{"12:30:15", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := ParseTimeOfDay(c.in)
		if !c.ok {
			assert.ErrorIs(t, err, ErrInvalidTimeFormat, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestTimeOfDay_String(t *testing.T) {
	assert.Equal(t, "09:05", MustTimeOfDay("9:05").String())
	assert.Equal(t, "24:00", TimeOfDay(minutesPerDay).String())
	assert.True(t, TimeOfDay(minutesPerDay).Valid())
	assert.False(t, TimeOfDay(minutesPerDay+1).Valid())
}

func TestTimeOfDay_On(t *testing.T) {
	day := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	got := MustTimeOfDay("14:30").On(day, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC), got)
}

func TestParseDateTime(t *testing.T) {
	want := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-03-10 14:00", "2025-03-10 14:00:00", "2025-03-10T14:00", " 2025-03-10T14:00:00 ", "2025-03-10T15:00:00+01:00"} {
		got, err := ParseDateTime(in, time.UTC)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	for _, in := range []string{"2025-03-10", "10/03/2025 14:00", "2025-13-01 10:00", "tomorrow"} {
		_, err := ParseDateTime(in, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidTimeFormat, in)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-02-28", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.February, d.Month())

	_, err = ParseDate("2025-02-30", time.UTC)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"monday": time.Monday, "Sun": time.Sunday, "6": time.Saturday, " wed ": time.Wednesday,
	} {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseWeekday("7")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseWeekday("someday")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDaysBetween_IgnoresClockAndZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	from := time.Date(2025, 3, 8, 23, 30, 0, 0, ny)
	to := time.Date(2025, 3, 10, 0, 15, 0, 0, ny)
	assert.Equal(t, 2, daysBetween(from, to))
	assert.Equal(t, -2, daysBetween(to, from))
}
