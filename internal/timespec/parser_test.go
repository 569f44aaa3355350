package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		spec string
		want int
	}{
		{"22:00", 2200},
		{"6:30", 630},
		{"06:00", 600},
		{"25:50", 2550},
		{"2200", 2200},
		{"600", 600},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseClock(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "noon", "22:5", "22:05", "26:00", "12:60", "-1:00", "22:xx"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "06:00", FormatClock(600))
	assert.Equal(t, "22:10", FormatClock(2210))
}

func TestParseInterval(t *testing.T) {
	d, err := ParseInterval("100ms")
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, d)

	_, err = ParseInterval("0s")
	assert.Error(t, err)
	_, err = ParseInterval("soon")
	assert.Error(t, err)
}
