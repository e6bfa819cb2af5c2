package exif

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("2025:10:01 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.October, 1, 10, 0, 0, 0, time.UTC), got)
}

func TestParseDateTime_RoundTrip(t *testing.T) {
	inputs := []string{
		"2025:10:01 10:00:00",
		"1999:12:31 23:59:59",
		"2000:01:01 00:00:00",
		"2024:02:29 12:30:45",
		"0001:01:01 00:00:00",
	}
	for _, s := range inputs {
		got, err := ParseDateTime(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, FormatDateTime(got))
	}
}

func TestParseDateTime_Invalid(t *testing.T) {
	inputs := map[string]string{
		"empty":           "",
		"iso layout":      "2025-10-01T10:00:00",
		"dashes":          "2025-10-01 10:00:00",
		"short hour":      "2025:10:01 9:00:00",
		"two spaces":      "2025:10:01  10:00:00",
		"trailing text":   "2025:10:01 10:00:00Z",
		"missing seconds": "2025:10:01 10:00",
		"month 13":        "2025:13:01 10:00:00",
		"month zero":      "2025:00:01 10:00:00",
		"day zero":        "2025:10:00 10:00:00",
		"feb 30":          "2025:02:30 10:00:00",
		"feb 29 non leap": "2023:02:29 10:00:00",
		"april 31":        "2025:04:31 10:00:00",
		"hour 24":         "2025:10:01 24:00:00",
		"minute 60":       "2025:10:01 10:60:00",
		"second 60":       "2025:10:01 10:00:60",
		"blank camera":    "    :  :     :  :  ",
		"signed":          "+025:10:01 10:00:00",
	}
	for name, s := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDateTime(s)
			assert.ErrorIs(t, err, ErrInvalidTimestampFormat)
		})
	}
}
