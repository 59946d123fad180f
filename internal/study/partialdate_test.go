package study

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePartialDate(t *testing.T) {
	tests := []struct {
		input    string
		rendered string
	}{
		{"2021", "Unknown.Unknown.2021"},
		{"05.2021", "Unknown.05.2021"},
		{"17.05.2021", "17.05.2021"},
		{"Unknown.05.2021", "Unknown.05.2021"},
		{"17.05.2021 10:30:00", "17.05.2021 10:30:00"},
		{"10:30:00", "Unknown.Unknown.Unknown 10:30:00"},
		{"17.05.2021 10:30", "17.05.2021 10:30:Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			pd, err := ParsePartialDate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.rendered, pd.String())

			// rendering parses back to the same date
			back, err := ParsePartialDate(pd.String())
			require.NoError(t, err)
			assert.Equal(t, pd, back)
		})
	}
}

func TestParsePartialDateRejectsGarbage(t *testing.T) {
	for _, input := range []string{"17.xx.2021", "abc", "10:zz:00"} {
		_, err := ParsePartialDate(input)
		assert.Error(t, err, input)
	}
}

func TestParsePartialDateEmpty(t *testing.T) {
	pd, err := ParsePartialDate("   ")
	require.NoError(t, err)
	assert.True(t, pd.IsCompletelyUnknown())
	assert.False(t, pd.IsAnchoredInTime())
}

func TestCompareStopsAtUnknownComponent(t *testing.T) {
	full := PartialDateOf(2024, 3, 9)
	monthless, err := ParsePartialDate("Unknown.Unknown.2024")
	require.NoError(t, err)
	dayless, err := ParsePartialDate("Unknown.05.2024")
	require.NoError(t, err)

	// same year, unknown month: equal no matter the day
	assert.True(t, full.Equals(monthless))
	assert.True(t, monthless.Equals(full))

	// known months differ, unknown day never consulted
	assert.True(t, dayless.After(full))
	assert.True(t, full.Before(dayless))

	earlier := PartialDateOf(2023, 12, 31)
	assert.True(t, full.After(earlier))
	assert.False(t, earlier.After(full))
}

func TestPartialDateOfTime(t *testing.T) {
	pd := PartialDateOfTime(time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC))
	assert.True(t, pd.IsComplete())
	assert.Equal(t, "09.03.2024 10:30:00", pd.String())
}

func TestShiftKeepsUnknownComponents(t *testing.T) {
	base := PartialDateOf(2021, 5, 30)
	assert.Equal(t, "30.05.2022", base.AddYears(1).String())
	assert.Equal(t, "30.06.2021", base.AddMonths(1).String())
	assert.Equal(t, "01.06.2021", base.AddDays(2).String())

	dayless, err := ParsePartialDate("Unknown.05.2021")
	require.NoError(t, err)
	shifted := dayless.AddYears(2)
	assert.Nil(t, shifted.Day())
	require.NotNil(t, shifted.Year())
	assert.Equal(t, 2023, *shifted.Year())
}

func TestToTimeSubstitutesDefaults(t *testing.T) {
	monthless, err := ParsePartialDate("Unknown.Unknown.2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), monthless.ToTime())
}
