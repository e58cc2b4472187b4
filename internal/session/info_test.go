package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		month string
		year  int
		want  int
	}{
		{"JAN", 2026, 31},
		{"APR", 2026, 30},
		{"FEB", 2026, 28},
		{"FEB", 2024, 29},
		{"FEB", 1900, 28},
		{"FEB", 2000, 29},
		{"SMARCH", 2026, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysInMonth(tt.month, tt.year), "%s %d", tt.month, tt.year)
	}
}

func TestNewAndFileName(t *testing.T) {
	date := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	info := New(" P01 ", KindBehavioralTraining, date, []string{"Ana", "Ben"})

	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "P01", info.ParticipantID)
	assert.Equal(t, "OCT", info.Month)
	require.NoError(t, info.Validate())
	assert.Equal(t, "PerceptualBalanceTask-PIDP01-BehavioralTraining_2026OCT17", info.FileName("Perceptual Balance Task"))

	other := New("P01", KindBehavioralTraining, date, nil)
	assert.NotEqual(t, info.ID, other.ID)
}

func TestValidate(t *testing.T) {
	valid := Info{ParticipantID: "7", Kind: KindMRIPart1, Year: 2024, Month: "FEB", Day: 29, Scorers: []string{"A"}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Info)
	}{
		{"no participant", func(i *Info) { i.ParticipantID = "" }},
		{"bad kind", func(i *Info) { i.Kind = "Pilot" }},
		{"bad month", func(i *Info) { i.Month = "Feb" }},
		{"day too large", func(i *Info) { i.Year = 2023 }},
		{"day zero", func(i *Info) { i.Day = 0 }},
		{"no scorers", func(i *Info) { i.Scorers = nil }},
		{"blank scorer", func(i *Info) { i.Scorers = []string{"A", " "} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := valid
			info.Scorers = append([]string(nil), valid.Scorers...)
			tt.mutate(&info)
			err := info.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSession))
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("mri-part 2")
	require.NoError(t, err)
	assert.Equal(t, KindMRIPart2, k)

	_, err = ParseKind("pilot")
	assert.True(t, errors.Is(err, ErrInvalidSession))
}
