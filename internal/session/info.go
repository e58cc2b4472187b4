// Package session describes one participant session: who is being tested,
// when, in which part of the study, and who will score the recording. It
// also derives the name of the session's data file.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSession is returned by Validate.
var ErrInvalidSession = errors.New("invalid session")

// Kind is the part of the study a session belongs to.
type Kind string

const (
	KindBehavioralTraining Kind = "BehavioralTraining"
	KindMRIPart1           Kind = "MRI-Part 1"
	KindMRIPart2           Kind = "MRI-Part 2"
)

// Kinds lists all session kinds.
var Kinds = []Kind{KindBehavioralTraining, KindMRIPart1, KindMRIPart2}

// ParseKind accepts a kind by name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown session kind %q (valid: %v)", ErrInvalidSession, s, Kinds)
}

// Months are the month abbreviations used in file names.
var Months = []string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in month (an abbreviation from
// Months) of year, or -1 for an unknown month.
func DaysInMonth(month string, year int) int {
	switch month {
	case "JAN", "MAR", "MAY", "JUL", "AUG", "OCT", "DEC":
		return 31
	case "APR", "JUN", "SEP", "NOV":
		return 30
	case "FEB":
		if IsLeapYear(year) {
			return 29
		}
		return 28
	}
	return -1
}

// Info identifies a participant session.
type Info struct {
	ID            string
	ParticipantID string
	Kind          Kind
	Year          int
	Month         string
	Day           int
	Scorers       []string
}

// New returns an Info dated on date with a fresh session ID.
func New(participant string, kind Kind, date time.Time, scorers []string) Info {
	return Info{
		ID:            uuid.NewString(),
		ParticipantID: strings.TrimSpace(participant),
		Kind:          kind,
		Year:          date.Year(),
		Month:         Months[date.Month()-1],
		Day:           date.Day(),
		Scorers:       append([]string(nil), scorers...),
	}
}

// Validate checks that every field needed to name the data file is present
// and that the date exists.
func (i Info) Validate() error {
	if i.ParticipantID == "" {
		return fmt.Errorf("%w: participant ID required", ErrInvalidSession)
	}
	if _, err := ParseKind(string(i.Kind)); err != nil {
		return err
	}
	if i.Year <= 0 {
		return fmt.Errorf("%w: year %d", ErrInvalidSession, i.Year)
	}
	days := DaysInMonth(i.Month, i.Year)
	if days < 0 {
		return fmt.Errorf("%w: unknown month %q", ErrInvalidSession, i.Month)
	}
	if i.Day < 1 || i.Day > days {
		return fmt.Errorf("%w: %s %d has %d days, got day %d", ErrInvalidSession, i.Month, i.Year, days, i.Day)
	}
	if len(i.Scorers) == 0 {
		return fmt.Errorf("%w: at least one scorer required", ErrInvalidSession)
	}
	for n, s := range i.Scorers {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: scorer #%d has no name", ErrInvalidSession, n+1)
		}
	}
	return nil
}

// FileName returns the base name (without extension) of the session's data
// file, e.g. "PerceptualBalanceTask-PIDP01-BehavioralTraining_2026OCT17".
func (i Info) FileName(experiment string) string {
	name := strings.Join(strings.Fields(experiment), "")
	return fmt.Sprintf("%s-PID%s-%s_%d%s%d", name, i.ParticipantID, i.Kind, i.Year, i.Month, i.Day)
}
