package experiment

import (
	"strconv"
	"time"

	"randomizer/internal/stimulus"
)

// RecordColumns names the fields of TrialRecord.Fields, in order.
var RecordColumns = []string{
	"Trial#", "Round#", "Object#", "ObjectName", "ObjectRatioColors",
	"ObjectOrientation", "StartTime", "EndTime", "Duration", "PrecisionGraspViolation",
}

// ScoringColumns are left empty by the sequencer and filled in later by the
// people scoring the session video.
var ScoringColumns = []string{
	"Time before First Grasp", "First Grasp Lift Off", "Object Placed Down (Time)",
	"(First) Held For", "First Grasp Location", "First Grasp Precision",
	"Time before Second Grasp", "Second Grasp Lift Off", "(Second) Object Placed Down",
	"(Second) Held For", "Second Grasp Location", "Second Grasp Precision",
}

// Columns returns RecordColumns followed by ScoringColumns.
func Columns() []string {
	cols := make([]string, 0, len(RecordColumns)+len(ScoringColumns))
	cols = append(cols, RecordColumns...)
	return append(cols, ScoringColumns...)
}

// TrialRecord is the data captured for one completed stimulus presentation.
type TrialRecord struct {
	Trial      int
	Round      int
	Object     int // 1-based position within the round
	Stimulus   stimulus.Object
	Start      time.Duration
	End        time.Duration
	Annotation Annotation
}

// Duration is End minus Start.
func (r TrialRecord) Duration() time.Duration {
	return r.End - r.Start
}

// Fields renders the record in Columns order, including the empty scoring
// placeholders.
func (r TrialRecord) Fields() []string {
	fields := []string{
		strconv.Itoa(r.Trial),
		strconv.Itoa(r.Round),
		strconv.Itoa(r.Object),
		r.Stimulus.Identifier,
		r.Stimulus.Info(),
		string(r.Stimulus.Orientation),
		formatSeconds(r.Start),
		formatSeconds(r.End),
		formatSeconds(r.Duration()),
		r.Annotation.Marker(),
	}
	return append(fields, make([]string, len(ScoringColumns))...)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
