package experiment

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"randomizer/internal/pairing"
	"randomizer/internal/stimulus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every reading.
type fakeClock struct {
	now  time.Duration
	step time.Duration
}

func (c *fakeClock) Elapsed() time.Duration {
	c.now += c.step
	return c.now
}

type memorySink struct {
	records   []TrialRecord
	finalized int
	aborted   int
	writeErr  error
}

func (m *memorySink) Write(r TrialRecord) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memorySink) Finalize() error { m.finalized++; return nil }
func (m *memorySink) Abort() error    { m.aborted++; return nil }

func catalogOf(t *testing.T, uniform int, pairs int) stimulus.Catalog {
	t.Helper()
	colors := []string{"Grey", "Red", "Green", "Blue", "Pink"}
	var ids []string
	for i := 0; i < uniform; i++ {
		ids = append(ids, fmt.Sprintf("img/Uniform%s_12in.JPG", colors[i]))
	}
	for i := 0; i < pairs; i++ {
		ratio := fmt.Sprintf("%d.%d", i+1, pairs+2)
		ids = append(ids,
			fmt.Sprintf("img/RedGreen_12in_%s_left.JPG", ratio),
			fmt.Sprintf("img/RedGreen_12in_%s_right.JPG", ratio))
	}
	catalog, err := stimulus.ParseCatalog(ids)
	require.NoError(t, err)
	return catalog
}

func newSequencer(t *testing.T, catalog stimulus.Catalog, rounds int, sink Sink) *Sequencer {
	t.Helper()
	seq, err := New(catalog, rounds, sink,
		WithRand(pairing.NewRand(1)),
		WithClock(&fakeClock{step: time.Second}))
	require.NoError(t, err)
	return seq
}

// runRound advances through a whole round, returning the presented objects.
func runRound(t *testing.T, seq *Sequencer, annotation Annotation) []stimulus.Object {
	t.Helper()
	require.NoError(t, seq.AdvanceRound())
	require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	var shown []stimulus.Object
	for !seq.IsRoundComplete() {
		obj, err := seq.CurrentStimulus()
		require.NoError(t, err)
		shown = append(shown, obj)
		require.NoError(t, seq.AdvanceStimulus(annotation))
	}
	return shown
}

func TestTrialNumbering(t *testing.T) {
	seq := newSequencer(t, catalogOf(t, 3, 6), 3, &memorySink{})
	require.Equal(t, 9, seq.PerRound())

	runRound(t, seq, AnnotationNone)
	require.NoError(t, seq.AdvanceRound())
	require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	for i := 0; i < 3; i++ {
		require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	}

	assert.Equal(t, 13, seq.TrialNumber())
	info := seq.Info()
	assert.Equal(t, Info{Round: 2, Rounds: 3, Object: 4, Objects: 9, Trial: 13, Trials: 27}, info)
}

func TestRecordEmission(t *testing.T) {
	sink := &memorySink{}
	seq := newSequencer(t, catalogOf(t, 1, 2), 2, sink)
	require.Equal(t, 3, seq.PerRound())

	for !seq.IsExperimentComplete() {
		runRound(t, seq, AnnotationNone)
	}
	require.NoError(t, seq.Finish())

	require.Len(t, sink.records, 6)
	for i, r := range sink.records {
		assert.Equal(t, i+1, r.Trial)
		assert.Equal(t, i/3+1, r.Round)
		assert.Equal(t, i%3+1, r.Object)
		assert.Equal(t, time.Second, r.Duration())
	}
	assert.Equal(t, 1, sink.finalized)
	assert.Equal(t, 0, sink.aborted)
	assert.Equal(t, StateEnded, seq.State())
	assert.Equal(t, OutcomeFinished, seq.Outcome())
}

func TestFirstAdvanceEmitsNothing(t *testing.T) {
	sink := &memorySink{}
	seq := newSequencer(t, catalogOf(t, 1, 1), 1, sink)

	require.NoError(t, seq.AdvanceRound())
	_, err := seq.CurrentStimulus()
	assert.True(t, errors.Is(err, ErrInvalidStateTransition))

	require.NoError(t, seq.AdvanceStimulus(AnnotationViolationBothGrasps))
	assert.Empty(t, sink.records)
	assert.Equal(t, 1, seq.TrialNumber())
}

func TestRoundAlternation(t *testing.T) {
	seq := newSequencer(t, catalogOf(t, 2, 3), 3, &memorySink{})
	sets := seq.Sets()

	r1 := runRound(t, seq, AnnotationNone)
	r2 := runRound(t, seq, AnnotationNone)
	r3 := runRound(t, seq, AnnotationNone)

	assert.ElementsMatch(t, sets.Unflipped, r1)
	assert.ElementsMatch(t, sets.Flipped, r2)
	assert.ElementsMatch(t, sets.Unflipped, r3)
}

func TestRoundsAreReshuffled(t *testing.T) {
	seq := newSequencer(t, catalogOf(t, 3, 6), 21, &memorySink{})

	first := runRound(t, seq, AnnotationNone)
	changed := false
	for r := 2; r <= 21; r++ {
		shown := runRound(t, seq, AnnotationNone)
		if r%2 == 1 && !assert.ObjectsAreEqual(first, shown) {
			changed = true
		}
	}
	assert.True(t, changed, "odd rounds should not always repeat the same order")
}

func TestAnnotationsRecorded(t *testing.T) {
	sink := &memorySink{}
	seq := newSequencer(t, catalogOf(t, 0, 2), 1, sink)

	require.NoError(t, seq.AdvanceRound())
	require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	require.NoError(t, seq.AdvanceStimulus(AnnotationViolationSecondGrasp))
	require.NoError(t, seq.AdvanceStimulus(Annotation("right")))

	require.Len(t, sink.records, 2)
	assert.Equal(t, "Grasp #2", sink.records[0].Fields()[9])
	assert.Equal(t, "NONE", sink.records[1].Fields()[9])
}

func TestInvalidTransitions(t *testing.T) {
	sink := &memorySink{}
	seq := newSequencer(t, catalogOf(t, 1, 1), 1, sink)

	assert.Equal(t, StateNotStarted, seq.State())
	assert.True(t, errors.Is(seq.AdvanceStimulus(AnnotationNone), ErrInvalidStateTransition))
	assert.True(t, errors.Is(seq.Finish(), ErrInvalidStateTransition))

	require.NoError(t, seq.AdvanceRound())
	assert.Equal(t, StateInRound, seq.State())
	assert.True(t, errors.Is(seq.AdvanceRound(), ErrInvalidStateTransition), "round in progress")

	require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	require.True(t, seq.IsRoundComplete())
	assert.Equal(t, StateExperimentComplete, seq.State())

	_, err := seq.CurrentStimulus()
	assert.True(t, errors.Is(err, ErrInvalidStateTransition))
	assert.True(t, errors.Is(seq.AdvanceStimulus(AnnotationNone), ErrInvalidStateTransition))
	assert.True(t, errors.Is(seq.AdvanceRound(), ErrInvalidStateTransition), "experiment complete")

	require.NoError(t, seq.Finish())
	assert.True(t, errors.Is(seq.Finish(), ErrInvalidStateTransition))
	assert.True(t, errors.Is(seq.Abort(), ErrInvalidStateTransition))
	assert.Equal(t, 1, sink.finalized)
	assert.Equal(t, 0, sink.aborted)
}

func TestAbortKeepsEmittedRecords(t *testing.T) {
	sink := &memorySink{}
	seq := newSequencer(t, catalogOf(t, 1, 2), 2, sink)

	require.NoError(t, seq.AdvanceRound())
	require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	require.NoError(t, seq.Abort())

	assert.Len(t, sink.records, 1)
	assert.Equal(t, 1, sink.aborted)
	assert.Equal(t, 0, sink.finalized)
	assert.Equal(t, OutcomeAborted, seq.Outcome())
	assert.True(t, errors.Is(seq.AdvanceStimulus(AnnotationNone), ErrInvalidStateTransition))
	assert.True(t, errors.Is(seq.AdvanceRound(), ErrInvalidStateTransition))
}

func TestSinkWriteError(t *testing.T) {
	boom := errors.New("disk full")
	sink := &memorySink{writeErr: boom}
	seq := newSequencer(t, catalogOf(t, 1, 0), 1, sink)

	require.NoError(t, seq.AdvanceRound())
	require.NoError(t, seq.AdvanceStimulus(AnnotationNone))
	err := seq.AdvanceStimulus(AnnotationNone)
	assert.True(t, errors.Is(err, boom))
}

func TestNewRejectsBadInput(t *testing.T) {
	catalog := catalogOf(t, 1, 1)
	_, err := New(catalog, 0, &memorySink{})
	assert.Error(t, err)

	_, err = New(catalog, 1, nil)
	assert.Error(t, err)

	unbalanced := catalog
	unbalanced.Right = nil
	_, err = New(unbalanced, 1, &memorySink{})
	assert.True(t, errors.Is(err, pairing.ErrOrientationImbalance))
}

func TestRecordFields(t *testing.T) {
	obj, err := stimulus.Parse("img/RedGreen_12in_3.9_right.JPG")
	require.NoError(t, err)

	r := TrialRecord{
		Trial:      4,
		Round:      1,
		Object:     4,
		Stimulus:   obj,
		Start:      1500 * time.Millisecond,
		End:        4 * time.Second,
		Annotation: AnnotationViolationFirstGrasp,
	}
	fields := r.Fields()
	require.Len(t, fields, len(Columns()))
	assert.Equal(t, []string{
		"4", "1", "4", "img/RedGreen_12in_3.9_right.JPG", "6/9 Green 3/9 Red", "right",
		"1.500000", "4.000000", "2.500000", "Grasp #1",
	}, fields[:len(RecordColumns)])
	for _, f := range fields[len(RecordColumns):] {
		assert.Empty(t, f)
	}
}

func TestParseAnnotation(t *testing.T) {
	assert.Equal(t, AnnotationViolationFirstGrasp, ParseAnnotation("violation-first-grasp"))
	assert.Equal(t, AnnotationViolationBothGrasps, ParseAnnotation("violation-both-grasps"))
	assert.Equal(t, AnnotationNone, ParseAnnotation("none"))
	assert.Equal(t, AnnotationNone, ParseAnnotation("3"))
	assert.Equal(t, AnnotationNone, ParseAnnotation(""))
	assert.True(t, AnnotationViolationSecondGrasp.IsViolation())
	assert.False(t, Annotation("bogus").IsViolation())
	assert.Equal(t, "NONE", Annotation("bogus").Marker())
}
