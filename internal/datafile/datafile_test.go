package datafile

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"randomizer/internal/experiment"
	"randomizer/internal/session"
	"randomizer/internal/stimulus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func record(t *testing.T, trial int, id string) experiment.TrialRecord {
	t.Helper()
	obj, err := stimulus.Parse(id)
	require.NoError(t, err)
	return experiment.TrialRecord{
		Trial:      trial,
		Round:      1,
		Object:     trial,
		Stimulus:   obj,
		Start:      time.Duration(trial) * time.Second,
		End:        time.Duration(trial+1) * time.Second,
		Annotation: experiment.AnnotationNone,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSinkFinalize(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, "session", []string{"Ana", "Ben"}, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "session.csv.partial"), sink.Path())

	require.NoError(t, sink.Write(record(t, 1, "img/UniformGrey_12in.JPG")))
	require.NoError(t, sink.Write(record(t, 2, "img/RedGreen_12in_3.9_left.JPG")))
	require.NoError(t, sink.Finalize())

	final := filepath.Join(dir, "session.csv")
	assert.Equal(t, final, sink.Path())
	_, err = os.Stat(filepath.Join(dir, "session.csv.partial"))
	assert.True(t, os.IsNotExist(err))

	rows := readCSV(t, final)
	require.Len(t, rows, 5)
	assert.Equal(t, ScorerColumn, rows[0][0])
	assert.Equal(t, experiment.Columns(), rows[0][1:])
	assert.Equal(t, []string{"Ana", "1"}, rows[1][:2])
	assert.Equal(t, []string{"Ben", "1"}, rows[2][:2])
	assert.Equal(t, "3/9 Red 6/9 Green", rows[3][5])
	assert.Equal(t, "NONE", rows[4][10])

	assert.ErrorIs(t, sink.Write(record(t, 3, "img/UniformGrey_12in.JPG")), ErrClosed)
	assert.ErrorIs(t, sink.Abort(), ErrClosed)
}

func TestCSVSinkNoScorers(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, "solo", nil, true)
	require.NoError(t, err)
	require.NoError(t, sink.Write(record(t, 1, "img/UniformGrey_12in.JPG")))
	require.NoError(t, sink.Finalize())

	rows := readCSV(t, sink.Path())
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[1][0])
}

func TestCSVSinkAbortKeepsData(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, "session", []string{"Ana"}, true)
	require.NoError(t, err)
	require.NoError(t, sink.Write(record(t, 1, "img/UniformGrey_12in.JPG")))
	require.NoError(t, sink.Abort())

	assert.Equal(t, filepath.Join(dir, "session_aborted.csv"), sink.Path())
	assert.Len(t, readCSV(t, sink.Path()), 2)
}

func TestCSVSinkAbortDiscards(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, "session", []string{"Ana"}, false)
	require.NoError(t, err)
	require.NoError(t, sink.Write(record(t, 1, "img/UniformGrey_12in.JPG")))
	require.NoError(t, sink.Abort())

	assert.Empty(t, sink.Path())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCSVSinkAbortAfterCloseFailureKeepsPartial(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, "session", []string{"Ana"}, false)
	require.NoError(t, err)
	require.NoError(t, sink.Write(record(t, 1, "img/UniformGrey_12in.JPG")))

	partial := filepath.Join(dir, "session.csv.partial")
	require.NoError(t, sink.file.Close())

	err = sink.Abort()
	require.Error(t, err)
	assert.Contains(t, err.Error(), partial)
	assert.Equal(t, partial, sink.Path())
	assert.Len(t, readCSV(t, partial), 2)

	assert.ErrorIs(t, sink.Abort(), ErrClosed)
}

func TestCSVSinkDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		sink, err := NewCSVSink(dir, "session", nil, true)
		require.NoError(t, err)
		require.NoError(t, sink.Finalize())
	}
	assert.FileExists(t, filepath.Join(dir, "session.csv"))
	assert.FileExists(t, filepath.Join(dir, "session_1.csv"))
}

func testSession(participant string) session.Info {
	return session.New(participant, session.KindBehavioralTraining,
		time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC), []string{"Ana"})
}

func TestSQLiteSinkLifecycle(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "db", "randomizer.db"))
	require.NoError(t, err)
	defer store.Close()

	info := testSession("P01")
	sink, err := store.BeginSession(info, "Perceptual Balance Task")
	require.NoError(t, err)
	assert.Equal(t, info.ID, sink.SessionID())

	row, err := store.Session(info.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, row.Status)
	assert.True(t, row.EndedAt.IsZero())

	require.NoError(t, sink.Write(record(t, 1, "img/UniformGrey_12in.JPG")))
	require.NoError(t, sink.Write(record(t, 2, "img/RedGreen_12in_3.9_right.JPG")))
	require.NoError(t, sink.Finalize())

	row, err = store.Session(info.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, row.Status)
	assert.Equal(t, "P01", row.Participant)
	assert.Equal(t, "2026-OCT-17", row.Date)
	assert.Equal(t, "PerceptualBalanceTask-PIDP01-BehavioralTraining_2026OCT17", row.FileName)
	assert.False(t, row.EndedAt.IsZero())

	trials, err := store.Trials(info.ID)
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.Equal(t, 1, trials[0].Trial)
	assert.Equal(t, "right", trials[1].Orientation)
	assert.Equal(t, "6/9 Green 3/9 Red", trials[1].ObjectInfo)
	assert.InDelta(t, 1.0, trials[1].Duration, 1e-9)

	assert.ErrorIs(t, sink.Abort(), ErrClosed)
}

func TestSQLiteSinkAbortAndListing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "randomizer.db")
	store, err := OpenStore(path)
	require.NoError(t, err)

	first, err := store.BeginSession(testSession("P01"), "Task")
	require.NoError(t, err)
	require.NoError(t, first.Write(record(t, 1, "img/UniformGrey_12in.JPG")))
	require.NoError(t, first.Abort())

	second, err := store.BeginSession(testSession("P02"), "Task")
	require.NoError(t, err)
	require.NoError(t, second.Finalize())
	require.NoError(t, store.Close())

	reopened, err := OpenStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	sessions, err := reopened.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "P02", sessions[0].Participant)
	assert.Equal(t, StatusAborted, sessions[1].Status)

	trials, err := reopened.Trials(first.SessionID())
	require.NoError(t, err)
	assert.Len(t, trials, 1)

	_, err = reopened.Session("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

type countingSink struct {
	writes  []int
	final   int
	aborted int
	err     error
}

func (c *countingSink) Write(r experiment.TrialRecord) error {
	c.writes = append(c.writes, r.Trial)
	return c.err
}
func (c *countingSink) Finalize() error { c.final++; return c.err }
func (c *countingSink) Abort() error    { c.aborted++; return c.err }

func TestMultiSink(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	multi := NewMultiSink(a, b)
	assert.Equal(t, 2, multi.Len())

	for i := 1; i <= 3; i++ {
		require.NoError(t, multi.Write(record(t, i, "img/UniformGrey_12in.JPG")))
	}
	require.NoError(t, multi.Finalize())

	assert.Equal(t, []int{1, 2, 3}, a.writes)
	assert.Equal(t, []int{1, 2, 3}, b.writes)
	assert.Equal(t, 1, a.final)
	assert.Equal(t, 1, b.final)
}

func TestMultiSinkErrorStillReachesAll(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countingSink{err: boom}, &countingSink{}
	multi := NewMultiSink(a, b)

	assert.ErrorIs(t, multi.Abort(), boom)
	assert.Equal(t, 1, a.aborted)
	assert.Equal(t, 1, b.aborted)
}

func TestSequencerWithSinks(t *testing.T) {
	dir := t.TempDir()
	csvSink, err := NewCSVSink(dir, "run", []string{"Ana"}, true)
	require.NoError(t, err)
	store, err := OpenStore(filepath.Join(dir, "randomizer.db"))
	require.NoError(t, err)
	defer store.Close()
	info := testSession("P09")
	dbSink, err := store.BeginSession(info, "Task")
	require.NoError(t, err)

	catalog, err := stimulus.ParseCatalog([]string{
		"img/UniformGrey_12in.JPG",
		"img/RedGreen_12in_3.9_left.JPG",
		"img/RedGreen_12in_3.9_right.JPG",
	})
	require.NoError(t, err)
	seq, err := experiment.New(catalog, 2, NewMultiSink(csvSink, dbSink))
	require.NoError(t, err)

	for !seq.IsExperimentComplete() {
		require.NoError(t, seq.AdvanceRound())
		require.NoError(t, seq.AdvanceStimulus(experiment.AnnotationNone))
		for !seq.IsRoundComplete() {
			require.NoError(t, seq.AdvanceStimulus(experiment.AnnotationViolationFirstGrasp))
		}
	}
	require.NoError(t, seq.Finish())

	assert.Len(t, readCSV(t, filepath.Join(dir, "run.csv")), 5)
	trials, err := store.Trials(info.ID)
	require.NoError(t, err)
	require.Len(t, trials, 4)
	for i, tr := range trials {
		assert.Equal(t, i+1, tr.Trial)
		assert.Equal(t, "Grasp #1", tr.Violation)
	}
}
