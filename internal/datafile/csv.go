package datafile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"randomizer/internal/experiment"
	"randomizer/internal/logging"

	"go.uber.org/zap"
)

// ErrClosed is returned when a sink is used after Finalize or Abort.
var ErrClosed = errors.New("sink already closed")

// ScorerColumn precedes the record columns in CSV output.
const ScorerColumn = "Scorer Name"

const (
	csvExt      = ".csv"
	partialExt  = ".csv.partial"
	abortSuffix = "_aborted"
)

// CSVSink writes one row per trial per scorer. Rows go to a ".partial" file
// that is flushed after every trial; Finalize renames it to "<name>.csv",
// Abort to "<name>_aborted.csv" (or removes it when aborted files are not
// kept).
type CSVSink struct {
	mu          sync.Mutex
	dir         string
	name        string
	scorers     []string
	keepAborted bool
	file        *os.File
	w           *csv.Writer
	closed      bool
	path        string
}

// NewCSVSink creates dir if needed and writes the header row.
func NewCSVSink(dir, name string, scorers []string, keepAborted bool) (*CSVSink, error) {
	if name == "" {
		return nil, fmt.Errorf("csv sink needs a file name")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	partial := filepath.Join(dir, name+partialExt)
	file, err := os.Create(partial)
	if err != nil {
		return nil, fmt.Errorf("failed to create data file: %w", err)
	}

	if len(scorers) == 0 {
		scorers = []string{""}
	}
	s := &CSVSink{
		dir:         dir,
		name:        name,
		scorers:     append([]string(nil), scorers...),
		keepAborted: keepAborted,
		file:        file,
		w:           csv.NewWriter(file),
		path:        partial,
	}

	header := append([]string{ScorerColumn}, experiment.Columns()...)
	if err := s.writeRows([][]string{header}); err != nil {
		file.Close()
		os.Remove(partial)
		return nil, err
	}
	return s, nil
}

// Path returns the current location of the data file: the partial file while
// the session runs, the final file afterwards, or "" if it was removed.
func (s *CSVSink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Write appends the record once for every scorer.
func (s *CSVSink) Write(r experiment.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	fields := r.Fields()
	rows := make([][]string, 0, len(s.scorers))
	for _, scorer := range s.scorers {
		rows = append(rows, append([]string{scorer}, fields...))
	}
	return s.writeRows(rows)
}

// Finalize closes the file and gives it its final name.
func (s *CSVSink) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.close(); err != nil {
		return s.leftBehind(err)
	}
	return s.moveTo(s.name)
}

// Abort closes the file and marks it as aborted, or removes it.
func (s *CSVSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.close(); err != nil {
		return s.leftBehind(err)
	}
	if !s.keepAborted {
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("failed to remove aborted data file: %w", err)
		}
		logging.Get(logging.CategoryDatafile).Info("aborted data file removed", zap.String("path", s.path))
		s.path = ""
		return nil
	}
	return s.moveTo(s.name + abortSuffix)
}

// leftBehind reports a failed close. The partial file stays where it is and
// its path is logged and returned so the rows can be recovered by hand.
func (s *CSVSink) leftBehind(err error) error {
	if errors.Is(err, ErrClosed) {
		return err
	}
	logging.Get(logging.CategoryDatafile).Error("data file left as partial",
		zap.String("path", s.path),
		zap.Error(err))
	return fmt.Errorf("%w (rows kept in %s)", err, s.path)
}

func (s *CSVSink) writeRows(rows [][]string) error {
	if err := s.w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	return nil
}

func (s *CSVSink) close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to flush data file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close data file: %w", err)
	}
	return nil
}

// moveTo renames the partial file to base+".csv", adding a numeric suffix
// instead of overwriting an earlier session's file.
func (s *CSVSink) moveTo(base string) error {
	target := filepath.Join(s.dir, base+csvExt)
	for n := 1; fileExists(target); n++ {
		target = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", base, n, csvExt))
	}
	if err := os.Rename(s.path, target); err != nil {
		return fmt.Errorf("failed to rename data file: %w", err)
	}
	logging.Get(logging.CategoryDatafile).Info("data file written", zap.String("path", target))
	s.path = target
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
