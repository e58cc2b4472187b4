package datafile

import (
	"randomizer/internal/experiment"

	"golang.org/x/sync/errgroup"
)

// MultiSink forwards every call to all of its sinks concurrently and waits
// for them. Each sink still sees its calls in order. The first error wins,
// but every sink is always called.
type MultiSink struct {
	sinks []experiment.Sink
}

// NewMultiSink returns a sink that fans out to sinks.
func NewMultiSink(sinks ...experiment.Sink) *MultiSink {
	return &MultiSink{sinks: append([]experiment.Sink(nil), sinks...)}
}

// Len returns the number of wrapped sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

func (m *MultiSink) Write(r experiment.TrialRecord) error {
	return m.each(func(s experiment.Sink) error { return s.Write(r) })
}

func (m *MultiSink) Finalize() error {
	return m.each(experiment.Sink.Finalize)
}

func (m *MultiSink) Abort() error {
	return m.each(experiment.Sink.Abort)
}

func (m *MultiSink) each(fn func(experiment.Sink) error) error {
	var g errgroup.Group
	for _, s := range m.sinks {
		s := s // per-iteration copy; module targets go 1.21 loop semantics
		g.Go(func() error { return fn(s) })
	}
	return g.Wait()
}
