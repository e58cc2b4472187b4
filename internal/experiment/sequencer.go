package experiment

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"randomizer/internal/logging"
	"randomizer/internal/pairing"
	"randomizer/internal/stimulus"

	"go.uber.org/zap"
)

// ErrInvalidStateTransition is returned when an operation is called in a
// state that does not allow it.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// Sink receives the records of finished trials. Write is called once per
// trial in trial order; exactly one of Finalize or Abort ends the session.
type Sink interface {
	Write(TrialRecord) error
	Finalize() error
	Abort() error
}

// State is the coarse phase of the experiment.
type State int

const (
	StateNotStarted State = iota
	StateInRound
	StateRoundComplete
	StateExperimentComplete
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateInRound:
		return "in-round"
	case StateRoundComplete:
		return "round-complete"
	case StateExperimentComplete:
		return "experiment-complete"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome records how the session ended.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeFinished
	OutcomeAborted
)

// position replaces a -1 "nothing shown yet" index with an explicit tag.
type position struct {
	presenting bool
	index      int
}

// Info is the display-ready progress of the current trial.
type Info struct {
	Round   int
	Rounds  int
	Object  int
	Objects int
	Trial   int
	Trials  int
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock sets the clock used for trial timestamps.
func WithClock(c Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithRand sets the random source used for pairing and per-round shuffles.
func WithRand(r *rand.Rand) Option {
	return func(s *Sequencer) { s.rng = r }
}

// Sequencer owns the state of one experiment.
type Sequencer struct {
	rounds   int
	perRound int
	sets     pairing.RoundSets
	sink     Sink
	clock    Clock
	rng      *rand.Rand
	log      *zap.Logger

	round      int
	pos        position
	order      []stimulus.Object
	trialStart time.Duration
	trialEnd   time.Duration
	violation  Annotation
	outcome    Outcome
}

// New pairs the catalog and returns a Sequencer for the given number of
// rounds. Pairing failures are returned unchanged so callers can match them
// with errors.Is.
func New(catalog stimulus.Catalog, rounds int, sink Sink, opts ...Option) (*Sequencer, error) {
	if rounds <= 0 {
		return nil, fmt.Errorf("round count must be positive, got %d", rounds)
	}
	if sink == nil {
		return nil, fmt.Errorf("trial record sink required")
	}

	s := &Sequencer{
		rounds:    rounds,
		sink:      sink,
		violation: AnnotationNone,
		log:       logging.Get(logging.CategorySequencer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = pairing.NewRand(0)
	}

	sets, err := pairing.Build(catalog, s.rng)
	if err != nil {
		return nil, err
	}
	s.sets = sets
	s.perRound = sets.PerRound()

	if s.clock == nil {
		s.clock = NewClock()
	}

	s.log.Info("experiment constructed",
		zap.Int("rounds", rounds),
		zap.Int("per_round", s.perRound))
	return s, nil
}

// Rounds returns the configured number of rounds.
func (s *Sequencer) Rounds() int { return s.rounds }

// PerRound returns the number of stimuli in each round.
func (s *Sequencer) PerRound() int { return s.perRound }

// Round returns the current 1-based round, or 0 before the first round.
func (s *Sequencer) Round() int { return s.round }

// Sets returns the complementary round sets built at construction.
func (s *Sequencer) Sets() pairing.RoundSets { return s.sets }

// Order returns a copy of the current round's presentation order.
func (s *Sequencer) Order() []stimulus.Object {
	return append([]stimulus.Object(nil), s.order...)
}

// Outcome reports whether the session is still running, finished or aborted.
func (s *Sequencer) Outcome() Outcome { return s.outcome }

// State returns the current phase.
func (s *Sequencer) State() State {
	switch {
	case s.outcome != OutcomeRunning:
		return StateEnded
	case s.round == 0:
		return StateNotStarted
	case !s.IsRoundComplete():
		return StateInRound
	case s.IsExperimentComplete():
		return StateExperimentComplete
	default:
		return StateRoundComplete
	}
}

// IsExperimentComplete reports whether the last round has been started.
// Together with IsRoundComplete it tells the driver the session is over.
func (s *Sequencer) IsExperimentComplete() bool {
	return s.round >= s.rounds
}

// IsRoundComplete reports whether every stimulus of the current round has
// been presented and closed.
func (s *Sequencer) IsRoundComplete() bool {
	return s.pos.presenting && s.pos.index >= s.perRound
}

// AdvanceRound starts the next round: the set for the new round's parity is
// selected and given a fresh random presentation order.
func (s *Sequencer) AdvanceRound() error {
	switch {
	case s.outcome != OutcomeRunning:
		return fmt.Errorf("%w: experiment has ended", ErrInvalidStateTransition)
	case s.IsExperimentComplete():
		return fmt.Errorf("%w: all %d rounds have been started", ErrInvalidStateTransition, s.rounds)
	case s.round > 0 && !s.IsRoundComplete():
		return fmt.Errorf("%w: round %d is still in progress", ErrInvalidStateTransition, s.round)
	}

	s.round++
	s.pos = position{}
	s.order = pairing.Shuffle(s.sets.ForRound(s.round), s.rng)

	s.log.Info("round started", zap.Int("round", s.round))
	return nil
}

// AdvanceStimulus closes the trial on screen, if any, with the given
// annotation and emits its record, then moves to the next stimulus.
func (s *Sequencer) AdvanceStimulus(annotation Annotation) error {
	switch {
	case s.outcome != OutcomeRunning:
		return fmt.Errorf("%w: experiment has ended", ErrInvalidStateTransition)
	case s.round == 0:
		return fmt.Errorf("%w: no round has been started", ErrInvalidStateTransition)
	case s.IsRoundComplete():
		return fmt.Errorf("%w: round %d is complete", ErrInvalidStateTransition, s.round)
	}

	now := s.clock.Elapsed()
	if s.pos.presenting {
		s.trialEnd = now
		s.violation = annotation.Normalize()
		record := s.currentRecord()
		if err := s.sink.Write(record); err != nil {
			return fmt.Errorf("failed to write trial %d: %w", record.Trial, err)
		}
		s.log.Debug("trial recorded",
			zap.Int("trial", record.Trial),
			zap.String("stimulus", record.Stimulus.Identifier),
			zap.Duration("duration", record.Duration()),
			zap.String("violation", record.Annotation.Marker()))
		s.pos.index++
	} else {
		s.pos = position{presenting: true}
	}
	s.trialStart = now
	return nil
}

// TrialNumber is the 1-based trial number across the whole experiment.
func (s *Sequencer) TrialNumber() int {
	index := -1
	if s.pos.presenting {
		index = s.pos.index
	}
	return (s.round-1)*s.perRound + index + 1
}

// CurrentStimulus returns the stimulus on screen.
func (s *Sequencer) CurrentStimulus() (stimulus.Object, error) {
	if !s.pos.presenting {
		return stimulus.Object{}, fmt.Errorf("%w: no stimulus presented yet", ErrInvalidStateTransition)
	}
	if s.pos.index >= len(s.order) {
		return stimulus.Object{}, fmt.Errorf("%w: round %d is complete", ErrInvalidStateTransition, s.round)
	}
	return s.order[s.pos.index], nil
}

// Info returns progress counters for the trial header.
func (s *Sequencer) Info() Info {
	object := 0
	if s.pos.presenting {
		object = s.pos.index + 1
	}
	return Info{
		Round:   s.round,
		Rounds:  s.rounds,
		Object:  object,
		Objects: s.perRound,
		Trial:   s.TrialNumber(),
		Trials:  s.rounds * s.perRound,
	}
}

// Finish ends a completed experiment and finalizes the sink.
func (s *Sequencer) Finish() error {
	if s.outcome != OutcomeRunning {
		return fmt.Errorf("%w: experiment has already ended", ErrInvalidStateTransition)
	}
	if !s.IsExperimentComplete() || !s.IsRoundComplete() {
		return fmt.Errorf("%w: experiment is not complete, abort instead", ErrInvalidStateTransition)
	}
	s.outcome = OutcomeFinished
	s.log.Info("experiment finished", zap.Int("trials", s.rounds*s.perRound))
	if err := s.sink.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize trial records: %w", err)
	}
	return nil
}

// Abort ends the experiment early. Records already written stay with the
// sink, which decides how to keep them.
func (s *Sequencer) Abort() error {
	if s.outcome != OutcomeRunning {
		return fmt.Errorf("%w: experiment has already ended", ErrInvalidStateTransition)
	}
	s.outcome = OutcomeAborted
	s.log.Warn("experiment aborted",
		zap.Int("round", s.round),
		zap.Int("trial", s.TrialNumber()))
	if err := s.sink.Abort(); err != nil {
		return fmt.Errorf("failed to abort trial records: %w", err)
	}
	return nil
}

func (s *Sequencer) currentRecord() TrialRecord {
	return TrialRecord{
		Trial:      s.TrialNumber(),
		Round:      s.round,
		Object:     s.pos.index + 1,
		Stimulus:   s.order[s.pos.index],
		Start:      s.trialStart,
		End:        s.trialEnd,
		Annotation: s.violation,
	}
}
