package main

import (
	"errors"
	"fmt"
	"time"

	"randomizer/cmd/randomizer/ui"
	"randomizer/internal/config"
	"randomizer/internal/datafile"
	"randomizer/internal/experiment"
	"randomizer/internal/logging"
	"randomizer/internal/pairing"
	"randomizer/internal/session"
	"randomizer/internal/stimulus"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var (
	participantID string
	sessionKind   string
	sessionDate   string
	scorerNames   []string
	seedFlag      int64
	debugFlag     bool
)

// runCmd runs an experimenter session
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a session with a participant",
	Long: `Runs an interactive session: the experimenter is shown each stimulus in
turn and marks when the participant is done with it, or that a precision
grasp was missed.

Keys:
  space   continue past the instructions
  →       done with the object / start the round / confirm a grasp warning
  1 2 3   precision grasp missed on the first, second or both grasps
  return  revert within the confirmation window
  i       review the instructions between rounds
  esc     abort the session

Example:
  randomizer run --participant 014 --session "MRI-Part 1" --scorer Ana --scorer Ben`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVarP(&participantID, "participant", "p", "", "Participant ID (required)")
	runCmd.Flags().StringVarP(&sessionKind, "session", "s", string(session.KindBehavioralTraining),
		"Session kind: BehavioralTraining, MRI-Part 1, MRI-Part 2")
	runCmd.Flags().StringVar(&sessionDate, "date", "", "Session date as YYYY-MM-DD (default: today)")
	runCmd.Flags().StringArrayVar(&scorerNames, "scorer", nil, "Scorer name, repeatable (default: scoring.scorers)")
	runCmd.Flags().Int64Var(&seedFlag, "seed", 0, "Random seed (0 = from the clock)")
	runCmd.Flags().BoolVar(&debugFlag, "debug", false, "Short session written to the debug directory")
	_ = runCmd.MarkFlagRequired("participant")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	log := logging.Get(logging.CategorySession)

	catalog, err := stimulus.LoadCatalogFile(cfg.Experiment.StimuliFile)
	if err != nil {
		return err
	}

	info, err := sessionInfo(cfg)
	if err != nil {
		return err
	}
	name := info.FileName(cfg.Experiment.Name)

	sink, closeSinks, err := openSinks(cfg, info, name)
	if err != nil {
		return err
	}
	defer closeSinks()

	seed := resolveSeed(cfg.Experiment.Seed)
	log.Info("session starting",
		zap.String("session", info.ID),
		zap.String("file", name),
		zap.Int64("seed", seed),
		zap.Int("rounds", cfg.EffectiveRounds()))

	seq, err := experiment.New(catalog, cfg.EffectiveRounds(), sink,
		experiment.WithRand(pairing.NewRand(seed)))
	if err != nil {
		return errors.Join(err, sink.Abort())
	}

	_, runErr := ui.Run(seq, ui.Options{
		Title:  cfg.Experiment.Name,
		Output: cfg.OutputDir(),
		Timing: ui.Timing{
			TrialConfirm: cfg.GetTrialConfirm(),
			RoundConfirm: cfg.GetRoundConfirm(),
			Notice:       cfg.GetNotice(),
			Concluding:   cfg.GetConcluding(),
		},
	})
	if seq.Outcome() == experiment.OutcomeRunning {
		// The program was killed before the driver could end the session.
		runErr = errors.Join(runErr, seq.Abort())
	}

	out := cmd.OutOrStdout()
	switch seq.Outcome() {
	case experiment.OutcomeFinished:
		fmt.Fprintf(out, "Session %s complete (%d trials).\n", info.ID, seq.Rounds()*seq.PerRound())
	default:
		fmt.Fprintf(out, "Session %s aborted.\n", info.ID)
	}
	fmt.Fprintf(out, "Seed: %d\n", seed)
	return runErr
}

// sessionInfo assembles the participant session from flags and config.
func sessionInfo(cfg *config.Config) (session.Info, error) {
	kind, err := session.ParseKind(sessionKind)
	if err != nil {
		return session.Info{}, err
	}

	date := time.Now()
	if sessionDate != "" {
		date, err = time.Parse(dateLayout, sessionDate)
		if err != nil {
			return session.Info{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", session.ErrInvalidSession, sessionDate)
		}
	}

	scorers := scorerNames
	if len(scorers) == 0 {
		scorers = cfg.Scoring.Scorers
	}

	info := session.New(participantID, kind, date, scorers)
	if err := info.Validate(); err != nil {
		return session.Info{}, err
	}
	return info, nil
}

// openSinks builds one sink per configured output format. The returned
// func releases resources held by the sinks and is safe to call once the
// session has ended.
func openSinks(cfg *config.Config, info session.Info, name string) (experiment.Sink, func(), error) {
	var sinks []experiment.Sink
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	abortAll := func() {
		for _, s := range sinks {
			_ = s.Abort()
		}
		closeAll()
	}

	if cfg.HasFormat(config.FormatCSV) {
		csvSink, err := datafile.NewCSVSink(cfg.OutputDir(), name, info.Scorers, cfg.Output.KeepAborted)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, csvSink)
	}

	if cfg.HasFormat(config.FormatSQLite) {
		store, err := datafile.OpenStore(cfg.DatabaseFile())
		if err != nil {
			abortAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = store.Close() })

		sqliteSink, err := store.BeginSession(info, cfg.Experiment.Name)
		if err != nil {
			abortAll()
			return nil, nil, err
		}
		sinks = append(sinks, sqliteSink)
	}

	return datafile.NewMultiSink(sinks...), closeAll, nil
}

func resolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}
