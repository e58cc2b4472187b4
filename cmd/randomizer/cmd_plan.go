package main

import (
	"fmt"
	"io"
	"strings"

	"randomizer/internal/pairing"
	"randomizer/internal/stimulus"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// planCmd prints the schedule a seed produces
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the stimulus schedule for a seed",
	Long: `Draws the flipped and unflipped sets and every round's presentation order
exactly as a session with the same seed and catalog would, without running
one. Use the seed printed at the end of a session to reproduce its schedule.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().Int64Var(&seedFlag, "seed", 0, "Random seed (0 = from the clock)")
	planCmd.Flags().BoolVar(&debugFlag, "debug", false, "Use the debug round count")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	catalog, err := stimulus.LoadCatalogFile(cfg.Experiment.StimuliFile)
	if err != nil {
		return err
	}

	seed := resolveSeed(cfg.Experiment.Seed)
	rng := pairing.NewRand(seed)
	sets, err := pairing.Build(catalog, rng)
	if err != nil {
		return err
	}
	logger.Debug("sets drawn", zap.Int64("seed", seed), zap.Int("per_round", sets.PerRound()))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Seed: %d\n", seed)
	fmt.Fprintf(out, "Catalog: %s (%d uniform, %d left, %d right)\n",
		cfg.Experiment.StimuliFile, len(catalog.Uniform), len(catalog.Left), len(catalog.Right))

	printSet(out, "Unflipped (odd rounds)", sets.Unflipped)
	printSet(out, "Flipped (even rounds)", sets.Flipped)

	for round := 1; round <= cfg.EffectiveRounds(); round++ {
		printSet(out, fmt.Sprintf("Round %d", round), pairing.Shuffle(sets.ForRound(round), rng))
	}
	return nil
}

func printSet(out io.Writer, title string, objects []stimulus.Object) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, strings.Repeat("─", 50))
	for i, o := range objects {
		fmt.Fprintf(out, "  %2d. %-40s %s\n", i+1, o.Identifier, o.Info())
	}
}
