package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"randomizer/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCatalog bool

// checkCmd validates a stimulus catalog
var checkCmd = &cobra.Command{
	Use:   "check [stimuli.csv]",
	Short: "Validate a stimulus catalog",
	Long: `Parses every identifier in the catalog and checks that each oriented
object has a complement, so a session can be started with it.

With --watch, the catalog is checked again every time it is saved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVarP(&watchCatalog, "watch", "w", false, "Re-check whenever the file changes")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.Experiment.StimuliFile
	if len(args) == 1 {
		path = args[0]
	}

	out := cmd.OutOrStdout()
	report := watch.Check(path)
	printReport(out, report)

	if !watchCatalog {
		if !report.OK() {
			return fmt.Errorf("catalog %s is not usable", path)
		}
		return nil
	}

	if err := initLogging(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchUntilDone(ctx, out, path)
}

// watchUntilDone re-checks path on every change until ctx is cancelled.
func watchUntilDone(ctx context.Context, out io.Writer, path string) error {
	cw, err := watch.NewCatalogWatcher(path, func(r watch.Report) {
		printReport(out, r)
	})
	if err != nil {
		return err
	}
	if err := cw.Start(ctx); err != nil {
		cw.Stop()
		return err
	}
	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", path)

	<-ctx.Done()
	cw.Stop()

	stats := cw.Stats()
	logger.Debug("watch stopped",
		zap.Int("events", stats.Events),
		zap.Int("checks", stats.Checks),
		zap.Int("errors", stats.Errors))
	return nil
}

func printReport(out io.Writer, r watch.Report) {
	stamp := r.At.Format("15:04:05")
	if !r.OK() {
		fmt.Fprintf(out, "[%s] ✗ %s: %v\n", stamp, r.Path, r.Err)
		return
	}
	fmt.Fprintf(out, "[%s] ✓ %s: %d objects (%d uniform, %d left, %d right), %d per round\n",
		stamp, r.Path, r.Catalog.Len(),
		len(r.Catalog.Uniform), len(r.Catalog.Left), len(r.Catalog.Right),
		r.Catalog.PerRound())
}
