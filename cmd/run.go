package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/nbhdsim/app"
	"github.com/kilianp07/nbhdsim/infra/logger"
	"github.com/kilianp07/nbhdsim/pkg/export"
)

var (
	runSteps    int
	runDuration int64
	runOut      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Step the neighborhood offline and export the history",
	RunE:  runOffline,
}

func init() {
	runCmd.Flags().IntVarP(&runSteps, "steps", "n", 0, "number of steps (default from config)")
	runCmd.Flags().Int64VarP(&runDuration, "duration", "d", 0, "resolution units per step (default from config)")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "export directory (default from config)")
	rootCmd.AddCommand(runCmd)
}

func runOffline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runSteps > 0 {
		cfg.Simulation.Steps = runSteps
	}
	if runDuration > 0 {
		cfg.Simulation.StepDuration = runDuration
	}
	if runOut != "" {
		cfg.Export.Dir = runOut
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	log := logger.New("run")
	svc.Collect(ctx)
	results, runErr := svc.Engine.Run(ctx, cfg.Simulation.StepDuration, cfg.Simulation.Steps)
	if err := svc.Close(); err != nil {
		log.Errorf("service close: %v", err)
	}
	if runErr != nil {
		log.Errorf("run stopped after %d steps: %v", len(results), runErr)
	}
	if len(results) == 0 {
		return runErr
	}

	paths, err := export.WriteFiles(cfg.Export.Dir, cfg.Simulation.NeighborhoodID+"-"+svc.Engine.RunID(), cfg.Export.Formats, results)
	if err != nil {
		return err
	}
	last := results[len(results)-1].Aggregate
	fmt.Fprintf(cmd.OutOrStdout(), "%d steps, energy balance %.3f kWh, mean soc %.3f\n",
		len(results), last.EnergyBalanceKWh, last.MeanSoC)
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return runErr
}
