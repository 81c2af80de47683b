package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/nbhdsim/app"
	"github.com/kilianp07/nbhdsim/config"
	"github.com/kilianp07/nbhdsim/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "nbhdsim",
	Short: "Neighborhood household battery simulator",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the neighborhood over MQTT and HTTP",
	RunE:  serve,
}

func init() {
	rootCmd.RunE = serve
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	path := cfgPath
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
