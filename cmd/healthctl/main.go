package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/project-health/internal/alerts"
	"github.com/p-blackswan/project-health/internal/analyzer"
	"github.com/p-blackswan/project-health/internal/calculator"
	"github.com/p-blackswan/project-health/internal/engine"
	"github.com/p-blackswan/project-health/internal/history"
	"github.com/p-blackswan/project-health/internal/reschedule"
	"github.com/p-blackswan/project-health/internal/source"
)

var (
	projectsFile string
	jsonOutput   bool
	verbose      bool
	timeout      time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "healthctl",
	Short: "Analyse project health from a projects file",
	Long: `healthctl runs one monitoring cycle against a YAML or JSON projects
document and prints metrics, alerts and rescheduling recommendations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectsFile, "file", "f", "projects.yaml", "projects document (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "cycle deadline")

	rootCmd.AddCommand(analyzeCmd, alertsCmd, recommendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCycle loads the projects file and analyses it once.
func runCycle(ctx context.Context) (*engine.CycleResult, error) {
	logger := zerolog.Nop()
	if verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	src := &source.FileSource{Path: projectsFile}
	projects, warnings, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	calc := calculator.New(logger)
	eng := engine.New(
		calc,
		alerts.NewGenerator(alerts.DefaultConfig(), logger),
		reschedule.New(logger),
		analyzer.New(history.New(history.DefaultLimit), calc, logger),
		logger,
	)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := eng.RunCycle(ctx, projects)
	if err != nil {
		return nil, fmt.Errorf("running cycle: %w", err)
	}
	res.Warnings = warnings
	return res, nil
}
