package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/project-health/internal/models"
)

var minSeverity string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print metrics, alerts and recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := runCycle(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, res)
		}
		printSummary(out, res)
		printWarnings(out, res)
		printAlerts(out, res.Alerts)
		printRecommendations(out, res.Recommendations)
		return nil
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Print alerts at or above a severity",
	RunE: func(cmd *cobra.Command, args []string) error {
		sev, ok := models.ParseSeverity(minSeverity)
		if !ok {
			return fmt.Errorf("invalid --min-severity %q", minSeverity)
		}
		res, err := runCycle(cmd.Context())
		if err != nil {
			return err
		}
		list := filterAlerts(res.Alerts, sev)
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), list)
		}
		printAlerts(cmd.OutOrStdout(), list)
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print workload rescheduling recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := runCycle(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res.Recommendations)
		}
		printRecommendations(cmd.OutOrStdout(), res.Recommendations)
		return nil
	},
}

func init() {
	alertsCmd.Flags().StringVar(&minSeverity, "min-severity", "info", "lowest severity to print")
}

func filterAlerts(list []models.Alert, min models.Severity) []models.Alert {
	out := []models.Alert{}
	for _, a := range list {
		if a.Severity.AtLeast(min) {
			out = append(out, a)
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
