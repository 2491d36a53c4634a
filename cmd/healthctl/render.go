package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/p-blackswan/project-health/internal/engine"
	"github.com/p-blackswan/project-health/internal/models"
)

var (
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func severityColor(s models.Severity) func(a ...interface{}) string {
	switch s {
	case models.SeverityCritical, models.SeverityHigh:
		return red
	case models.SeverityMedium:
		return yellow
	default:
		return gray
	}
}

func printSummary(w io.Writer, res *engine.CycleResult) {
	fmt.Fprintf(w, "\n%s\n", cyan("=== Project Health ==="))
	if res.Metrics == nil {
		return
	}
	s := res.Metrics.Summary
	fmt.Fprintf(w, "Projects: %d  %s  %s  %s\n", s.TotalProjects,
		green(fmt.Sprintf("on track %d", s.OnTrack)),
		yellow(fmt.Sprintf("at risk %d", s.AtRisk)),
		red(fmt.Sprintf("behind %d", s.Behind)))
	fmt.Fprintf(w, "Average completion: %.1f%%\n\n", s.AverageCompletion)

	names := make([]string, 0, len(res.Metrics.Projects))
	for name := range res.Metrics.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pm := res.Metrics.Projects[name]
		if pm.Degraded() {
			fmt.Fprintf(w, "  %s %s: %s\n", red("✗"), name, pm.Issue)
			continue
		}
		mark := green("●")
		if pm.DaysBehind > 0 {
			mark = yellow("⚠")
		}
		fmt.Fprintf(w, "  %s %-24s %5.1f%%  tasks %d/%d  blocked %d  overdue %d  days behind %d\n",
			mark, name, pm.CompletionPercentage, pm.CompletedTasks, pm.TotalTasks,
			pm.BlockedTasks, pm.OverdueTasks, pm.DaysBehind)
	}
}

func printWarnings(w io.Writer, res *engine.CycleResult) {
	if len(res.Warnings) == 0 && len(res.Errors) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", yellow("Warnings:"))
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  %s\n", warn.String())
	}
	for _, pe := range res.Errors {
		fmt.Fprintf(w, "  %s\n", red(pe.Error()))
	}
}

func printAlerts(w io.Writer, list []models.Alert) {
	fmt.Fprintf(w, "\n%s\n", cyan(fmt.Sprintf("Alerts (%d):", len(list))))
	if len(list) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No alerts"))
		return
	}
	for _, a := range list {
		c := severityColor(a.Severity)
		fmt.Fprintf(w, "  %s %s: %s\n", c(fmt.Sprintf("[%-8s]", a.Severity)), a.ProjectName, a.Title)
		if a.Description != "" {
			fmt.Fprintf(w, "    %s\n", a.Description)
		}
	}
}

func printRecommendations(w io.Writer, list []models.Recommendation) {
	fmt.Fprintf(w, "\n%s\n", cyan(fmt.Sprintf("Recommendations (%d):", len(list))))
	if len(list) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No overloaded weeks"))
		return
	}
	for _, r := range list {
		fmt.Fprintf(w, "  %s week of %s: %d tasks\n", r.Owner, r.PeriodStart.Format("2006-01-02"), r.TaskCount)
		for _, t := range r.ReschedulableTasks {
			fmt.Fprintf(w, "    → defer %s (%s) from %s to %s\n", t.TaskName, t.Priority,
				t.CurrentDueDate.Format("2006-01-02"), t.SuggestedDueDate.Format("2006-01-02"))
		}
		fmt.Fprintf(w, "    %s\n", gray(r.Reason))
	}
}
