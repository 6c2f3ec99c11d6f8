package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dispatchd/dispatch/internal/state"
	"github.com/dispatchd/dispatch/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last persisted engine state",
	Long: `Display the task table from the most recent snapshot.

Shows each task's state, priority, assignee, and dependency edges,
followed by per-state totals.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.State.Path); os.IsNotExist(err) {
		fmt.Println("No saved state. Run 'dispatch run' to start the engine.")
		return nil
	}

	db, err := state.Open(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state database: %w", err)
	}

	tasks, err := db.LoadTasks()
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks recorded.")
		return nil
	}

	fmt.Printf("Tasks (%d):\n", len(tasks))
	for _, task := range tasks {
		displayTask(task)
	}

	counts, err := db.CountByStatus()
	if err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}
	fmt.Println()
	displayCounts(counts)
	return nil
}

func displayTask(task *models.Task) {
	line := fmt.Sprintf("  %-12s %-11s %-8s %q", task.ID, colorState(task.Status), task.Priority, task.Title)
	fmt.Println(line)

	var details []string
	if task.AssignedTo != "" {
		details = append(details, "worker="+task.AssignedTo)
	}
	if len(task.DependsOn) > 0 {
		details = append(details, "after="+strings.Join(task.DependsOn, ","))
	}
	if task.Attempts > 1 {
		details = append(details, fmt.Sprintf("attempt=%d", task.Attempts))
	}
	if last := lastChange(task); last != "" {
		details = append(details, last)
	}
	if len(details) > 0 {
		fmt.Printf("               %s\n", strings.Join(details, "  "))
	}
}

func lastChange(task *models.Task) string {
	if len(task.History) == 0 {
		return ""
	}
	ts := task.History[len(task.History)-1].Timestamp
	return "since " + formatAge(time.Since(ts))
}

func displayCounts(counts map[models.TaskState]int) {
	order := []models.TaskState{
		models.TaskStatePending,
		models.TaskStateAssigned,
		models.TaskStateInProgress,
		models.TaskStateCompleted,
		models.TaskStateFailed,
	}
	var parts []string
	for _, st := range order {
		if counts[st] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[st], st))
		}
	}
	fmt.Println("Totals: " + strings.Join(parts, ", "))
}

func colorState(st models.TaskState) string {
	switch st {
	case models.TaskStateCompleted:
		return color.GreenString(string(st))
	case models.TaskStateFailed:
		return color.RedString(string(st))
	case models.TaskStateAssigned, models.TaskStateInProgress:
		return color.YellowString(string(st))
	default:
		return string(st)
	}
}

// formatAge formats a duration in a human-readable way.
func formatAge(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
