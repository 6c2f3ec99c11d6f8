package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dispatchd/dispatch/internal/config"
	"github.com/dispatchd/dispatch/internal/orchestrator"
	"github.com/dispatchd/dispatch/internal/spool"
	"github.com/dispatchd/dispatch/internal/state"
	"github.com/dispatchd/dispatch/pkg/models"
)

var (
	runConfigPath string
	runDrain      bool
	runWorkTime   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine against the spool directory",
	Long: `Start the orchestration engine.

Workers come from the config file's workers list. Tasks already in
the spool directory are submitted on startup, and new files dropped
into it are submitted as they appear. Assignments are made whenever
a ready task and a capable idle worker exist.

Workers here are simulated: an assigned task runs for --work-time
and then completes. Wire real workers by driving the engine's
OnTaskStarted/OnTaskCompleted/OnTaskFailed callbacks instead.

With --drain the engine exits once every submitted task has settled:
completed, or failed with no retry pending.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to config file (default .dispatch.yaml)")
	runCmd.Flags().BoolVar(&runDrain, "drain", false, "Exit once all tasks are terminal")
	runCmd.Flags().DurationVar(&runWorkTime, "work-time", 500*time.Millisecond, "Simulated work duration per task")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Workers) == 0 {
		return fmt.Errorf("no workers configured; add a workers list to .dispatch.yaml")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	logger := orchestrator.NewDebugLoggerForDir(cwd)
	defer logger.Close()

	pool := orchestrator.NewStaticPool()
	for _, entry := range cfg.Workers {
		worker := &models.Worker{ID: entry.ID, Capabilities: entry.Capabilities}
		if err := pool.Register(worker); err != nil {
			return fmt.Errorf("register worker %s: %w", entry.ID, err)
		}
	}

	notifier := orchestrator.NewChannelNotifier(cfg.Events.BufferSize)
	defer notifier.Close()

	engine := orchestrator.New(pool,
		orchestrator.WithNotifier(notifier),
		orchestrator.WithLogger(logger),
		orchestrator.WithMatchPolicy(orchestrator.MatchPolicy{
			EmptyRequiredScore: cfg.Matcher.EmptyRequiredScore,
		}),
		orchestrator.WithRetryPolicy(orchestrator.RetryPolicy{
			Enabled:     cfg.Retry.Enabled,
			MaxAttempts: cfg.Retry.MaxAttempts,
		}),
	)

	db, err := state.Open(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state database: %w", err)
	}

	go printEvents(notifier.Events())

	watcher, err := spool.NewWatcher(cfg.Spool.Dir, func(task *models.Task) error {
		return engine.AddTask(task)
	})
	if err != nil {
		return err
	}
	loaded, err := watcher.LoadDir()
	if err != nil {
		return fmt.Errorf("load spool: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Printf("dispatch: %d worker(s), %d spooled task(s), watching %s\n",
		pool.Count(), loaded, watcher.Dir())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runLoop(ctx, engine, pool, db)

	if saveErr := db.SaveSnapshot(engine.GetTasks()); saveErr != nil {
		fmt.Fprintf(os.Stderr, "warning: save snapshot: %v\n", saveErr)
	}
	printSummary(engine)
	return err
}

func loadConfig() (*config.Config, error) {
	if runConfigPath != "" {
		return config.LoadFromPath(runConfigPath)
	}
	return config.Load()
}

// runLoop assigns ready tasks to idle workers until the context is
// cancelled or, with --drain, until every task is terminal.
func runLoop(ctx context.Context, engine *orchestrator.Orchestrator, pool *orchestrator.StaticPool, db *state.DB) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for {
			assignment, err := engine.AssignNext()
			if err != nil {
				if orchestrator.IsNoViableWorker(err) {
					break
				}
				return fmt.Errorf("assign: %w", err)
			}
			if assignment == nil {
				break
			}
			startWorker(engine, pool, db, assignment)
		}

		if runDrain && allSettled(engine) {
			return nil
		}
	}
}

// startWorker simulates the assigned worker: it starts the task,
// works for the configured duration, and reports completion.
func startWorker(engine *orchestrator.Orchestrator, pool *orchestrator.StaticPool, db *state.DB, a *orchestrator.Assignment) {
	pool.SetStatus(a.WorkerID, models.WorkerStatusBusy)
	if err := engine.OnTaskStarted(a.TaskID); err != nil {
		fmt.Fprintf(os.Stderr, "warning: start %s: %v\n", a.TaskID, err)
		pool.SetStatus(a.WorkerID, models.WorkerStatusIdle)
		return
	}

	go func() {
		time.Sleep(runWorkTime)
		if err := engine.OnTaskCompleted(a.TaskID); err != nil {
			fmt.Fprintf(os.Stderr, "warning: complete %s: %v\n", a.TaskID, err)
		}
		pool.SetStatus(a.WorkerID, models.WorkerStatusIdle)
		if err := db.SaveSnapshot(engine.GetTasks()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: save snapshot: %v\n", err)
		}
	}()
}

// allSettled reports whether every task has either completed or come
// to rest in failed. A task observed in failed will not move again on
// its own: automatic retries re-enter pending synchronously inside the
// failure callback, so failed means the policy is exhausted.
func allSettled(engine *orchestrator.Orchestrator) bool {
	tasks := engine.GetTasks()
	if len(tasks) == 0 {
		return false
	}
	for _, task := range tasks {
		if !task.Status.Terminal() && task.Status != models.TaskStateFailed {
			return false
		}
	}
	return true
}

// printEvents renders the engine's event stream to stdout.
func printEvents(events <-chan orchestrator.Event) {
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventTaskAdded:
			fmt.Printf("%s %s %q\n", color.CyanString("+"), ev.TaskID, ev.Task.Title)
		case orchestrator.EventTaskReady:
			fmt.Printf("%s %s unblocked\n", color.BlueString("~"), ev.TaskID)
		case orchestrator.EventTaskAssigned:
			fmt.Printf("%s %s -> %s\n", color.YellowString(">"), ev.TaskID, ev.WorkerID)
		case orchestrator.EventTaskCompleted:
			fmt.Printf("%s %s completed\n", color.GreenString("✓"), ev.TaskID)
		case orchestrator.EventTaskFailed:
			msg := ev.TaskID + " failed"
			if ev.Reason != "" {
				msg += ": " + ev.Reason
			}
			fmt.Printf("%s %s\n", color.RedString("✗"), msg)
		}
	}
}

func printSummary(engine *orchestrator.Orchestrator) {
	counts := map[models.TaskState]int{}
	for _, task := range engine.GetTasks() {
		counts[task.Status]++
	}
	fmt.Printf("\n%d task(s): %d completed, %d failed, %d pending\n",
		len(engine.GetTasks()),
		counts[models.TaskStateCompleted],
		counts[models.TaskStateFailed],
		counts[models.TaskStatePending]+counts[models.TaskStateAssigned]+counts[models.TaskStateInProgress])
}
