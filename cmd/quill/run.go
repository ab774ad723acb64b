package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quillworks/quill/internal/orchestrator"
	"github.com/quillworks/quill/internal/signal"
	"github.com/quillworks/quill/internal/subagent"
)

var (
	runMaxWorkers    int
	runContextBudget int
	runQuiet         bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Run a writing goal through the orchestrator",
	Long: `Run a writing goal end to end.

The goal is decomposed into a dependency-ordered task plan. Research
tasks run in isolated sub-agents; outline, draft, edit, and publish
tasks are generated directly. Every output is stored in the versioned
workspace file store, and the run closes with a synthesized summary.

Progress events stream to stdout while the run executes. Send a stop
signal from another terminal with 'quill stop'; pause and resume with
'quill pause' and 'quill resume'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "Override the concurrent sub-agent limit")
	runCmd.Flags().IntVar(&runContextBudget, "context-budget", 0, "Override the sub-agent context budget in runes")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress progress output")
}

func runGoal(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, files, err := openWorkspace(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}

	profiles := subagent.DefaultProfiles()
	if cfg.Agents.Profiles != "" {
		profiles, err = subagent.LoadProfiles(cfg.Agents.Profiles)
		if err != nil {
			return fmt.Errorf("load agent profiles: %w", err)
		}
	}

	signals, err := signal.NewManager(cfg.Workspace.Root)
	if err != nil {
		fmt.Printf("Warning: signal watcher unavailable: %v\n", err)
		signals = nil
	} else {
		defer signals.Close()
		// A stop or pause left over from an earlier run should not
		// apply to this one.
		if err := signals.Clear(); err != nil {
			fmt.Printf("Warning: could not clear stale signals: %v\n", err)
		}
	}

	maxWorkers := cfg.Orchestrator.MaxWorkers
	if runMaxWorkers > 0 {
		maxWorkers = runMaxWorkers
	}
	contextBudget := cfg.Orchestrator.ContextBudget
	if runContextBudget > 0 {
		contextBudget = runContextBudget
	}

	orch, err := orchestrator.New(orchestrator.Config{
		DB:            db,
		Gen:           client,
		Files:         files,
		Memory:        newMemoryStore(cfg, db),
		Profiles:      profiles,
		Signals:       signals,
		MaxWorkers:    maxWorkers,
		ContextBudget: contextBudget,
		EventBuffer:   cfg.Orchestrator.EventBuffer,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	eventsDone := make(chan struct{})
	if runQuiet {
		close(eventsDone)
	} else {
		go func() {
			consumeEvents(orch.Events())
			close(eventsDone)
		}()
	}

	fmt.Printf("Starting run: %s\n", goal)
	fmt.Printf("  Workspace: %s (%s)\n\n", cfg.Workspace.Root, cfg.Workspace.ID)

	result, runErr := orch.Run(ctx, cfg.Workspace.ID, goal)
	orch.Close()
	<-eventsDone

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	fmt.Printf("\n%s Run complete\n\n", color.GreenString("✓"))
	fmt.Println(result.Response)

	if len(result.Files) > 0 {
		fmt.Println("\nFiles:")
		for _, f := range result.Files {
			fmt.Printf("  %s\n", f)
		}
	}
	if result.PlanID != "" {
		fmt.Printf("\nPlan: %s\n", result.PlanID)
	}
	fmt.Printf("Run: %s\n", result.RunID)

	tracker := client.Tracker()
	in, out := tracker.Total()
	fmt.Printf("\nTokens: %d in / %d out across %d calls (~$%.4f)\n",
		in, out, tracker.Calls(), tracker.Cost())

	return nil
}

// consumeEvents prints orchestrator progress to stdout until the event
// channel closes.
func consumeEvents(events <-chan orchestrator.Event) {
	for event := range events {
		switch event.Type {
		case orchestrator.EventStateEntered:
			fmt.Printf("[%s]\n", event.State)
		case orchestrator.EventTaskStarted:
			fmt.Printf("  started  %s\n", event.TaskTitle)
		case orchestrator.EventTaskCompleted:
			fmt.Printf("  done     %s -> %s\n", event.TaskTitle, event.Message)
		case orchestrator.EventSubagentSpawned:
			fmt.Printf("  agent    %s (%s)\n", event.TaskTitle, shortID(event.AgentID))
		case orchestrator.EventRunFailed:
			fmt.Printf("%s %v\n", color.RedString("✗"), event.Err)
		}
	}
}
