package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quillworks/quill/internal/planner"
)

var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Create and validate a plan without executing it",
	Long: `Decompose a writing goal into a dependency-ordered task plan,
validate the dependency graph, and print the tasks.

Nothing is executed; use 'quill run' to execute a goal end to end.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlanCmd,
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, _, err := openWorkspace(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}

	p := planner.New(client, db)
	ctx := context.Background()

	plan, tasks, err := p.CreatePlan(ctx, cfg.Workspace.ID, goal, nil)
	if err != nil {
		return fmt.Errorf("create plan: %w", err)
	}

	fmt.Printf("Plan %s (%d tasks)\n\n", plan.ID, len(tasks))
	for i, task := range tasks {
		deps := "-"
		if len(task.DependsOn) > 0 {
			short := make([]string, len(task.DependsOn))
			for j, dep := range task.DependsOn {
				short[j] = shortID(dep)
			}
			deps = strings.Join(short, ", ")
		}
		fmt.Printf("%2d. [%s/%s] %s\n", i+1, task.Type, task.Priority, task.Title)
		fmt.Printf("      id %s  deps %s\n", shortID(task.ID), deps)
		if task.Description != "" {
			fmt.Printf("      %s\n", task.Description)
		}
	}
	fmt.Println()

	result, err := p.ValidateDependencies(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("validate plan: %w", err)
	}
	if !result.Valid {
		fmt.Printf("%s %s\n", color.RedString("✗"), result.Reason)
		return fmt.Errorf("plan validation failed: %s", result.Reason)
	}
	fmt.Printf("%s Dependencies valid\n", color.GreenString("✓"))

	next, err := p.GetNextTask(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("next task: %w", err)
	}
	if next != nil {
		fmt.Printf("Next up: %s\n", next.Title)
	}

	tracker := client.Tracker()
	in, out := tracker.Total()
	fmt.Printf("\nTokens: %d in / %d out (~$%.4f)\n", in, out, tracker.Cost())

	return nil
}
