package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworks/quill/internal/signal"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the active run to stop",
	Long: `Write a stop signal into the workspace.

The active run finishes its in-flight model call, then exits before
issuing the next one and reports itself as stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSignals()
		if err != nil {
			return err
		}
		defer m.Close()
		if err := m.SendStop(); err != nil {
			return fmt.Errorf("send stop signal: %w", err)
		}
		fmt.Println("Stop signal sent.")
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the active run before its next task",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSignals()
		if err != nil {
			return err
		}
		defer m.Close()
		if err := m.SendPause(); err != nil {
			return fmt.Errorf("send pause signal: %w", err)
		}
		fmt.Println("Pause signal sent. Resume with 'quill resume'.")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Clear stop and pause signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSignals()
		if err != nil {
			return err
		}
		defer m.Close()
		if err := m.Clear(); err != nil {
			return fmt.Errorf("clear signals: %w", err)
		}
		fmt.Println("Signals cleared.")
		return nil
	},
}

func openSignals() (*signal.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	m, err := signal.NewManager(cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("open signal directory: %w", err)
	}
	return m, nil
}
