package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillworks/quill/internal/config"
	"github.com/quillworks/quill/internal/filestore"
	"github.com/quillworks/quill/internal/memory"
	"github.com/quillworks/quill/internal/state"
	"github.com/quillworks/quill/internal/vector"
)

var (
	flagWorkspace   string
	flagWorkspaceID string
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Agent-orchestrated writing workspace",
	Long: `Quill turns a writing goal into a dependency-ordered task plan and
works through it: research runs in isolated sub-agents, drafts are
generated directly, and every artifact lands in a versioned workspace
file store.

Long-term context (style guides, glossaries, collected knowledge,
preferences) lives in a typed memory store and is attached to each run.

Start with:
  quill run "write a blog post about tidal energy"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "Workspace root directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagWorkspaceID, "workspace-id", "", "Workspace identifier (default from config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagWorkspace != "" {
		cfg.Workspace.Root = flagWorkspace
	}
	if flagWorkspaceID != "" {
		cfg.Workspace.ID = flagWorkspaceID
	}
	return cfg, nil
}

// openWorkspace opens the workspace database and file store. The caller
// closes the returned DB.
func openWorkspace(cfg *config.Config) (*state.DB, *filestore.Store, error) {
	db, err := state.Open(state.DefaultDBPath(cfg.Workspace.Root))
	if err != nil {
		return nil, nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	files, err := filestore.New(cfg.Workspace.Root, db, cfg.Workspace.ID)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open file store: %w", err)
	}
	return db, files, nil
}

// newMemoryStore builds the memory store, attaching the vector backend
// when enabled. A broken vector index degrades to ranked recall.
func newMemoryStore(cfg *config.Config, db *state.DB) *memory.Store {
	if !cfg.Memory.VectorEnabled {
		return memory.New(db, nil)
	}

	ix, err := vector.Open(vector.Config{
		Path:     cfg.VectorDir(),
		Provider: cfg.Memory.EmbeddingProvider,
	})
	if err != nil {
		fmt.Printf("Warning: vector index unavailable, using ranked recall: %v\n", err)
		return memory.New(db, nil)
	}
	return memory.New(db, ix)
}

// shortID returns the first 8 characters of an id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
