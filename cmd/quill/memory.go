package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillworks/quill/pkg/models"
)

var (
	memoryAddExamples []string
	memoryAddTags     string
	memoryListType    string
	memoryListTop     int
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage long-term writing memory",
	Long: `Store and recall the long-term context attached to every run:
style guides, glossary terms, collected knowledge, and preferences.

Recall uses the vector index when enabled in config, and otherwise
falls back to importance-ranked listing.`,
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <type> <args...>",
	Short: "Store a memory record",
	Long: `Store a typed memory record in the workspace.

Usage per type:
  quill memory add style <title> <guideline> [--example text]...
  quill memory add glossary <term> <definition>
  quill memory add knowledge <topic> <content> [--tags a,b]
  quill memory add preference <text>`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMemoryAdd,
}

var memoryListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "Recall memory records",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMemoryList,
}

func init() {
	memoryAddCmd.Flags().StringArrayVar(&memoryAddExamples, "example", nil, "Example passage for a style record (repeatable)")
	memoryAddCmd.Flags().StringVar(&memoryAddTags, "tags", "", "Comma-separated tags for a knowledge record")
	memoryListCmd.Flags().StringVar(&memoryListType, "type", "", "Restrict to one type: style, glossary, knowledge, or preference")
	memoryListCmd.Flags().IntVar(&memoryListTop, "top", 0, "Maximum records to return")

	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryListCmd)
}

func runMemoryAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, _, err := openWorkspace(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mem := newMemoryStore(cfg, db)
	ctx := context.Background()
	ws := cfg.Workspace.ID

	var rec *models.MemoryRecord
	switch models.MemoryType(args[0]) {
	case models.MemoryTypeStyle:
		if len(args) < 3 {
			return fmt.Errorf("usage: quill memory add style <title> <guideline>")
		}
		rec, err = mem.StoreStyle(ctx, ws, args[1], args[2], memoryAddExamples)
	case models.MemoryTypeGlossary:
		if len(args) < 3 {
			return fmt.Errorf("usage: quill memory add glossary <term> <definition>")
		}
		rec, err = mem.StoreGlossary(ctx, ws, args[1], args[2])
	case models.MemoryTypeKnowledge:
		if len(args) < 3 {
			return fmt.Errorf("usage: quill memory add knowledge <topic> <content>")
		}
		rec, err = mem.StoreKnowledge(ctx, ws, args[1], args[2], splitTags(memoryAddTags))
	case models.MemoryTypePreference:
		rec, err = mem.StorePreference(ctx, ws, strings.Join(args[1:], " "))
	default:
		return fmt.Errorf("unknown memory type %q: must be style, glossary, knowledge, or preference", args[0])
	}
	if err != nil {
		return fmt.Errorf("store memory: %w", err)
	}

	fmt.Printf("Stored %s record %s: %s\n", rec.Type, shortID(rec.ID), rec.Title)
	return nil
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	typ := models.MemoryType(memoryListType)
	if memoryListType != "" && !typ.Valid() {
		return fmt.Errorf("unknown memory type %q: must be style, glossary, knowledge, or preference", memoryListType)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, _, err := openWorkspace(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mem := newMemoryStore(cfg, db)
	records, err := mem.Load(context.Background(), cfg.Workspace.ID, query, typ, memoryListTop)
	if err != nil {
		return fmt.Errorf("load memories: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No memories stored.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  [%s] %s  (importance %.1f)\n", shortID(rec.ID), rec.Type, rec.Title, rec.ImportanceScore)
		for _, line := range strings.Split(rec.SearchableText(), "\n")[1:] {
			fmt.Printf("          %s\n", line)
		}
		if len(rec.Tags) > 0 {
			fmt.Printf("          tags: %s\n", strings.Join(rec.Tags, ", "))
		}
	}
	return nil
}

// splitTags turns a comma-separated flag value into trimmed tags.
func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
