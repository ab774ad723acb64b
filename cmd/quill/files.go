package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	filesLsPattern  string
	filesCatVersion int
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Inspect the workspace file store",
	Long: `Browse files the orchestrator has written into the workspace.

Every write is versioned; 'versions' lists the history of a path and
'cat --version N' reads a specific snapshot.`,
}

var filesLsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List workspace files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, files, err := openWorkspace(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		paths, err := files.Ls(context.Background(), dir, filesLsPattern)
		if err != nil {
			return fmt.Errorf("list files: %w", err)
		}
		if len(paths) == 0 {
			fmt.Println("No files.")
			return nil
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

var filesCatCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, files, err := openWorkspace(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		var content string
		if filesCatVersion > 0 {
			content, err = files.ReadVersion(ctx, args[0], filesCatVersion)
		} else {
			content, err = files.Read(ctx, args[0])
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		fmt.Print(content)
		return nil
	},
}

var filesGrepCmd = &cobra.Command{
	Use:   "grep <pattern> [dir]",
	Short: "Search workspace files for a substring",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 1 {
			dir = args[1]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, files, err := openWorkspace(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		matches, err := files.Grep(context.Background(), args[0], dir)
		if err != nil {
			return fmt.Errorf("grep: %w", err)
		}
		if len(matches) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%s:%d: %s\n", m.File, m.Line, m.Content)
		}
		return nil
	},
}

var filesVersionsCmd = &cobra.Command{
	Use:   "versions <path>",
	Short: "List a file's version history, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, files, err := openWorkspace(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		versions, err := files.Versions(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("versions of %s: %w", args[0], err)
		}
		for _, v := range versions {
			by := v.CreatedBy
			if by == "" {
				by = "-"
			}
			fmt.Printf("v%-3d  %6d bytes  %s  by %s  %s\n",
				v.Version, v.Size, v.Checksum[:12], by,
				v.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	filesLsCmd.Flags().StringVar(&filesLsPattern, "pattern", "", "Glob matched against file base names")
	filesCatCmd.Flags().IntVar(&filesCatVersion, "version", 0, "Read a specific version instead of the current content")

	filesCmd.AddCommand(filesLsCmd)
	filesCmd.AddCommand(filesCatCmd)
	filesCmd.AddCommand(filesGrepCmd)
	filesCmd.AddCommand(filesVersionsCmd)
}
