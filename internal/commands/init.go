package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/archive"
	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/rules"
	"github.com/cleared-dev/bankrec/internal/store"
)

func newInitCommand() *cobra.Command {
	var name string
	var entityType string
	var org string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new bankrec project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				if dir, err = filepath.Abs(args[0]); err != nil {
					return fmt.Errorf("resolving path: %w", err)
				}
			}
			return runInit(cmd.Context(), cmd.OutOrStdout(), dir, name, entityType, org)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&entityType, "entity-type", "llc_single_member", "entity type")
	cmd.Flags().StringVar(&org, "org", "", "organization id (default from config)")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir, name, entityType, org string) error {
	dirs := []string{
		"accounts",
		"rules",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	cfg := config.Default(name, entityType)
	if org != "" {
		cfg.Organization = org
	}
	dirs = append(dirs, cfg.Archive.Dir)
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Seed the database with the default chart, then export it.
	log := logger.New(logger.Config{Level: "warn"})
	db, err := store.Open(ctx, store.Config{Path: cfg.DatabasePath(dir)}, log)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	svc := accounts.NewService(db, log)
	if err := svc.Seed(ctx, cfg.Organization, accounts.DefaultChart(entityType)); err != nil {
		return fmt.Errorf("seeding chart of accounts: %w", err)
	}
	if err := svc.Save(ctx, cfg.Organization, dir); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	if err := rules.SaveFile(filepath.Join(dir, rules.FilePath), nil); err != nil {
		return err
	}

	gitignore := "*.db\n*.db-*\n.env\nimport/processed/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if !cfg.Archive.AutoCommit {
		fmt.Fprintf(out, "Initialized bankrec project at %s\n", dir)
		return nil
	}

	if err := archive.Init(dir); err != nil {
		return err
	}
	author := archive.Author{Name: cfg.Archive.AuthorName, Email: cfg.Archive.AuthorEmail}
	hash, err := archive.Commit(dir, []string{"."}, "init: Initialize "+name, author)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}
	fmt.Fprintf(out, "Initialized bankrec project at %s (%s)\n", dir, hash)
	return nil
}
