package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/activitylog"
	"github.com/cleared-dev/bankrec/internal/actions"
	"github.com/cleared-dev/bankrec/internal/bankfeed"
	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/journal"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/matching"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/reconcile"
	"github.com/cleared-dev/bankrec/internal/rules"
	"github.com/cleared-dev/bankrec/internal/store"
)

// app is one opened project: its config, database and services.
type app struct {
	dir string
	cfg *config.Config
	log zerolog.Logger
	db  *store.DB

	accounts  *accounts.Service
	importer  *bankfeed.Importer
	rules     *rules.Service
	matching  *matching.Engine
	applier   *actions.Applier
	journal   *journal.Service
	reconcile *reconcile.Service
}

// projectDir reads the persistent --dir flag.
func projectDir(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}

// openApp loads the project in --dir, opens and migrates its database and
// registers the bank accounts listed in the config.
func openApp(cmd *cobra.Command) (*app, error) {
	dir, err := projectDir(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Out: cmd.ErrOrStderr()})

	ctx := cmd.Context()
	db, err := store.Open(ctx, store.Config{Path: cfg.DatabasePath(dir)}, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	js := journal.NewService(log)
	a := &app{
		dir:       dir,
		cfg:       cfg,
		log:       log,
		db:        db,
		accounts:  accounts.NewService(db, log),
		importer:  bankfeed.NewImporter(db, log),
		rules:     rules.NewService(db, log),
		matching:  matching.NewEngine(db, log, cfg.Matching.Concurrency),
		applier:   actions.NewApplier(db, log),
		journal:   js,
		reconcile: reconcile.NewService(db, js, log),
	}
	if err := a.syncBankAccounts(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) syncBankAccounts(ctx context.Context) error {
	for _, b := range a.cfg.BankAccounts {
		err := a.accounts.RegisterBankAccount(ctx, a.cfg.Organization, model.BankAccount{
			ID:          b.ID,
			Name:        b.Name,
			LastFour:    b.LastFour,
			GLAccountID: b.AccountID,
		})
		if err != nil {
			return fmt.Errorf("registering bank account %s: %w", b.ID, err)
		}
	}
	return nil
}

func (a *app) org() string { return a.cfg.Organization }

// Close releases the database.
func (a *app) Close() error {
	return a.db.Close()
}

// withApp opens the project for the duration of fn.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func actor(cmd *cobra.Command) string {
	name, _ := cmd.Flags().GetString("actor")
	return name
}

// record appends one row to the project's activity log.
func (a *app) record(cmd *cobra.Command, action, subjectID, details string) {
	err := activitylog.Append(a.dir, []activitylog.Entry{{
		Timestamp: time.Now().UTC(),
		Actor:     actor(cmd),
		Action:    action,
		Details:   details,
		SubjectID: subjectID,
		OrgID:     a.org(),
	}})
	if err != nil {
		a.log.Warn().Err(err).Str("action", action).Msg("activity log append failed")
	}
}
