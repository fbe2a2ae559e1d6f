// Package commands implements the mintbalance command line.
package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/mintbalance/internal/ai"
	"github.com/dvloznov/mintbalance/internal/backup"
	"github.com/dvloznov/mintbalance/internal/buildinfo"
	"github.com/dvloznov/mintbalance/internal/config"
	"github.com/dvloznov/mintbalance/internal/ledger"
	"github.com/dvloznov/mintbalance/internal/logger"
	"github.com/dvloznov/mintbalance/internal/store"
)

// app is the state shared by every subcommand: the resolved configuration
// and the logger built from it.
type app struct {
	configPath string
	dbPath     string

	cfg *config.Config
	log zerolog.Logger

	// objectStore opens the backup object store. Tests replace it.
	objectStore func(ctx context.Context) (backup.ObjectStore, func(), error)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{objectStore: openGCS})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "mintbalance",
		Short:   "Personal finance ledger with AI forecasts and insights",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "path to mintbalance.yaml")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "ledger database path (overrides store.path)")

	rootCmd.AddCommand(
		newTransactionsCommand(a),
		newSubscriptionsCommand(a),
		newDashboardCommand(a),
		newCategorizeCommand(a),
		newPredictCommand(a),
		newInsightsCommand(a),
		newSettingsCommand(a),
		newBackupCommand(a),
		newExportCommand(a),
		newSyncCommand(a),
		newConfigCommand(a),
	)

	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Store.Path = a.dbPath
	}

	log, err := logger.Configure(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	cmd.SetContext(logger.WithContext(commandContext(cmd), log))
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openStore opens the configured ledger database. Callers close it.
func (a *app) openStore() (*store.BoltStore, error) {
	st, err := store.Open(a.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return st, nil
}

// openService opens the ledger and wires it to the configured AI backends
// and failure policy.
func (a *app) openService() (*ledger.Service, func(), error) {
	st, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}

	policy, err := a.cfg.AI.FailurePolicy()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	opts := []ledger.Option{ledger.WithPolicy(policy)}
	if a.cfg.AI.Mode != "" {
		opts = append(opts, ledger.WithMode(ai.Kind(a.cfg.AI.Mode)))
	}

	svc := ledger.NewService(st, ledger.NewBackends(a.cfg.AI), opts...)
	return svc, func() { st.Close() }, nil
}

func openGCS(ctx context.Context) (backup.ObjectStore, func(), error) {
	gcs, err := backup.NewGCSObjectStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return gcs, func() { gcs.Close() }, nil
}
