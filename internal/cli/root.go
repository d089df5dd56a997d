// Package cli implements the account management commands: adding monitored
// accounts, toggling them, and inspecting delivery statistics and errors.
package cli

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/tweetrelay/internal/config"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/accounts"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/errorlog"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/ledger"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/repomanager"
	"github.com/spf13/cobra"
)

// Store groups the repositories the commands work with.
type Store struct {
	Accounts accounts.Repository
	Ledger   ledger.Repository
	Errors   errorlog.Repository
	Close    func() error
}

// OpenFunc opens the store described by cfg.
type OpenFunc func(ctx context.Context, cfg *config.Config) (*Store, error)

// OpenDatabase opens the configured database, applying migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*Store, error) {
	db, rm, err := repomanager.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return storeFor(db, rm), nil
}

func storeFor(db *sql.DB, rm repomanager.RepositoryManager) *Store {
	return &Store{
		Accounts: rm.Accounts(db),
		Ledger:   rm.Ledger(db),
		Errors:   rm.ErrorLog(db),
		Close:    db.Close,
	}
}

type rootOptions struct {
	cfgFile string
	driver  string
	dsn     string
	open    OpenFunc
}

// NewRootCmd returns the root command. open is called once per command
// invocation.
func NewRootCmd(open OpenFunc) *cobra.Command {
	o := &rootOptions{open: open}

	rootCmd := &cobra.Command{
		Use:           "accounts",
		Short:         "Manage accounts relayed to Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&o.cfgFile, "config", "c", "", "config file (yaml, json, toml or env)")
	rootCmd.PersistentFlags().StringVar(&o.driver, "db-driver", "", "database driver: pgx or sqlite (overrides DATABASE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&o.dsn, "db-url", "", "database URL (overrides DATABASE_URL)")

	rootCmd.AddCommand(newAddCmd(o))
	rootCmd.AddCommand(newListCmd(o))
	rootCmd.AddCommand(newSetActiveCmd(o, "enable", true))
	rootCmd.AddCommand(newSetActiveCmd(o, "disable", false))
	rootCmd.AddCommand(newStatsCmd(o))
	rootCmd.AddCommand(newErrorsCmd(o))
	return rootCmd
}

// withStore loads configuration, opens the store and runs fn with it.
func (o *rootOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, s *Store) error) error {
	var args []string
	if o.cfgFile != "" {
		args = []string{"-c", o.cfgFile}
	}
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	if o.driver != "" {
		cfg.DatabaseDriver = o.driver
	}
	if o.dsn != "" {
		cfg.DatabaseURL = o.dsn
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := o.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
