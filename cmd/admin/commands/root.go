// Package commands implements the tag-a-log-admin command tree
package commands

import (
	"context"
	"fmt"

	"github.com/benvon/tag-a-log/internal/config"
	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// StoreOpener opens the document store a command works on and returns the
// function that releases it
type StoreOpener func(ctx context.Context) (*docstore.Store, func() error, error)

// DefaultStoreOpener opens the store configured in the environment
func DefaultStoreOpener(ctx context.Context) (*docstore.Store, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := database.Open(ctx, cfg, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return store, store.Close, nil
}

// app is the state shared by every command
type app struct {
	open   StoreOpener
	logger *zap.Logger
}

// NewRootCmd builds the admin command tree
func NewRootCmd(open StoreOpener) *cobra.Command {
	a := &app{open: open, logger: zap.NewNop()}
	var verbose, debug bool

	root := &cobra.Command{
		Use:   "tag-a-log-admin",
		Short: "Administration tool for tag-a-log",
		Long: "Operator tool for purging accounts, inspecting account status, exporting logs " +
			"and managing runtime settings. With the badger store the server must be stopped first.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose && !debug {
				return nil
			}
			l, err := logger.NewDevelopmentLogger(debug)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync(a.logger)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log service activity to stderr")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Log debug output to stderr")

	root.AddCommand(newPurgeCmd(a))
	root.AddCommand(newAccountCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newSettingsCmd(a))
	root.AddCommand(newOIDCCmd())
	return root
}

// withStore opens the store for the duration of fn
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, store *docstore.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, closeStore, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close store: %v\n", err)
		}
	}()
	return fn(ctx, store)
}
