package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/services/account"
	"github.com/spf13/cobra"
)

// newAccountCmd creates the account command with status, schedule and cancel subcommands
func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect and manage account deletion",
	}
	cmd.AddCommand(newAccountActionCmd(a, "status <owner-id>", "Show an account's lifecycle status",
		func(ctx context.Context, m *account.Manager, ownerID string) (models.AccountStatusView, error) {
			return m.GetStatus(ctx, ownerID)
		}))
	cmd.AddCommand(newAccountActionCmd(a, "schedule <owner-id>", "Schedule an account for deletion in 30 days",
		func(ctx context.Context, m *account.Manager, ownerID string) (models.AccountStatusView, error) {
			return m.ScheduleDeletion(ctx, ownerID)
		}))
	cmd.AddCommand(newAccountActionCmd(a, "cancel <owner-id>", "Cancel a scheduled deletion",
		func(ctx context.Context, m *account.Manager, ownerID string) (models.AccountStatusView, error) {
			if err := m.CancelDeletion(ctx, ownerID); err != nil {
				return models.AccountStatusView{}, err
			}
			return m.GetStatus(ctx, ownerID)
		}))
	return cmd
}

type accountAction func(ctx context.Context, m *account.Manager, ownerID string) (models.AccountStatusView, error)

func newAccountActionCmd(a *app, use, short string, action accountAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *docstore.Store) error {
				manager := account.NewManager(database.NewAccountRepository(store), a.logger)
				view, err := action(ctx, manager, args[0])
				if err != nil {
					return fmt.Errorf("account %s: %w", args[0], err)
				}
				printStatus(cmd.OutOrStdout(), args[0], view)
				return nil
			})
		},
	}
}

func printStatus(out io.Writer, ownerID string, view models.AccountStatusView) {
	fmt.Fprintf(out, "Account %s:\n", ownerID)
	fmt.Fprintf(out, "  Status: %s\n", view.Status)
	if view.ScheduledDate != nil {
		fmt.Fprintf(out, "  Scheduled deletion: %s\n", view.ScheduledDate.UTC().Format(time.RFC3339))
	}
	if view.DaysRemaining != nil {
		fmt.Fprintf(out, "  Days remaining: %d\n", *view.DaysRemaining)
	}
}
