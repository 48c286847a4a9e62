package commands

import (
	"context"
	"fmt"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/services/account"
	"github.com/benvon/tag-a-log/internal/services/identity"
	"github.com/benvon/tag-a-log/internal/workers"
	"github.com/spf13/cobra"
)

// newPurgeCmd creates the purge command, which runs one sweep in-process
func newPurgeCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Erase accounts whose deletion deadline has passed",
		Long:  "Run one purge sweep now. Every expired account is erased independently; failures are reported and the rest continue.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *docstore.Store) error {
				accounts := database.NewAccountRepository(store)
				identities := identity.NewService(database.NewIdentityRepository(store), accounts, nil, nil, nil, a.logger)
				eraser := account.NewEraser(accounts, identities, a.logger)
				sweeper := workers.NewSweeper(accounts, workers.NewInlineDispatcher(eraser), a.logger)

				out := cmd.OutOrStdout()
				if dryRun {
					ids, err := sweeper.Candidates(ctx)
					if err != nil {
						return err
					}
					if len(ids) == 0 {
						fmt.Fprintln(out, "No accounts are due for deletion.")
						return nil
					}
					fmt.Fprintf(out, "%d account(s) would be erased:\n", len(ids))
					for _, id := range ids {
						fmt.Fprintf(out, "  - %s\n", id)
					}
					return nil
				}

				result, err := sweeper.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Purge complete: %d candidate(s), %d erased, %d failed.\n",
					result.Candidates, result.Dispatched, result.Failed)
				if result.Failed > 0 {
					return fmt.Errorf("%d account(s) could not be erased", result.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the accounts that would be erased without erasing them")
	return cmd
}
