package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/services/export"
	"github.com/spf13/cobra"
)

// newExportCmd creates the export command
func newExportCmd(a *app) *cobra.Command {
	var output string
	var utc bool
	cmd := &cobra.Command{
		Use:   "export <owner-id>",
		Short: "Export every log of an account as text",
		Long:  "Write an account's logs, newest first, in the same format as the download offered to users.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *docstore.Store) error {
				loc := time.Local
				if utc {
					loc = time.UTC
				}
				body, err := export.NewExporter(database.NewLogRepository(store), loc).Export(ctx, args[0])
				if err != nil {
					return fmt.Errorf("export %s: %w", args[0], err)
				}
				if output == "" || output == "-" {
					_, err = fmt.Fprint(cmd.OutOrStdout(), body)
					return err
				}
				if err := os.WriteFile(output, []byte(body), 0o600); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write (default stdout)")
	cmd.Flags().BoolVar(&utc, "utc", false, "Print dates in UTC instead of local time")
	return cmd
}
