package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

// newSettingsCmd creates the settings command. The server picks up changes
// on its next reload tick.
func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage runtime settings stored in the database",
	}
	cmd.AddCommand(newCorsCmd(a))
	cmd.AddCommand(newRateLimitCmd(a))
	return cmd
}

func newCorsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options (stored in database).",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *docstore.Store) error {
				c, err := database.NewSettingsRepository(store).GetCors(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if c == nil {
					fmt.Fprintln(out, "No CORS configuration in database. Use 'settings cors set' to add one.")
					return nil
				}
				fmt.Fprintln(out, "CORS configuration:")
				fmt.Fprintf(out, "  Allowed origins: %s\n", c.AllowedOrigins)
				fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
				fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
				return nil
			})
		},
	})
	cmd.AddCommand(newCorsSetCmd(a))
	return cmd
}

func newCorsSetCmd(a *app) *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Update CORS allowed origins (comma-separated). Stored in database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := database.AllowedOriginsSlice(origins)
			if len(list) == 0 {
				return fmt.Errorf("--origins is required (comma-separated list)")
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age must not be negative")
			}
			return a.withStore(cmd, func(ctx context.Context, store *docstore.Store) error {
				c := &models.CorsSettings{
					AllowedOrigins:   strings.Join(list, ","),
					AllowCredentials: allowCreds,
					MaxAge:           maxAge,
				}
				if err := database.NewSettingsRepository(store).SetCors(ctx, c); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Preflight cache max age in seconds")
	return cmd
}

func newRateLimitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage the API rate limit",
		Long:  "List or update the per-client rate limit, in limiter format such as 100-M.",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the stored rate limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *docstore.Store) error {
				s, err := database.NewSettingsRepository(store).GetRateLimit(ctx)
				if err != nil {
					return err
				}
				if s == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No rate limit in database; the RATE_LIMIT environment value applies.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rate limit: %s\n", s.Rate)
				return nil
			})
		},
	})

	var rate string
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the rate limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if _, err := limiter.NewRateFromFormatted(rate); err != nil {
				return fmt.Errorf("invalid --rate %q: %w", rate, err)
			}
			return a.withStore(cmd, func(ctx context.Context, store *docstore.Store) error {
				if err := database.NewSettingsRepository(store).SetRateLimit(ctx, &models.RateLimitSettings{Rate: rate}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rate limit set to %s.\n", rate)
				return nil
			})
		},
	}
	set.Flags().StringVar(&rate, "rate", "", "Rate in limiter format, e.g. 100-M (required)")
	cmd.AddCommand(set)
	return cmd
}
