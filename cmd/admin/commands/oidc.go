package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tag-a-log/internal/config"
	"github.com/benvon/tag-a-log/internal/services/oidc"
	"github.com/spf13/cobra"
)

// newOIDCCmd creates the oidc command
func newOIDCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oidc",
		Short: "Inspect the federated identity provider",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Resolve provider endpoints and fetch its signing keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return checkProvider(cmd, cfg.OIDC())
		},
	})
	return cmd
}

func checkProvider(cmd *cobra.Command, oidcCfg oidc.Config) error {
	out := cmd.OutOrStdout()
	if !oidcCfg.Enabled() {
		fmt.Fprintln(out, "Federated sign-in is not configured (set OIDC_ISSUER and OIDC_CLIENT_ID).")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	endpoints := oidc.NewProvider(oidcCfg).Endpoints(ctx)
	fmt.Fprintf(out, "Issuer: %s\n", oidcCfg.Issuer)
	fmt.Fprintf(out, "  Authorization endpoint: %s\n", endpoints.AuthorizationEndpoint)
	fmt.Fprintf(out, "  Token endpoint: %s\n", endpoints.TokenEndpoint)
	fmt.Fprintf(out, "  JWKS URI: %s\n", endpoints.JWKSURI)
	fmt.Fprintf(out, "  Code flow: %v\n", oidcCfg.RedirectURI != "")

	keys, err := oidc.NewJWKSManager().GetJWKS(ctx, endpoints.JWKSURI)
	if err != nil {
		return fmt.Errorf("fetch signing keys: %w", err)
	}
	fmt.Fprintf(out, "  Signing keys: %d\n", keys.Len())
	return nil
}
