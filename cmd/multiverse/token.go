package main

import (
	"fmt"
	"time"

	"multiverse-server/internal/auth"
	"multiverse-server/internal/shared/config"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		Long: `Token signs a JWT with JWT_SECRET and JWT_ISSUER from the environment.
Tokens with --role admin may delete populations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			switch auth.Role(role) {
			case auth.RoleAdmin, auth.RoleViewer:
			default:
				return fmt.Errorf("unknown role %q (want %s or %s)", role, auth.RoleAdmin, auth.RoleViewer)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenExpiration
			}

			tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := tokens.Generate(subject, auth.Role(role), ttl)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"token":      token,
					"expires_at": formatTime(time.Now().Add(ttl)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("subject", "operator", "Token subject")
	cmd.Flags().String("role", string(auth.RoleAdmin), "Token role (admin or viewer)")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (default JWT_EXPIRATION_HOURS)")
	return cmd
}
