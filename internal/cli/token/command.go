package token

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hubportal/hub/internal/auth"
	"github.com/hubportal/hub/internal/config"
)

// NewCommand prints a signed bearer token for local testing.
func NewCommand() *cobra.Command {
	var (
		userID    string
		name      string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a signed JWT for dev/local use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			authCfg := cfg.Auth
			if expiresIn > 0 {
				authCfg.AccessTokenTTL = expiresIn
			}
			token, expires, err := auth.NewTokenManager(authCfg).GenerateToken(userID, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "sub claim (portal user id)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "token lifetime (default AUTH_ACCESS_TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}
