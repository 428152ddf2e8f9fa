package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/healthchat/internal/auth"
	"github.com/suPer8Hu/healthchat/internal/config"
)

// newTokenCmd signs a development token with the relay's JWT secret. Real
// deployments get tokens from the identity provider.
func newTokenCmd() *cobra.Command {
	var (
		user   string
		secret string
		ttl    time.Duration
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user = strings.TrimSpace(user)
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}

			tok, err := auth.SignJWT(user, secret, ttl)
			if err != nil {
				return err
			}
			if !save {
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			}

			cfg := clientCfg
			cfg.UserID = user
			cfg.Token = tok
			if err := config.SaveClient(configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), infoStyle.Render("Saved token for "+user+" to "+configPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to sign for")
	cmd.Flags().StringVar(&secret, "secret", "", "JWT secret (defaults to $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "store the token and user id in the client config")
	return cmd
}
