// Command healthchat is the terminal client: a local chat session backed by
// an on-device store, and one-shot health-risk predictions through the relay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/healthchat/internal/config"
	"github.com/suPer8Hu/healthchat/internal/logging"
	"go.uber.org/zap"
)

var (
	configPath string
	clientCfg  config.Client
	logger     = zap.NewNop()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "healthchat",
		Short:         "Chat with the health assistant and run risk predictions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient(configPath)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("relay"); v != "" {
				cfg.RelayURL = v
			}
			clientCfg = cfg

			if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
				return err
			}
			l, err := logging.NewFile(filepath.Join(cfg.DataDir, "healthchat.log"), cfg.Debug)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultClientPath(), "client config file")
	root.PersistentFlags().String("relay", "", "relay base URL (overrides relay_url)")

	root.AddCommand(newChatCmd(), newPredictCmd(), newClearCmd(), newTokenCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func requireUser() (string, error) {
	if clientCfg.UserID == "" {
		return "", fmt.Errorf("user_id is not set; run `healthchat token --user <id> --save` first")
	}
	return clientCfg.UserID, nil
}
