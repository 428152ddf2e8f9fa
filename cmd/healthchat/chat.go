package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/healthchat/internal/auth"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/relayclient"
	"github.com/suPer8Hu/healthchat/internal/session"
	"github.com/suPer8Hu/healthchat/internal/store/boltkv"
)

func openStore() (*chatlog.Store, func(), error) {
	bolt, err := boltkv.Open(filepath.Join(clientCfg.DataDir, "chat.db"))
	if err != nil {
		return nil, nil, err
	}
	return chatlog.NewStore(bolt, chatlog.NewZapReporter(logger)), func() { _ = bolt.Close() }, nil
}

func newRelayClient() *relayclient.Client {
	return relayclient.New(clientCfg.RelayURL, relayclient.WithToken(clientCfg.Token))
}

// linerConfirm asks a y/N question on the shared liner state.
func linerConfirm(line *liner.State) session.ConfirmFunc {
	return func(_ context.Context, prompt string) bool {
		answer, err := line.Prompt(prompt + " [y/N] ")
		if err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			line := liner.NewLiner()
			line.SetCtrlCAborts(true)
			defer line.Close()

			broker := auth.NewBroker()
			ctrl := session.NewController(
				auth.Session{UserID: userID, Token: clientCfg.Token},
				store,
				newRelayClient(),
				session.Options{Language: clientCfg.Language, Logger: logger},
			)
			ctrl.Watch(cmd.Context(), broker)
			defer ctrl.Close()

			ctrl.Mount(cmd.Context())
			return chatLoop(cmd.Context(), cmd.OutOrStdout(), line, ctrl, broker)
		},
	}
}

func chatLoop(ctx context.Context, out io.Writer, line *liner.State, ctrl *session.Controller, broker *auth.Broker) error {
	md := newMarkdown()
	for _, m := range ctrl.Log() {
		printMessage(out, md, m)
	}
	fmt.Fprintln(out, infoStyle.Render("Commands: /delete clears history, /logout signs out, /quit exits."))

	for {
		input, err := line.Prompt(promptStyle.Render("> "))
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		switch strings.TrimSpace(input) {
		case "/quit", "/exit":
			return nil
		case "/logout":
			broker.Publish(auth.Event{Kind: auth.SignedOut, UserID: ctrl.UserID()})
			fmt.Fprintln(out, infoStyle.Render("Signed out."))
			return nil
		case "/delete":
			deleted, err := ctrl.Delete(ctx, linerConfirm(line))
			if err != nil {
				printNotice(out, ctrl, err)
				continue
			}
			if deleted {
				fmt.Fprintln(out, infoStyle.Render("Chat history deleted."))
			}
			continue
		}

		before := len(ctrl.Log())
		if err := ctrl.Submit(ctx, input); err != nil {
			printNotice(out, ctrl, err)
			if ctrl.State() == session.Error {
				ctrl.Acknowledge()
			}
			continue
		}
		for _, m := range ctrl.Log()[before+1:] {
			printMessage(out, md, m)
		}
	}
}

func printNotice(out io.Writer, ctrl *session.Controller, err error) {
	if n := ctrl.Notice(); n != nil {
		fmt.Fprintln(out, warningStyle.Render(n.Text))
		return
	}
	fmt.Fprintln(out, errorStyle.Render(err.Error()))
}

func newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the local chat history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			ctrl := session.NewController(auth.Session{UserID: userID}, store, newRelayClient(),
				session.Options{Language: clientCfg.Language, Logger: logger})
			ctrl.Mount(cmd.Context())

			confirm := session.ConfirmFunc(func(context.Context, string) bool { return yes })
			if !yes {
				line := liner.NewLiner()
				defer line.Close()
				confirm = linerConfirm(line)
			}
			deleted, err := ctrl.Delete(cmd.Context(), confirm)
			if err != nil {
				return err
			}
			if deleted {
				fmt.Fprintln(cmd.OutOrStdout(), infoStyle.Render("Chat history deleted."))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
