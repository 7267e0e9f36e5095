package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rsharan/slotflow/pkg/slotflow"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold an intake conversation on the terminal",
		Long: `chat reads messages from stdin and prints the engine's replies.
The conversation persists under --key, so with a sqlite or redis
store you can quit and pick up where you left off.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			svc, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Say something (ctrl-d to quit).")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}

				res, err := svc.Message(ctx, key, text)
				if errors.Is(err, slotflow.ErrConversationEnded) {
					fmt.Fprintln(out, "This conversation is finished. Start a new one with a different --key.")
					return nil
				}
				if err != nil {
					return err
				}

				fmt.Fprintln(out, res.Response)
				if res.Done {
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "cli:local", "conversation key")
	return cmd
}
