package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhcgn/imap-otp/config"
	"github.com/dhcgn/imap-otp/extract"
	"github.com/dhcgn/imap-otp/message"
)

// NewExtractCommand returns the "extract" subcommand, which runs the code
// extractor over a single saved message without touching a mailbox.
func NewExtractCommand() *cobra.Command {
	extractCmd := &cobra.Command{
		Use:   "extract [message.eml]",
		Short: "Extract a verification code from a saved email (reads stdin without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := config.LoadPolicy(cmd)
			if err != nil {
				return err
			}
			extractor, err := extract.New(policy)
			if err != nil {
				return fmt.Errorf("create extractor: %w", err)
			}

			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			msg, err := message.Parse(raw)
			if err != nil {
				return fmt.Errorf("parse message: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "From:    %s\n", msg.Sender)
			fmt.Fprintf(out, "Subject: %s\n", msg.Subject)

			result := extractor.TryExtract(msg)
			if !result.OK() {
				fmt.Fprintf(out, "Result:  %s (%s)\n", result.Failure(), result.Detail())
				return fmt.Errorf("no code extracted: %s", result.Failure())
			}
			fmt.Fprintf(out, "Code:    %s (rule %s)\n", result.Code(), result.Rule())
			return nil
		},
	}

	config.RegisterPolicyFlags(extractCmd)
	return extractCmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return raw, nil
}
