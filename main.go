package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dhcgn/imap-otp/cmd"
	"github.com/dhcgn/imap-otp/command"
	"github.com/dhcgn/imap-otp/config"
	"github.com/dhcgn/imap-otp/credential"
	"github.com/dhcgn/imap-otp/extract"
	"github.com/dhcgn/imap-otp/imap"
	"github.com/dhcgn/imap-otp/mailbox"
	"github.com/dhcgn/imap-otp/mbox"
	"github.com/dhcgn/imap-otp/model"
	"github.com/dhcgn/imap-otp/notify"
	"github.com/dhcgn/imap-otp/runner"
)

var errRequestFailed = errors.New("request failed")

func main() {
	rootCmd := &cobra.Command{
		Use:          "imap-otp [address:password]",
		Short:        "Fetch the latest ride verification code from a mailbox",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting imap-otp", "host", cfg.IMAPHost, "mbox", cfg.MboxPath, "timeout", cfg.Timeout)

			return run(cmd.Context(), cmd.OutOrStdout(), cfg, args, logger)
		},
	}

	config.RegisterFlags(rootCmd)
	rootCmd.AddCommand(cmd.NewExtractCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		if errors.Is(err, errRequestFailed) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, cfg config.Config, args []string, logger *slog.Logger) error {
	extractor, err := extract.New(cfg.Policy)
	if err != nil {
		return fmt.Errorf("extract.New: %w", err)
	}

	opener, err := newOpener(cfg, logger)
	if err != nil {
		return err
	}

	r, err := runner.New(opener, extractor, runner.Options{
		Timeout:       cfg.Timeout,
		Lookback:      cfg.Lookback,
		MaxCandidates: cfg.MaxCandidates,
		SenderDomains: cfg.Policy.SenderDomains,
	}, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	handler := command.NewHandler(r, logger)

	var reply command.Reply
	if len(args) == 1 {
		reply = handler.Handle(ctx, args[0])
	} else {
		creds, err := resolveCredentials(cfg)
		if err != nil {
			return err
		}
		reply = handler.HandleCredentials(ctx, creds)
	}

	printReply(out, reply)

	if cfg.WebhookURL != "" {
		d, err := notify.NewDiscord(cfg.WebhookURL, "")
		if err != nil {
			return fmt.Errorf("notify.NewDiscord: %w", err)
		}
		if err := d.Send(reply); err != nil {
			logger.Warn("webhook delivery failed", "err", err)
		}
	}

	if !reply.Success {
		return errRequestFailed
	}
	return nil
}

func newOpener(cfg config.Config, logger *slog.Logger) (mailbox.Opener, error) {
	if cfg.MboxPath != "" {
		o, err := mbox.NewOpener(mbox.Options{Path: cfg.MboxPath}, logger)
		if err != nil {
			return nil, fmt.Errorf("mbox.NewOpener: %w", err)
		}
		return o, nil
	}

	o, err := imap.NewOpener(imap.Options{
		Host:               cfg.IMAPHost,
		Port:               cfg.IMAPPort,
		UseTLS:             cfg.UseTLS,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Mailbox:            cfg.Mailbox,
		DialTimeout:        cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("imap.NewOpener: %w", err)
	}
	return o, nil
}

// resolveCredentials takes the secret from --secret or IMAP_OTP_SECRET and
// falls back to the keyring when --keyring is set.
func resolveCredentials(cfg config.Config) (model.Credentials, error) {
	if cfg.Address == "" {
		return model.Credentials{}, fmt.Errorf("--address or an address:password argument is required")
	}

	secret := cfg.Secret
	if secret == "" && cfg.UseKeyring {
		store, err := credential.Open()
		if err != nil {
			return model.Credentials{}, err
		}
		secret, err = store.Lookup(cfg.Address)
		if err != nil {
			return model.Credentials{}, fmt.Errorf("keyring lookup: %w", err)
		}
	}
	if secret == "" {
		return model.Credentials{}, fmt.Errorf("no password given: use --secret, IMAP_OTP_SECRET or --keyring")
	}
	return model.Credentials{Address: cfg.Address, Secret: secret}, nil
}

func printReply(w io.Writer, reply command.Reply) {
	if !reply.Success {
		color.New(color.FgRed, color.Bold).Fprintf(w, "%s: ", reply.Title)
		fmt.Fprintln(w, reply.Message)
		return
	}

	color.New(color.FgGreen, color.Bold).Fprintf(w, "%s: ", reply.Title)
	color.New(color.Bold).Fprintln(w, reply.Code)
	if reply.Subject != "" {
		fmt.Fprintf(w, "  Subject:  %s\n", reply.Subject)
	}
	if !reply.ReceivedAt.IsZero() {
		fmt.Fprintf(w, "  Received: %s\n", reply.ReceivedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	// stdout carries the reply, logs go to stderr.
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("imap-otp-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler), cleanup, nil
}
