package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhcgn/imap-otp/extract"
)

const envPrefix = "IMAP_OTP"

// Config captures all options required to serve a request.
type Config struct {
	Address            string
	Secret             string
	UseKeyring         bool
	IMAPHost           string
	IMAPPort           int
	UseTLS             bool
	InsecureSkipVerify bool
	Mailbox            string
	MboxPath           string
	Timeout            time.Duration
	Lookback           time.Duration
	MaxCandidates      int
	WebhookURL         string
	LogLevel           string
	LogDir             string
	Policy             extract.Options
}

// RegisterFlags attaches the connection, request and logging flags.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("config", "", "Optional YAML config file")
	flags.String("address", "", "Mailbox address")
	flags.String("secret", "", "Mailbox password (falls back to IMAP_OTP_SECRET env var or the keyring)")
	flags.Bool("keyring", false, "Look up the password in the OS keyring by address")
	flags.String("imap-host", "outlook.office365.com", "IMAP server hostname")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("mailbox", "INBOX", "Mailbox to search")
	flags.String("mbox", "", "Serve the request from a local mbox export instead of IMAP")
	flags.Duration("timeout", 8*time.Second, "Upper bound for connect, search and extraction")
	flags.Duration("lookback", 24*time.Hour, "Only consider mail received within this window (0 disables)")
	flags.Int("max-candidates", 20, "Maximum number of matching messages to inspect")
	flags.String("webhook-url", "", "Discord webhook that receives the reply")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files in addition to stderr")
	RegisterPolicyFlags(cmd)
}

// RegisterPolicyFlags attaches the extraction policy flags.
func RegisterPolicyFlags(cmd *cobra.Command) {
	defaults := extract.DefaultOptions()
	flags := cmd.Flags()
	flags.StringSlice("sender-domain", defaults.SenderDomains, "Sending domains a verification email must come from")
	flags.StringSlice("label", defaults.Labels, "Words that label a code, matched case-insensitively")
	flags.Int("min-digits", defaults.MinDigits, "Shortest accepted code")
	flags.Int("max-digits", defaults.MaxDigits, "Longest accepted code")
	flags.Int("label-window", defaults.LabelWindow, "Words allowed between a label and its code")
}

// LoadConfig resolves flags, IMAP_OTP_* environment variables and the
// optional config file, in that order of precedence, and validates the result.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return Config{}, err
	}

	logLevel := strings.ToLower(v.GetString("log-level"))
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		Address:            strings.TrimSpace(v.GetString("address")),
		Secret:             v.GetString("secret"),
		UseKeyring:         v.GetBool("keyring"),
		IMAPHost:           v.GetString("imap-host"),
		IMAPPort:           v.GetInt("imap-port"),
		UseTLS:             v.GetBool("use-tls"),
		InsecureSkipVerify: v.GetBool("insecure-skip-verify"),
		Mailbox:            v.GetString("mailbox"),
		MboxPath:           v.GetString("mbox"),
		Timeout:            v.GetDuration("timeout"),
		Lookback:           v.GetDuration("lookback"),
		MaxCandidates:      v.GetInt("max-candidates"),
		WebhookURL:         v.GetString("webhook-url"),
		LogLevel:           logLevel,
		LogDir:             v.GetString("log-dir"),
		Policy:             policyFrom(v),
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPolicy resolves only the extraction policy.
func LoadPolicy(cmd *cobra.Command) (extract.Options, error) {
	v, err := newViper(cmd)
	if err != nil {
		return extract.Options{}, err
	}
	policy := policyFrom(v)
	if err := validatePolicy(policy); err != nil {
		return extract.Options{}, err
	}
	return policy, nil
}

func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return v, nil
}

func policyFrom(v *viper.Viper) extract.Options {
	return extract.Options{
		SenderDomains: v.GetStringSlice("sender-domain"),
		Labels:        v.GetStringSlice("label"),
		MinDigits:     v.GetInt("min-digits"),
		MaxDigits:     v.GetInt("max-digits"),
		LabelWindow:   v.GetInt("label-window"),
	}
}

func validateConfig(cfg Config) error {
	if cfg.MboxPath == "" {
		if cfg.IMAPHost == "" {
			return fmt.Errorf("--imap-host is required")
		}
		if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
			return fmt.Errorf("--imap-port must be between 1 and 65535")
		}
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	if cfg.Lookback < 0 {
		return fmt.Errorf("--lookback must not be negative")
	}
	if cfg.MaxCandidates <= 0 {
		return fmt.Errorf("--max-candidates must be positive")
	}
	if err := validatePolicy(cfg.Policy); err != nil {
		return err
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func validatePolicy(p extract.Options) error {
	if len(p.SenderDomains) == 0 {
		return fmt.Errorf("--sender-domain is required")
	}
	if len(p.Labels) == 0 {
		return fmt.Errorf("--label is required")
	}
	if p.MinDigits <= 0 || p.MaxDigits < p.MinDigits {
		return fmt.Errorf("--min-digits and --max-digits must form a positive range")
	}
	if p.LabelWindow < 0 {
		return fmt.Errorf("--label-window must not be negative")
	}
	return nil
}
