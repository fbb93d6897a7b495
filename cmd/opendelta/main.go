package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/opendelta/opendelta/internal/config"
	"github.com/opendelta/opendelta/internal/llm"
	"github.com/opendelta/opendelta/internal/logging"
	"github.com/opendelta/opendelta/internal/stream"
)

// version is the CLI build version.
const version = "0.1.0"

// options holds the CLI flags shared across subcommands.
type options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string
	// Dialect overrides the configured stream payload dialect.
	Dialect string
	// Model overrides the default model selection.
	Model string
	// SystemPrompt prepends a system message to the conversation.
	SystemPrompt string
	// MaxTokens caps the completion length when positive.
	MaxTokens int
	// OutputFormat selects text or stream-json output.
	OutputFormat string
	// Render converts the final answer to terminal markdown.
	Render bool
	// Save persists a session transcript to disk.
	Save bool
	// SessionID fixes the session id instead of generating one.
	SessionID string
	// Verbose raises the log level to DEBUG.
	Verbose bool
	// Version prints the CLI version.
	Version bool
}

// main wires Cobra and executes the CLI.
func main() {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "opendelta",
		Short: "OpenDelta - streaming decoder CLI for text-generation gateways",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Version {
				fmt.Println(version)
				return nil
			}
			return cmd.Help()
		},
	}

	applyGlobalFlags(rootCmd.PersistentFlags(), opts)
	rootCmd.Flags().BoolVarP(&opts.Version, "version", "v", false, "Print the version and exit")

	rootCmd.AddCommand(chatCommand(opts))
	rootCmd.AddCommand(replayCommand(opts))
	rootCmd.AddCommand(sessionsCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "opendelta: %v\n", err)
		os.Exit(1)
	}
}

// applyGlobalFlags defines the flags every subcommand accepts.
func applyGlobalFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.ConfigPath, "config", "", "Path to the config file")
	flags.StringVar(&opts.Dialect, "dialect", "", "Stream payload dialect (openai or anthropic)")
	flags.StringVarP(&opts.Model, "model", "m", "", "Model id or configured alias")
	flags.StringVar(&opts.OutputFormat, "output-format", "text", "Output format (text or stream-json)")
	flags.BoolVar(&opts.Verbose, "verbose", false, "Enable debug logging")
}

// chatCommand streams a completion for a prompt, or starts the interactive UI.
func chatCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Stream a completion from the configured gateway",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.SystemPrompt, "system-prompt", "", "System prompt for the conversation")
	cmd.Flags().IntVar(&opts.MaxTokens, "max-tokens", 0, "Maximum completion tokens")
	cmd.Flags().BoolVar(&opts.Render, "render", false, "Render the final answer as markdown")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save the session transcript")
	cmd.Flags().StringVar(&opts.SessionID, "session-id", "", "Use a fixed session id")
	return cmd
}

// replayCommand feeds a captured SSE byte stream through the decoder.
func replayCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <capture>",
		Short: "Decode a captured SSE stream and emit stream-json events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0])
		},
	}
}

// sessionsCommand lists saved sessions or prints one transcript.
func sessionsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions [session-id]",
		Short: "List saved sessions or print one transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runShowSession(args[0])
			}
			return runListSessions(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions to list")
	return cmd
}

// loadConfig reads the provider config and applies CLI overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Dialect != "" {
		cfg.Dialect = opts.Dialect
		if !stream.Dialect(cfg.Dialect).Valid() {
			return nil, fmt.Errorf("unknown dialect %q", cfg.Dialect)
		}
	}
	return cfg, nil
}

// buildLogger constructs the zap logger from config and the verbose flag.
func buildLogger(cfg *config.Config, opts *options) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if opts.Verbose {
		level = "DEBUG"
	}
	return logging.New(level, cfg.Logging.File)
}

// buildClient constructs the gateway client from the resolved config.
func buildClient(cfg *config.Config, logger *zap.Logger) (*llm.Client, error) {
	return llm.NewClient(llm.ClientConfig{
		BaseURL:        cfg.APIBaseURL,
		APIKey:         cfg.APIKey,
		Dialect:        stream.Dialect(cfg.Dialect),
		Timeout:        time.Duration(cfg.TimeoutMS) * time.Millisecond,
		ReasoningOpen:  cfg.Reasoning.OpenMarker,
		ReasoningClose: cfg.Reasoning.CloseMarker,
		Logger:         logger,
	})
}
