package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"donorkit/internal/config"
	"donorkit/internal/flow"
	donormcp "donorkit/internal/mcp"
	"donorkit/internal/platform"
	"donorkit/internal/store"
	"donorkit/internal/table"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		if err := runSession(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "extract":
		if err := runExtract(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "donations":
		if err := runDonations(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("donorkit %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

type cliOptions struct {
	configPath string
	dbPath     string
	locale     string
	platforms  string
	inactivity string
	session    string
	verbose    bool
}

func parseFlags(args []string) (cliOptions, []string, error) {
	var opts cliOptions
	var rest []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		value := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			i++
			return args[i], nil
		}

		var err error
		switch {
		case arg == "--config":
			opts.configPath, err = value()
		case arg == "--db":
			opts.dbPath, err = value()
		case arg == "--locale":
			opts.locale, err = value()
		case arg == "--platforms":
			opts.platforms, err = value()
		case arg == "--inactivity":
			opts.inactivity, err = value()
		case arg == "--session":
			opts.session, err = value()
		case arg == "--verbose":
			opts.verbose = true
		case strings.HasPrefix(arg, "-"):
			return opts, nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			rest = append(rest, arg)
		}
		if err != nil {
			return opts, nil, err
		}
	}
	return opts, rest, nil
}

// buildLogger logs to stderr so stdout stays free for the presenter and the
// MCP stdio transport.
func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func resolve(opts cliOptions) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:    opts.configPath,
		CLIDBPath:     opts.dbPath,
		CLILocale:     opts.locale,
		CLIPlatforms:  opts.platforms,
		CLIInactivity: opts.inactivity,
	})
}

// buildRegistry constructs the extractors with the resolved analysis window
// and inactivity threshold applied.
func buildRegistry(cfg config.ResolvedConfig, logger *zap.Logger) *platform.Registry {
	from, to := cfg.Window()

	tiktok := platform.NewTikTok()
	tiktok.FilterStart = from
	tiktok.FilterEnd = to
	tiktok.Inactivity = cfg.InactivityDuration()
	tiktok.Logger = logger

	chatgpt := platform.NewChatGPT()
	chatgpt.Logger = logger

	reg := platform.NewRegistry()
	reg.Register(tiktok)
	reg.Register(chatgpt)
	return reg
}

func selectExtractors(reg *platform.Registry, names []string) ([]platform.Extractor, error) {
	out := make([]platform.Extractor, 0, len(names))
	for _, n := range names {
		e := reg.Get(n)
		if e == nil {
			return nil, fmt.Errorf("unknown platform: %s", n)
		}
		out = append(out, e)
	}
	return out, nil
}

func runSession(args []string) error {
	opts, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}
	logger, err := buildLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	extractors, err := selectExtractors(buildRegistry(cfg, logger), cfg.PlatformNames())
	if err != nil {
		return err
	}

	runner := flow.NewRunner(flow.RunnerConfig{
		SessionID:  uuid.NewString(),
		Extractors: extractors,
		ChunkRows:  cfg.ChunkRowCount(),
		Locale:     cfg.Locale.Value,
		Logger:     logger,
	})

	p := newPresenter(os.Stdin, os.Stdout)
	return p.Run(context.Background(), runner, st)
}

func runServe(args []string) error {
	opts, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}
	logger, err := buildLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	srv := donormcp.NewServer(donormcp.ServerConfig{
		Store:     st,
		Registry:  buildRegistry(cfg, logger),
		Locale:    cfg.Locale.Value,
		ChunkRows: cfg.ChunkRowCount(),
		Version:   version,
		Logger:    logger,
	})

	logger.Info("mcp server listening on stdio")
	return server.ServeStdio(srv)
}

func runExtract(args []string) error {
	opts, rest, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return fmt.Errorf("usage: donorkit extract <platform> <file>")
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}
	logger, err := buildLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	e := buildRegistry(cfg, logger).Get(rest[0])
	if e == nil {
		return fmt.Errorf("unknown platform: %s", rest[0])
	}

	results, err := e.Extract(context.Background(), rest[1])
	if err != nil {
		return fmt.Errorf("extracting %s: %w", rest[1], err)
	}

	type resultOut struct {
		ID          string       `json:"id"`
		Title       string       `json:"title"`
		Description string       `json:"description,omitempty"`
		Table       *table.Table `json:"table"`
	}
	out := make([]resultOut, 0, len(results))
	for _, r := range results {
		out = append(out, resultOut{ID: r.ID, Title: r.Title, Description: r.Description, Table: r.Table})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runDonations(args []string) error {
	opts, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}

	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	donations, err := st.ListDonations(context.Background(), opts.session)
	if err != nil {
		return err
	}
	if len(donations) == 0 {
		fmt.Println("No donations stored.")
		return nil
	}

	for _, d := range donations {
		fmt.Printf("%-6d %-24s %-10s %s  %d bytes\n",
			d.ID, d.SessionID, d.Platform, d.CreatedAt.Format("2006-01-02 15:04:05"), len(d.Payload))
	}
	return nil
}

func runStats(args []string) error {
	opts, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}

	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Donations: %d\n", stats.DonationCount)
	fmt.Printf("Sessions:  %d\n", stats.SessionCount)
	fmt.Printf("DB size:   %d bytes\n", stats.DBSizeBytes)
	return nil
}

func printUsage() {
	fmt.Printf(`donorkit %s — Data donation toolkit for platform exports

Usage:
  donorkit <command> [arguments]

Commands:
  run                 Walk a donation session in the terminal
  serve               Serve the donation flow over MCP stdio
  extract <platform> <file>
                      Extract tables from an export file to stdout
  donations           List stored donations
  stats               Show outbox statistics
  version             Print version

Flags:
  --config <path>     Config file (default: ~/.donorkit/config.yaml)
  --db <path>         Outbox database path
  --locale <code>     Prompt language: en or nl
  --platforms <csv>   Platforms to walk through, e.g. tiktok,chatgpt
  --inactivity <dur>  Session gap threshold, e.g. 5m
  --session <id>      Scope donations listing to one session
  --verbose           Debug logging
`, version)
}
