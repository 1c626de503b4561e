package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/grove/internal/config"
	"github.com/hpungsan/grove/internal/db"
	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/kv"
	"github.com/hpungsan/grove/internal/mcp"
	"github.com/hpungsan/grove/internal/ops"
	"github.com/hpungsan/grove/internal/state"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"refresh": true, "list": true, "get": true,
	"archive": true, "restore": true, "delete": true,
	"lock": true, "star": true, "category": true,
	"move": true, "move-tab": true, "dedupe": true,
	"open": true, "create": true, "merge-windows": true,
	"import-closed": true, "import-md": true, "export": true,
	"classify": true, "group-by-domain": true, "rules": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    __ _ _ __ _____   _____
   / _' | '__/ _ \ \ / / _ \
  | (_| | | | (_) \ V /  __/
   \__, |_|  \___/ \_/ \___|
   |___/

  Tab groups, history and rules

  Usage: grove <command> [options]
         grove --help

  MCP server mode requires piped input.`)
}

// env is everything a command needs. host is the offline session file the
// commands operate on; it is written back after each command.
type env struct {
	baseDir string
	cfg     *config.Config
	logger  *slog.Logger
	host    *host.Memory
	c       *ops.Coordinator
	store   kv.Store
}

// saveHost writes the host session back to disk.
func (e *env) saveHost() error {
	return e.host.Save(e.cfg.HostFile)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening the store
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".grove")

	wd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, wd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}

	e, err := openEnv(baseDir, cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer e.store.Close()

	if isCLIMode() {
		app := newCLIApp(e)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'grove --help' for usage.\n")
		os.Exit(1)
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		e.logger.Warn("ignoring unknown disabled_tools", "tools", unknown)
	}
	if err := mcp.Run(e.c, cfg, e.logger, e.saveHost, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openEnv opens the configured store and host file and wires a coordinator.
// Logs go to logOut; stdout is reserved for command output and MCP traffic.
func openEnv(baseDir string, cfg *config.Config, logOut io.Writer) (*env, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	// Default target for rule exports; db.Init creates it too, badger does not.
	if err := os.MkdirAll(filepath.Join(baseDir, "exports"), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}

	var store kv.Store
	switch cfg.StoreBackend {
	case config.BackendBadger:
		b, err := kv.OpenBadger(kv.BadgerConfig{Path: filepath.Join(baseDir, "badger"), Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		store = b
	default:
		database, err := db.Init(baseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db.ConfigurePool(database, cfg)
		store = db.NewKV(database)
	}

	h, err := host.LoadMemory(cfg.HostFile)
	if err != nil {
		store.Close()
		return nil, err
	}

	c := ops.NewCoordinator(h, h, state.New(store, logger), logger, ops.Options{
		SessionMaxResults: cfg.SessionMaxResults,
		ArchiveClosesTabs: cfg.ArchiveClosesTabs,
	})
	return &env{baseDir: baseDir, cfg: cfg, logger: logger, host: h, c: c, store: store}, nil
}
