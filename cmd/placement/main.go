package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"

	"github.com/balaji090804/placement-portal/internal/config"
	"github.com/balaji090804/placement-portal/internal/db"
	"github.com/balaji090804/placement-portal/internal/lock"
	"github.com/balaji090804/placement-portal/internal/mcp"
	"github.com/balaji090804/placement-portal/internal/metrics"
	"github.com/balaji090804/placement-portal/internal/notify"
	"github.com/balaji090804/placement-portal/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"apply": true, "show": true, "transition": true, "schedule": true,
	"archive": true, "notes": true, "applications": true,
	"slot-create": true, "book": true, "cancel": true, "slots": true,
	"offer-create": true, "release": true, "respond": true, "offers": true,
	"history": true, "serve": true,
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
  placement

  Campus placement workflow

  Usage: placement <command> [options]
         placement --help

  MCP server mode requires piped input.`)
}

func main() {
	setupLogging()
	defer klog.Flush()

	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil)
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
	baseDir := filepath.Join(homeDir, ".placement")

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine working directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	m := metrics.New()
	o, closeFn, err := newOrchestrator(context.Background(), database, cfg, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	if isCLIMode() {
		app := newCLIApp(o, m)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'placement --help' for usage.\n")
		os.Exit(1)
	}

	if err := mcp.Run(o, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging routes klog to stderr and takes its verbosity from
// PLACEMENT_LOG_V, keeping stdout clean for the MCP transport.
func setupLogging() {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	_ = fs.Set("logtostderr", "true")
	if v := os.Getenv("PLACEMENT_LOG_V"); v != "" {
		if err := fs.Set("v", v); err != nil {
			fmt.Fprintf(os.Stderr, "warning: invalid PLACEMENT_LOG_V %q\n", v)
		}
	}
}

// loadConfig merges defaults, ~/.placement/config.json, the nearest repo
// .placement/config.json and PLACEMENT_* environment overrides.
func loadConfig(baseDir, cwd string) (*config.Config, error) {
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return nil, err
	}
	cfg, err = config.LoadEnv(cfg, cwd)
	if err != nil {
		return nil, err
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		klog.Warningf("Ignoring unknown disabled_tools: %v", unknown)
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		klog.Warningf("Ignoring unknown disabled_types: %v", unknown)
	}
	return cfg, nil
}

// newOrchestrator wires the orchestrator. With a Redis URL configured, locks
// are shared across processes and events are also published on the
// configured channel; otherwise locks are in-process and events are logged.
func newOrchestrator(ctx context.Context, database *sql.DB, cfg *config.Config, m *metrics.Metrics) (*ops.Orchestrator, func(), error) {
	opts := []ops.Option{ops.WithMetrics(m)}
	if cfg.RedisURL == "" {
		return ops.New(database, cfg, opts...), func() {}, nil
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis_url: %w", err)
	}
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	klog.V(1).InfoS("Using Redis for locks and events", "addr", redisOpts.Addr, "channel", cfg.RedisChannel)

	opts = append(opts,
		ops.WithLocker(lock.NewRedis(client, "placement:lock:", cfg.LockTimeout())),
		ops.WithNotifier(notify.Multi{notify.Log{}, notify.NewRedisPublisher(client, cfg.RedisChannel)}),
	)
	return ops.New(database, cfg, opts...), func() { client.Close() }, nil
}
