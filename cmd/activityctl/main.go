// activityctl is the operator CLI for the device activity store. Each
// invocation opens the configured SQLite database, ensures the schema, runs
// one store operation and prints the result.
//
// Usage:
//
//	activityctl [global flags] <command> [flags]
//
// The database location comes from --db, ACTIVITY_DATABASE_URL or
// DATABASE_URL, in that order. Without one, an in-memory database is used
// and discarded on exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/example/activity-store/internal/application"
	"github.com/example/activity-store/internal/config"
	"github.com/example/activity-store/internal/logging"
	"github.com/example/activity-store/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := newCLI(os.Stdout, os.Stderr)
	os.Exit(cli.run(ctx, os.Args[1:]))
}

// usageError marks a malformed invocation. It exits with status 2.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitError signals a non-zero exit after the command printed its own output.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

type command struct {
	summary string
	flags   func(fs *pflag.FlagSet) func(ctx context.Context, env *environment) error
}

// environment is what a command runs against.
type environment struct {
	store  *application.Store
	pool   *sqlite.ConnectionPool
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	newID  func() uuid.UUID
}

type cli struct {
	stdout io.Writer
	stderr io.Writer

	// Injected by tests.
	now          func() time.Time
	newID        func() uuid.UUID
	hashPassword application.PasswordHasher
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		newID:  uuid.New,
	}
}

// run executes one invocation and returns the process exit status.
func (c *cli) run(ctx context.Context, args []string) int {
	err := c.execute(ctx, args)
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(c.stderr, "error: %v\n", err)

	var usage *usageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}

func (c *cli) execute(ctx context.Context, args []string) error {
	var (
		dbPath    string
		poolSize  int
		logLevel  string
		logFormat string
		seed      bool
	)

	global := pflag.NewFlagSet("activityctl", pflag.ContinueOnError)
	global.SetOutput(io.Discard)
	global.SetInterspersed(false)
	global.StringVar(&dbPath, "db", "", "SQLite database path (default: $ACTIVITY_DATABASE_URL, then $DATABASE_URL, then in-memory)")
	global.IntVar(&poolSize, "pool-size", 0, "maximum open connections (default: $ACTIVITY_POOL_SIZE or 8)")
	global.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default: $ACTIVITY_LOG_LEVEL or warn)")
	global.StringVar(&logFormat, "log-format", "", "log format: json or text (default: $ACTIVITY_LOG_FORMAT or json)")
	global.BoolVar(&seed, "seed", false, "create the test/test account if it is missing")
	help := global.BoolP("help", "h", false, "show help")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			c.printHelp(global)
			return nil
		}
		return usagef("%v", err)
	}
	if *help || global.NArg() == 0 {
		c.printHelp(global)
		if *help {
			return nil
		}
		return usagef("a command is required")
	}

	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return usagef("unknown command %q", name)
	}

	cmdFlags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	cmdFlags.SetOutput(io.Discard)
	action := cmd.flags(cmdFlags)
	if err := cmdFlags.Parse(global.Args()[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(c.stdout, "activityctl %s: %s\n\nFlags:\n%s", name, cmd.summary, cmdFlags.FlagUsages())
			return nil
		}
		return usagef("%s: %v", name, err)
	}
	if cmdFlags.NArg() > 0 {
		return usagef("%s: unexpected argument %q", name, cmdFlags.Arg(0))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if global.Changed("log-level") {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return usagef("--log-level: %v", err)
		}
		cfg.LogLevel = level
	} else if os.Getenv("ACTIVITY_LOG_LEVEL") == "" {
		cfg.LogLevel = slog.LevelWarn
	}
	if global.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if global.Changed("db") {
		cfg.DatabaseURL = dbPath
	}
	if global.Changed("pool-size") {
		if poolSize <= 0 {
			return usagef("--pool-size must be positive")
		}
		cfg.PoolSize = poolSize
	}
	if global.Changed("seed") {
		cfg.SeedTestUser = seed
	}

	logger, err := logging.New(c.stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return usagef("%v", err)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteConfig(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := sqlite.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	repos := sqlite.NewRepositories(pool)
	store := application.NewStore(application.StoreDeps{
		Users:        repos.Users,
		Devices:      repos.Devices,
		Rulesets:     repos.Rulesets,
		Activity:     repos.Activity,
		HashPassword: c.hashPassword,
		Logger:       logger,
	})

	if cfg.SeedTestUser {
		created, err := store.Users.EnsureTestUser(ctx)
		if err != nil {
			return fmt.Errorf("seed test user: %w", err)
		}
		if created {
			logger.Warn("seeded test user", "username", application.TestUsername)
		}
	}

	return action(ctx, &environment{
		store:  store,
		pool:   pool,
		stdout: c.stdout,
		stderr: c.stderr,
		now:    c.now,
		newID:  c.newID,
	})
}

func (c *cli) printHelp(global *pflag.FlagSet) {
	fmt.Fprintf(c.stdout, "activityctl: operate the device activity store\n\nUsage:\n  activityctl [global flags] <command> [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.stdout, "  %-16s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(c.stdout, "\nGlobal flags:\n%s", global.FlagUsages())
}
