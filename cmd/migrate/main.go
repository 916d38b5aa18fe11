// Command migrate manages the ledger schema. Migrations are compiled into
// the binary; -path is only used by create.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rentals/backend/internal/infrastructure/config"
	"github.com/rentals/backend/internal/infrastructure/logger"
	"github.com/rentals/backend/internal/infrastructure/migration"
	"github.com/rentals/backend/migrations"
	"go.uber.org/zap"
)

var errUsage = errors.New("invalid usage")

// opts are the parsed flags shared by every command
type opts struct {
	path    string
	confirm bool
	log     *zap.Logger
}

// command is one subcommand. Commands with a nil migrate func work offline.
type command struct {
	usage   string
	help    string
	offline func(args []string, o opts) error
	migrate func(m *migration.Migrator, args []string, o opts) error
}

var commands = []struct {
	name string
	command
}{
	{"up", command{usage: "up", help: "Apply all pending migrations",
		migrate: func(m *migration.Migrator, _ []string, _ opts) error { return m.Up() }}},
	{"down", command{usage: "down", help: "Roll back every migration, needs -yes",
		migrate: down}},
	{"step", command{usage: "step <n>", help: "Apply n migrations (negative rolls back)",
		migrate: step}},
	{"goto", command{usage: "goto <version>", help: "Migrate to a specific version",
		migrate: gotoVersion}},
	{"version", command{usage: "version", help: "Show the current version",
		migrate: showVersion}},
	{"force", command{usage: "force <version>", help: "Set the version after a failed run",
		migrate: force}},
	{"create", command{usage: "create <name> [desc]", help: "Write the next migration pair under -path",
		offline: create}},
	{"list", command{usage: "list", help: "List embedded migrations",
		offline: list}},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c.command, true
		}
	}
	return command{}, false
}

func main() {
	var (
		o        opts
		logLevel string
	)
	flag.StringVar(&o.path, "path", "migrations", "Directory new migration files are written to")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&o.confirm, "yes", false, "Confirm a full rollback")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.DateTime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	o.log = log.With(zap.String("command", args[0]))

	err = dispatch(args, o)
	_ = log.Sync()
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	case err != nil:
		o.log.Error("Migration command failed", zap.Error(err))
		os.Exit(1)
	}
}

func dispatch(args []string, o opts) error {
	cmd, ok := lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	if cmd.offline != nil {
		return cmd.offline(args[1:], o)
	}

	m, err := connect(o.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			o.log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return cmd.migrate(m, args[1:], o)
}

func connect(log *zap.Logger) (*migration.Migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database %s: %w", cfg.Database.DBName, err)
	}

	m, err := migration.New(db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// intArg parses the single integer argument of step, goto and force
func intArg(args []string, usage string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: migrate %s", errUsage, usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	return n, nil
}

func down(m *migration.Migrator, _ []string, o opts) error {
	if !o.confirm {
		return fmt.Errorf("%w: down drops every ledger table, pass -yes", errUsage)
	}
	return m.Down()
}

func step(m *migration.Migrator, args []string, _ opts) error {
	n, err := intArg(args, "step <n>")
	if err != nil {
		return err
	}
	return m.Steps(n)
}

func gotoVersion(m *migration.Migrator, args []string, _ opts) error {
	v, err := intArg(args, "goto <version>")
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%w: version must not be negative", errUsage)
	}
	return m.GoTo(uint(v))
}

func showVersion(m *migration.Migrator, _ []string, o opts) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	o.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func force(m *migration.Migrator, args []string, _ opts) error {
	v, err := intArg(args, "force <version>")
	if err != nil {
		return err
	}
	return m.Force(v)
}

func create(args []string, o opts) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("%w: migrate create <name> [description]", errUsage)
	}
	var description string
	if len(args) == 2 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(o.path, args[0], description)
	if err != nil {
		return err
	}
	o.log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func list(_ []string, o opts) error {
	names, err := migration.ListMigrations(migrations.FS)
	if err != nil {
		return err
	}
	o.log.Info("Embedded migrations", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

func printUsage() {
	var b strings.Builder
	b.WriteString("Ledger database migration tool\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-22s%s\n", c.usage, c.help)
	}
	b.WriteString("\nFlags:\n")
	fmt.Fprint(os.Stderr, b.String())
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "\nDatabase settings come from config.toml and LEDGER_DATABASE_* variables.")
}
