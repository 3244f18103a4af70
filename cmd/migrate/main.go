// Command migrate applies the schema for the batch, document and record store.
// Usage: migrate up | down | steps N | force V | version
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"aforo/internal/config"
)

const usage = "Usage: migrate [up|down|steps N|force V|version]"

// zapMigrateLogger routes golang-migrate progress through zap.
type zapMigrateLogger struct {
	log *zap.SugaredLogger
}

func (l zapMigrateLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l zapMigrateLogger) Verbose() bool { return false }

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	m, err := migrate.New(cfg.DB.MigrationsPath, cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	m.Log = zapMigrateLogger{log: zap.S().Named("migrate")}

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
	case "steps", "force":
		if len(args) < 2 {
			return fmt.Errorf("%s requires a number argument", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid %s argument: %w", args[0], err)
		}
		if args[0] == "force" {
			// clears the dirty flag after a failed migration was fixed by hand
			if err := m.Force(n); err != nil {
				return fmt.Errorf("force version %d failed: %w", n, err)
			}
			break
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration steps failed: %w", err)
		}
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get version: %w", err)
	}
	zap.L().Info("migrate: done",
		zap.String("command", args[0]),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}
