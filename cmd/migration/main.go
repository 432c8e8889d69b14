package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
)

var errUsage = errors.New("usage")

var migrationDirCandidates = []string{"./db/migrations", "/app/db/migrations"}

func main() {
	_ = godotenv.Load()
	log := logging.NewConsole(logging.LevelInfo).Named("migration")
	defer func() { _ = log.Sync() }()

	err := run(context.Background(), os.Args[1:], os.Stdout, log)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		printUsage(os.Stderr)
		os.Exit(2)
	default:
		log.Error("migration failed", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, log *logging.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return errors.New("DB_URL is required")
	}
	if envBool("DB_DISABLE_PREPARED_BINARY_RESULT") {
		dbURL = withoutPreparedBinaryResults(dbURL)
	}

	cmd, rest := strings.ToLower(strings.TrimSpace(args[0])), args[1:]
	if cmd == "seed" {
		return seed(ctx, dbURL, log)
	}

	dir, err := migrationsDir(os.Getenv("MIGRATIONS_DIR"), os.Getenv("MIGRATIONS_PATH"))
	if err != nil {
		return err
	}
	source := "file://" + filepath.ToSlash(dir)
	m, err := migrate.New(source, dbURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			log.Warn("close migrator", "error", err)
		}
	}()

	switch cmd {
	case "up":
		return applied(log, m.Up(), "migrations applied", "source", source)
	case "down":
		steps, err := parseSteps(rest)
		if err != nil {
			return err
		}
		return applied(log, m.Steps(-steps), "rolled back migrations", "steps", steps)
	case "goto", "migrate":
		if len(rest) == 0 {
			return fmt.Errorf("%w: goto requires a target version", errUsage)
		}
		target, err := parseTarget(rest[0])
		if err != nil {
			return err
		}
		return applied(log, m.Migrate(target), "migrated", "version", target)
	case "force":
		if len(rest) == 0 {
			return fmt.Errorf("%w: force requires a version", errUsage)
		}
		version, err := parseVersion(rest[0])
		if err != nil {
			return err
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
		log.Info("forced version", "version", version)
		return nil
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			_, err = fmt.Fprintln(out, "version: none\ndirty: false")
			return err
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		_, err = fmt.Fprintf(out, "version: %d\ndirty: %t\n", version, dirty)
		return err
	default:
		return errUsage
	}
}

// seed loads the demo season, teams and fixtures into an empty schema.
func seed(ctx context.Context, dbURL string, log *logging.Logger) error {
	db, err := sqlx.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := postgres.BootstrapSeed(ctx, db, time.Now()); err != nil {
		return err
	}
	log.Info("seed applied")
	return nil
}

func applied(log *logging.Logger, err error, msg string, args ...any) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no migration changes")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info(msg, args...)
	return nil
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, errors.New("down steps must be > 0")
	}
	return steps, nil
}

func parseVersion(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if v < 0 {
		return 0, errors.New("version must be >= 0")
	}
	return v, nil
}

func parseTarget(raw string) (uint, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid target version %q: %w", raw, err)
	}
	return uint(v), nil
}

// migrationsDir returns the first existing directory among the overrides and
// the default locations.
func migrationsDir(overrides ...string) (string, error) {
	for _, candidate := range append(overrides, migrationDirCandidates...) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}
	return "", fmt.Errorf("migration directory not found (checked MIGRATIONS_DIR, MIGRATIONS_PATH, %s)", strings.Join(migrationDirCandidates, ", "))
}

func withoutPreparedBinaryResults(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn
	}
	q := u.Query()
	if !q.Has("disable_prepared_binary_result") {
		q.Set("disable_prepared_binary_result", "yes")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func envBool(key string) bool {
	ok, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return ok
}

func printUsage(w io.Writer) {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "usage: %s <up|down|version|force|goto|seed> [args]\n", name)
	fmt.Fprintln(w, "examples:")
	for _, ex := range []string{"up", "down 1", "version", "force 1", "goto 1", "seed"} {
		fmt.Fprintf(w, "  %s %s\n", name, ex)
	}
}
