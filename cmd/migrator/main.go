package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/matchmate/matchmate-go/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	dir := flag.String("dir", "file://./migrations", "directory with migrations")
	dsn := flag.String("dsn", "", "MySQL DSN (defaults to DATABASE_DSN)")
	action := flag.String("action", "up", "migration action: up, down, version")
	flag.Parse()

	if *dsn == "" {
		*dsn = config.Load().DatabaseDSN
	}

	url, err := migrateURL(*dsn)
	if err != nil {
		slog.Error("invalid dsn", "error", err)
		os.Exit(1)
	}

	m, err := migrate.New(*dir, url)
	if err != nil {
		slog.Error("failed to create migrate instance", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch *action {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			slog.Error("reading version failed", "error", verr)
			os.Exit(1)
		}
		fmt.Printf("version %d (dirty: %v)\n", v, dirty)
		return
	default:
		slog.Error("unknown action", "action", *action)
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("migration done successfully")
}

// migrateURL turns a go-sql-driver DSN into a migrate database URL. Migration
// files hold several statements, so multiStatements is forced on.
func migrateURL(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.MultiStatements = true
	return "mysql://" + cfg.FormatDSN(), nil
}
