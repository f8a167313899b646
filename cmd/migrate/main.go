package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/PawMart/internal/pkg/config"
	"github.com/ManuelReschke/PawMart/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg := config.Load().Database()
	dbURL := fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	log.Infof("connecting to %s@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)

	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		log.Fatalf("initializing migrations failed: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Errorf("closing migration resources failed: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info("no change: database is up to date")
		case err != nil:
			log.Fatalf("running migrations failed: %v", err)
		default:
			log.Info("migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatalf("rolling back the last migration failed: %v", err)
		}
		log.Info("rolled back the last migration")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Infof("no change: database already at version %d", version)
		case err != nil:
			log.Fatalf("migrating to version %d failed: %v", version, err)
		default:
			log.Infof("migrated to version %d", version)
		}

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Info("no migrations applied yet")
		case err != nil:
			log.Fatalf("reading migration version failed: %v", err)
		default:
			suffix := ""
			if dirty {
				suffix = " (dirty)"
			}
			log.Infof("current migration version: %d%s", version, suffix)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
}
