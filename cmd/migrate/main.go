// File: cmd/migrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	dir := flag.String("dir", "migrations", "directory holding the SQL migrations")
	down := flag.Bool("down", false, "roll back instead of applying")
	steps := flag.Int("steps", 0, "number of migrations to apply or roll back (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, false)
	log := logger.With().Str("component", "Migrate").Logger()

	m, err := migrate.New("file://"+*dir, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("open migrations")
	}
	defer m.Close()

	switch {
	case *steps != 0 && *down:
		err = m.Steps(-*steps)
	case *steps != 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal().Err(err).Msg("migration failed")
	}

	v, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		log.Fatal().Err(verr).Msg("read schema version")
	}
	log.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema up to date")
}
