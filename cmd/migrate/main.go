// Command migrate administers the PostgreSQL run-metadata database used by
// server deployments: schema migrations, health checks and run-record
// housekeeping.
//
// Usage:
//
//	migrate up              apply all pending migrations
//	migrate down            roll back one migration
//	migrate version         print the current schema version
//	migrate health          verify database connectivity
//	migrate list [-n N]     list recent runs
//	migrate show <run-id>   print one run's summary
//	migrate delete <run-id> delete one run record
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/amd-treatment-sim/internal/config"
	"github.com/amd-treatment-sim/internal/database"
	"github.com/amd-treatment-sim/internal/logging"
	"github.com/amd-treatment-sim/internal/repository"
)

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := configManager.GetConfig()
	logger := logging.NewLogger(cfg.Logging)

	ctx := context.Background()

	switch flag.Arg(0) {
	case "up", "down", "version":
		runner, err := database.NewMigrationRunner(cfg.Store.PostgresURL, cfg.Database.MigrationsPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create migration runner")
		}
		defer runner.Close()

		switch flag.Arg(0) {
		case "up":
			if err := runner.Up(); err != nil {
				logger.WithError(err).Fatal("Migration up failed")
			}
		case "down":
			if err := runner.Down(); err != nil {
				logger.WithError(err).Fatal("Migration down failed")
			}
		case "version":
			version, dirty, err := runner.Version()
			if err != nil {
				logger.WithError(err).Fatal("Failed to read migration version")
			}
			fmt.Printf("version %d (dirty: %v)\n", version, dirty)
		}

	case "health":
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()
		if err := db.HealthCheck(ctx); err != nil {
			logger.WithError(err).Fatal("Health check failed")
		}
		fmt.Println("database healthy")

	case "list":
		limit := 20
		if flag.NArg() > 2 && flag.Arg(1) == "-n" {
			fmt.Sscanf(flag.Arg(2), "%d", &limit)
		}
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		runs, err := repository.NewRunRepository(db.Pool, logger).ListRecent(ctx, limit)
		if err != nil {
			logger.WithError(err).Fatal("Failed to list runs")
		}
		for _, r := range runs {
			fmt.Printf("%s  %-30s  patients=%-6d  seed=%-12d  %s\n",
				r.RunID, r.ProtocolName, r.PatientCount, r.Seed, r.CreatedAt.Format("2006-01-02 15:04"))
		}

	case "show":
		if flag.NArg() < 2 {
			usage()
			os.Exit(2)
		}
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		r, err := repository.NewRunRepository(db.Pool, logger).GetByID(ctx, flag.Arg(1))
		if err != nil {
			logger.WithError(err).Fatal("Failed to fetch run")
		}
		fmt.Printf("run:                  %s\n", r.RunID)
		fmt.Printf("protocol:             %s (%s)\n", r.ProtocolName, r.ProtocolChecksum)
		fmt.Printf("patients:             %d over %.1f years (seed %d)\n", r.PatientCount, r.DurationYears, r.Seed)
		fmt.Printf("injections / visits:  %d / %d\n", r.TotalInjections, r.TotalVisits)
		fmt.Printf("final vision:         %.1f +/- %.1f letters\n", r.FinalVisionMean, r.FinalVisionStd)
		fmt.Printf("discontinuation rate: %.1f%%\n", r.DiscontinuationRate*100)

	case "delete":
		if flag.NArg() < 2 {
			usage()
			os.Exit(2)
		}
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		if err := repository.NewRunRepository(db.Pool, logger).Delete(ctx, flag.Arg(1)); err != nil {
			logger.WithError(err).Fatal("Failed to delete run")
		}
		fmt.Printf("deleted run %s\n", flag.Arg(1))

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: migrate <command>

Commands:
  up              apply all pending migrations
  down            roll back one migration
  version         print the current schema version
  health          verify database connectivity
  list [-n N]     list recent runs
  show <run-id>   print one run's summary
  delete <run-id> delete one run record
`)
}
