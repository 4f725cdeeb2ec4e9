// Command simulate runs one simulation batch from the command line, prints
// the aggregate outcomes and persists the run to the configured results
// store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/amd-treatment-sim/internal/config"
	"github.com/amd-treatment-sim/internal/domain"
	"github.com/amd-treatment-sim/internal/logging"
	"github.com/amd-treatment-sim/internal/resources"
	"github.com/amd-treatment-sim/internal/resultstore"
	"github.com/amd-treatment-sim/internal/simulation"
)

func main() {
	var (
		protocolPath = flag.String("protocol", "", "protocol YAML path (default: from config)")
		patients     = flag.Int("patients", 0, "number of patients (default: from config)")
		years        = flag.Float64("years", 0, "simulation horizon in years (default: from config)")
		seed         = flag.Int64("seed", 0, "random seed (default: from config)")
		noPersist    = flag.Bool("no-persist", false, "skip writing results to the store")
	)
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()
	logger := logging.NewLogger(cfg.Logging)

	if *protocolPath == "" {
		*protocolPath = cfg.Simulation.ProtocolPath
	}
	if *patients == 0 {
		*patients = cfg.Simulation.DefaultPatients
	}
	if *years == 0 {
		*years = cfg.Simulation.DefaultDurationYears
	}
	if *seed == 0 {
		*seed = cfg.Simulation.DefaultSeed
	}

	spec, err := config.LoadProtocol(*protocolPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load protocol specification")
	}

	var observers []simulation.VisitObserver
	var tracker *resources.Tracker
	if cfg.Resources.Enabled {
		tracker = resources.NewTracker(cfg.Resources, logger)
		observers = append(observers, tracker)
	}

	engine, err := simulation.NewEngine(spec, logger, simulation.Options{Observers: observers})
	if err != nil {
		logger.WithError(err).Fatal("Failed to construct engine")
	}

	results, err := engine.Run(simulation.TimeBasedEngine, *patients, *years, *seed)
	if err != nil {
		logger.WithError(err).Fatal("Simulation failed")
	}

	fmt.Printf("Run %s (%s)\n", results.RunID, spec.Name)
	fmt.Printf("  patients:             %d\n", results.PatientCount)
	fmt.Printf("  horizon:              %.1f years\n", results.DurationYears)
	fmt.Printf("  seed:                 %d\n", results.Seed)
	fmt.Printf("  total visits:         %d\n", results.TotalVisits)
	fmt.Printf("  total injections:     %d\n", results.TotalInjections)
	fmt.Printf("  final vision:         %.1f +/- %.1f letters\n", results.FinalVisionMean, results.FinalVisionStd)
	fmt.Printf("  discontinuation rate: %.1f%%\n", results.DiscontinuationRate*100)
	fmt.Printf("  retreatments:         %d\n", results.RetreatmentCount)
	for _, reason := range domain.DiscontinuationReasons {
		if n, ok := results.DiscontinuationsByReason[reason]; ok {
			fmt.Printf("    %-20s %d\n", reason, n)
		}
	}

	if tracker != nil {
		costs := tracker.TotalCosts()
		fmt.Printf("  total cost:           %.0f (drug %.0f, injection %.0f, consultation %.0f, OCT %.0f)\n",
			costs.Total, costs.Drug, costs.Injection, costs.Consultation, costs.OCT)
		if bottlenecks := tracker.Bottlenecks(); len(bottlenecks) > 0 {
			fmt.Printf("  capacity bottlenecks: %d days\n", len(bottlenecks))
		}
	}

	if !*noPersist {
		store, err := openStore(cfg.Store.Backend, cfg.Store.SQLitePath, cfg.Store.PostgresURL)
		if err != nil {
			logger.WithError(err).Error("Failed to open results store, results not persisted")
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		summary := results.Summary(spec.Checksum())
		if err := store.SaveRun(ctx, &summary); err != nil {
			logger.WithError(err).Fatal("Failed to save run summary")
		}
		if err := store.SaveHistories(ctx, results.RunID, results.Patients); err != nil {
			logger.WithError(err).Fatal("Failed to save patient histories")
		}
		logger.WithField("run_id", results.RunID).Info("Results persisted")
	}
}

func openStore(backend, sqlitePath, postgresURL string) (resultstore.Store, error) {
	if backend == "postgres" {
		return resultstore.NewPostgresStoreFromURL(postgresURL)
	}
	return resultstore.NewSQLiteStore(sqlitePath)
}
