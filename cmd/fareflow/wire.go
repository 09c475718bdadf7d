package main

import (
	"context"
	"fmt"

	"fareflow/collector"
	"fareflow/config"
	"fareflow/diag"
	"fareflow/fares"
	"fareflow/internal/fixture"
	"fareflow/internal/store"
	"fareflow/logger"
)

// referenceData is the store behind carrier preferences and sales
// restrictions.
type referenceData interface {
	fixture.Seeder
	collector.CarrierPreferences
	collector.SalesRestrictions
}

// openReferenceData returns the PostgreSQL store when the database is
// enabled and an in-memory one otherwise. The fixture reference data is
// seeded into either.
func openReferenceData(ctx context.Context, cfg *config.Config, fx *fixture.Fixture) (referenceData, func(), error) {
	log := logger.GetLogger().WithComponent("store")

	var refs referenceData
	closeFn := func() {}
	if cfg.Storage.Database.Enabled {
		db, err := store.Open(cfg.Storage.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		gs := store.NewGormStore(db)
		if err := gs.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closeFn = func() {
				if err := sqlDB.Close(); err != nil {
					log.WithError(err).Warn("failed to close database")
				}
			}
		}
		refs = gs
		log.Info("using database reference data")
	} else {
		refs = store.NewMemoryStore()
		log.Info("database disabled; using in-memory reference data")
	}

	if err := fx.Seed(ctx, refs); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("seed reference data: %w", err)
	}
	return refs, closeFn, nil
}

// newCollector wires the catalog built from the fixture fares and the
// reference data into a collector.
func newCollector(cfg *config.Config, fx *fixture.Fixture, refs referenceData, sink diag.Sink) (*collector.Collector, error) {
	entries, err := fx.Entries()
	if err != nil {
		return nil, err
	}
	catalog := fares.NewCatalog(cfg.Collector.AmountDecimals, entries...)

	finders := catalog.Finders()
	if rl := cfg.Collector.FinderRateLimit; rl.RequestsPerSecond > 0 {
		finders = fares.Limit(finders, fares.NewLimiter(float64(rl.RequestsPerSecond), rl.BurstSize))
	}

	settings := collector.Settings{
		MaxWorkers:             cfg.Collector.MaxWorkers,
		SkipFareByRuleForLocal: cfg.Collector.SkipFareByRuleForLocal,
		RemoveIdenticalFares:   cfg.Collector.RemoveIdenticalFares,
		AmountDecimals:         cfg.Collector.AmountDecimals,
	}
	c := collector.Collaborators{
		Finders:           finders,
		Validator:         fares.CarrierValidator{FareByRule: fares.SeatsMileage{}},
		Comparator:        fares.ByAmount{},
		Currency:          fares.FareCurrency{},
		SalesRestrictions: refs,
		Directions:        fares.DefaultDirections(),
		Continents:        fares.AlliancePolicy{Alliance: "oneworld", Preferences: refs},
		FareByRule:        fares.SeatsMileage{},
		Negotiated:        fares.NegotiatedCarrier{},
		DummyFares:        fares.PlaceholderFares{},
		Diagnostics:       sink,
	}
	if fx.HasReferenceData() {
		c.Preferences = refs
	}
	return collector.New(settings, c), nil
}
