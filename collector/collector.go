package collector

import (
	"context"
	"fmt"
	"time"

	"fareflow/logger"
	"fareflow/models"
)

// Summary describes the outcome of one Collect call.
type Summary struct {
	TransactionID   string                 `json:"transaction_id"`
	FareMarkets     int                    `json:"fare_markets"`
	Representatives int                    `json:"representatives"`
	Duplicates      int                    `json:"duplicates"`
	Priced          int                    `json:"priced"`
	FailCodes       map[string]int         `json:"fail_codes"`
	Counters        models.CounterSnapshot `json:"counters"`
	Duration        time.Duration          `json:"duration"`

	// DuplicateMarkets lists the markets filled by copying a representative.
	DuplicateMarkets []models.FareMarketID `json:"duplicate_markets"`
	// NoFares is set when no market of the transaction has a usable fare.
	NoFares bool `json:"no_fares"`
	// RestrictedByGovernment is set when any market failed on a national
	// sales restriction.
	RestrictedByGovernment bool `json:"restricted_by_government"`
}

// Collector computes the fares of every fare market of a transaction,
// computing each group of equivalent markets once.
type Collector struct {
	pipeline   *Pipeline
	executor   *Executor
	propagator *Propagator
	dummy      DummyFiller
	log        *logger.Log
}

func New(settings Settings, c Collaborators) *Collector {
	return &Collector{
		pipeline:   NewPipeline(settings, c),
		executor:   NewExecutor(settings.MaxWorkers),
		propagator: NewPropagator(settings, c),
		dummy:      c.DummyFares,
		log:        logger.GetLogger(),
	}
}

// Pipeline returns the stage pipeline used for representatives.
func (c *Collector) Pipeline() *Pipeline { return c.pipeline }

// Plan sets up the fare markets of trx still waiting for fares and groups
// the eligible ones by equivalence key without retrieving any fare. Markets
// already processed or holding fares keep their own result.
func (c *Collector) Plan(ctx context.Context, trx *models.Transaction) (*Registry, error) {
	for _, fm := range trx.FareMarkets() {
		if fm.Processed() || len(fm.AllFares) > 0 {
			continue
		}
		if err := c.pipeline.Setup(ctx, trx, fm); err != nil {
			return nil, fmt.Errorf("setup fare market %d: %w", fm.ID, err)
		}
	}
	return BuildRegistry(trx), nil
}

// BuildRegistry registers every eligible market of trx. Markets of a
// multi-itinerary transaction are keyed by BuildKey; any other transaction
// keys each market on its own.
func BuildRegistry(trx *models.Transaction) *Registry {
	reg := NewRegistry()
	for _, fm := range trx.FareMarkets() {
		key := UniqueKey(fm)
		if trx.IsMultiItin() {
			key = BuildKey(fm, trx)
		}
		reg.Register(key, fm)
	}
	return reg
}

// Collect runs the fare collection of trx. An abort or a collaborator fault
// ends the run with an error; market level failures are reported through
// fail codes and the summary.
func (c *Collector) Collect(ctx context.Context, trx *models.Transaction) (*Summary, error) {
	start := time.Now()
	log := c.log.ForTransaction("collector", trx.ID, trx.Type.String())

	trx.Counters.Reset()
	if err := checkAborted(ctx, trx); err != nil {
		return nil, err
	}

	reg, err := c.Plan(ctx, trx)
	if err != nil {
		return nil, err
	}

	reps := reg.Representatives()
	log.WithFields(logger.Fields{
		"fare_markets":    len(trx.FareMarkets()),
		"representatives": len(reps),
	}).Info("collecting fares")

	if err := c.executor.RunAll(ctx, trx, reps, c.pipeline); err != nil {
		return nil, fmt.Errorf("collect fares: %w", err)
	}
	if err := checkAborted(ctx, trx); err != nil {
		return nil, err
	}

	for _, g := range reg.DuplicateGroups() {
		if err := c.propagator.CopyToAll(ctx, trx, g.Representative(), g.Duplicates()); err != nil {
			return nil, fmt.Errorf("copy %s: %w", g.Key, err)
		}
		c.propagator.Restore(g)
		trx.Counters.Duplicates.Add(int64(len(g.Duplicates())))
	}

	if c.dummy != nil {
		for _, fm := range trx.FareMarkets() {
			if !fm.UseDummyFare || fm.Processed() {
				continue
			}
			if err := c.dummy.Fill(trx, fm); err != nil {
				return nil, fmt.Errorf("dummy fares for fare market %d: %w", fm.ID, err)
			}
		}
	}

	for _, fm := range trx.FareMarkets() {
		fm.SetStatus(models.StatusProcessed)
	}

	summary := summarize(trx, reg, time.Since(start))
	log.WithFields(logger.Fields{
		"priced":     summary.Priced,
		"duplicates": summary.Duplicates,
		"no_fares":   summary.NoFares,
		"duration":   summary.Duration.String(),
	}).Info("fare collection finished")

	fields := logger.Fields{logger.FieldTrxType: trx.Type.String()}
	c.log.LogMetric("collector", "FareMarkets", summary.FareMarkets, logger.MetricCounter, fields)
	c.log.LogMetric("collector", "Duplicates", summary.Duplicates, logger.MetricCounter, fields)
	c.log.LogMetric("collector", "FaresCollected", summary.Counters.FaresCollected, logger.MetricCounter, fields)
	c.log.LogMetric("collector", "FaresCloned", summary.Counters.FaresCloned, logger.MetricCounter, fields)
	c.log.LogMetric("collector", "CollectDuration", summary.Duration, logger.MetricTimer, fields)
	return summary, nil
}

func summarize(trx *models.Transaction, reg *Registry, d time.Duration) *Summary {
	s := &Summary{
		TransactionID:   trx.ID,
		FareMarkets:     len(trx.FareMarkets()),
		Representatives: len(reg.Groups()),
		FailCodes:       make(map[string]int),
		Counters:        trx.Counters.Snapshot(),
		Duration:        d,
	}
	for _, g := range reg.DuplicateGroups() {
		s.Duplicates += len(g.Duplicates())
		for _, fm := range g.Duplicates() {
			s.DuplicateMarkets = append(s.DuplicateMarkets, fm.ID)
		}
	}
	for _, fm := range trx.FareMarkets() {
		if fm.FailCode == models.FailNone && len(fm.AllFares) > 0 {
			s.Priced++
		}
		if fm.FailCode != models.FailNone {
			s.FailCodes[fm.FailCode.String()]++
		}
		if fm.FailCode == models.FailPricingRestrictedByGov {
			s.RestrictedByGovernment = true
		}
	}
	s.NoFares = s.Priced == 0
	return s
}
