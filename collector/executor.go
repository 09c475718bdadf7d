package collector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fareflow/logger"
	"fareflow/models"
)

// Processor computes the fares of one fare market.
type Processor interface {
	Process(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error
}

// Executor runs a Processor over many fare markets on a fixed worker pool.
type Executor struct {
	workers int
	log     *logger.Log
}

func NewExecutor(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{workers: workers, log: logger.GetLogger()}
}

// RunAll processes every market in fms and returns the first error. Each
// worker finishes one market before taking the next; dispatch stops as soon
// as the transaction is aborted or any worker fails.
func (e *Executor) RunAll(ctx context.Context, trx *models.Transaction, fms []*models.FareMarket, p Processor) error {
	if len(fms) == 0 {
		return nil
	}

	numWorkers := e.workers
	if numWorkers > len(fms) {
		numWorkers = len(fms)
	}

	log := e.log.ForTransaction("executor", trx.ID, trx.Type.String()).WithFields(logger.Fields{
		"workers":      numWorkers,
		"fare_markets": len(fms),
	})
	log.Debug("starting executor workers")
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan *models.FareMarket)

	g.Go(func() error {
		defer close(work)
		for _, fm := range fms {
			if err := checkAborted(gctx, trx); err != nil {
				return err
			}
			select {
			case work <- fm:
			case <-gctx.Done():
				return fmt.Errorf("%w: %v", ErrAborted, gctx.Err())
			}
		}
		return nil
	})

	for i := 0; i < numWorkers; i++ {
		workerID := i
		g.Go(func() error {
			wlog := log.WithField("worker_id", workerID)
			processed := 0
			for fm := range work {
				if err := p.Process(gctx, trx, fm); err != nil {
					wlog.WithError(err).ForFareMarket(int(fm.ID)).Debug("worker stopped")
					return err
				}
				processed++
			}
			wlog.WithField("processed", processed).Debug("worker finished")
			return nil
		})
	}

	err := g.Wait()
	logger.LogPerformanceEntry(log, "executor", "run_all", time.Since(start), nil)
	return err
}
