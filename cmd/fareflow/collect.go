package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fareflow/collector"
	"fareflow/config"
	"fareflow/diag"
	"fareflow/internal/dashboard"
	"fareflow/internal/fixture"
	"fareflow/internal/metrics"
	"fareflow/logger"
	"fareflow/models"
	"fareflow/writer"
)

var (
	outPath string
	serve   bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect the fares of every fare market of a fixture transaction",
	Args:  cobra.NoArgs,
	RunE:  runCollect,
}

func init() {
	collectCmd.Flags().StringVar(&outPath, "out", "", "Write the market outcomes to a local parquet file")
	collectCmd.Flags().BoolVar(&serve, "serve", false, "Keep the diagnostics server running until interrupted")
}

// sinks are the outcome exporters enabled in the configuration.
type sinks struct {
	s3    *writer.S3Exporter
	kafka *writer.KafkaPublisher
}

func openSinks(ctx context.Context, cfg *config.Config) (*sinks, error) {
	log := logger.GetLogger().WithComponent("main")
	strict := config.IsProductionLike(config.AppEnvironment())
	out := &sinks{}

	if cfg.Storage.S3.Enabled {
		exp, err := writer.NewS3Exporter(ctx, cfg)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("failed to create S3 exporter: %w", err)
			}
			log.WithError(err).Warn("failed to create S3 exporter; skipping")
		}
		out.s3 = exp
	} else {
		log.Info("S3 storage disabled; skipping exporter")
	}

	if cfg.Storage.Kafka.Enabled {
		pub, err := writer.NewKafkaPublisher(cfg)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
			}
			log.WithError(err).Warn("failed to create kafka publisher; skipping")
		}
		out.kafka = pub
	}
	return out, nil
}

func (s *sinks) export(ctx context.Context, trx *models.Transaction, summary *collector.Summary, at time.Time) error {
	log := logger.GetLogger().WithComponent("main")
	outcomes := writer.Outcomes(trx, summary, at)

	if s.s3 != nil {
		key, err := s.s3.Export(ctx, trx.ID, outcomes, at)
		if err != nil {
			return err
		}
		log.WithField("key", key).Info("uploaded fare market outcomes")
	}
	if s.kafka != nil {
		if err := s.kafka.Publish(ctx, outcomes); err != nil {
			return err
		}
	}
	return nil
}

func (s *sinks) close() {
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			logger.GetLogger().WithComponent("main").WithError(err).Warn("failed to close kafka publisher")
		}
	}
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	mainLog := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Logging.CloudWatch.Enabled {
		cw := cfg.Logging.CloudWatch
		logger.InitCloudWatch(ctx, cw.Region, cw.Namespace, cw.Dashboard)
		defer logger.Report(context.Background(), log)
	}

	fx, err := fixture.Load(fixturePath)
	if err != nil {
		return err
	}
	trx, err := fx.Build()
	if err != nil {
		return err
	}

	refs, closeRefs, err := openReferenceData(ctx, cfg, fx)
	if err != nil {
		return err
	}
	defer closeRefs()

	events := diag.NewBuffer(cfg.Diagnostics.Buffer)
	sink := diag.Multi{events, diag.NewLogSink(log)}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	var srv *dashboard.Server
	serverDone := make(chan error, 1)
	if addr := listenAddress(cfg); addr != "" {
		stream := diag.NewStreamSink(cfg.Diagnostics.Buffer)
		sink = append(sink, stream)
		opts := dashboard.Options{Address: addr, Events: events, Stream: stream}
		if m != nil {
			opts.Metrics = m.Handler()
		}
		srv = dashboard.NewServer(opts, log)
		go func() { serverDone <- srv.Run(ctx) }()
	} else {
		close(serverDone)
	}

	out, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer out.close()

	c, err := newCollector(cfg, fx, refs, sink)
	if err != nil {
		return err
	}

	runCtx := ctx
	if cfg.Collector.Timeout > 0 {
		trx.Deadline = time.Now().Add(cfg.Collector.Timeout)
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, trx.Deadline)
		defer cancel()
	}

	summary, err := c.Collect(runCtx, trx)
	if err != nil {
		if m != nil {
			m.ObserveError(err)
		}
		return err
	}
	if m != nil {
		m.Observe(summary)
	}
	if srv != nil {
		srv.RecordSummary(summary)
	}

	printSummary(cmd.OutOrStdout(), trx, summary)

	at := time.Now().UTC()
	if outPath != "" {
		records := writer.Records(writer.Outcomes(trx, summary, at))
		if err := writer.WriteParquetFile(outPath, records, cfg.Storage.S3.Compression); err != nil {
			return err
		}
		mainLog.WithFields(logger.Fields{"path": outPath, "records": len(records)}).Info("wrote fare market outcomes")
	}
	if err := out.export(ctx, trx, summary, at); err != nil {
		return err
	}

	if srv != nil && serve {
		mainLog.WithField("address", srv.Address()).Info("collection finished; serving diagnostics until interrupted")
		<-ctx.Done()
	}
	stop()
	if err := <-serverDone; err != nil {
		mainLog.WithError(err).Warn("diagnostics server stopped with error")
	}

	if summary.NoFares {
		return errNoFares
	}
	return nil
}

// listenAddress prefers the diagnostics listener and falls back to the
// metrics one when metrics are enabled.
func listenAddress(cfg *config.Config) string {
	if addr := strings.TrimSpace(cfg.Diagnostics.Listen); addr != "" {
		return addr
	}
	if cfg.Metrics.Enabled {
		return strings.TrimSpace(cfg.Metrics.Listen)
	}
	return ""
}

func printSummary(w io.Writer, trx *models.Transaction, s *collector.Summary) {
	duplicate := make(map[models.FareMarketID]bool, len(s.DuplicateMarkets))
	for _, id := range s.DuplicateMarkets {
		duplicate[id] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "FM\tMARKET\tCARRIER\tFARES\tVALID\tDUPLICATE\tFAIL\n")
	for _, fm := range trx.FareMarkets() {
		valid := 0
		for _, ptf := range fm.AllFares {
			if ptf.IsValid() {
				valid++
			}
		}
		fail := "-"
		if fm.FailCode != models.FailNone {
			fail = fm.FailCode.String()
		}
		fmt.Fprintf(tw, "%d\t%s-%s\t%s\t%d\t%d\t%t\t%s\n",
			fm.ID, fm.Origin(), fm.Destination(), fm.GoverningCarrier, len(fm.AllFares), valid, duplicate[fm.ID], fail)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d fare markets, %d computed, %d copied, %d priced in %s\n",
		s.FareMarkets, s.Representatives, s.Duplicates, s.Priced, s.Duration.Round(time.Millisecond))
}
