package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/c360/cvsync/config"
	"github.com/c360/cvsync/events"
	"github.com/c360/cvsync/health"
	"github.com/c360/cvsync/metric"
	"github.com/c360/cvsync/natsclient"
	"github.com/c360/cvsync/ontology"
	"github.com/c360/cvsync/pkg/cache"
	"github.com/c360/cvsync/pkg/retry"
	"github.com/c360/cvsync/pkg/tlsutil"
	"github.com/c360/cvsync/reconcile"
	"github.com/c360/cvsync/report"
	"github.com/c360/cvsync/storage/objectstore"
	"github.com/c360/cvsync/store"
	"github.com/c360/cvsync/store/gormstore"
	"github.com/c360/cvsync/store/memstore"
	"github.com/c360/cvsync/vocabulary"
)

// app holds the long lived collaborators shared by every run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	health  *health.Monitor

	store   store.TermStore
	ping    func(context.Context) error
	closeDB func() error
	sources *ontology.Registry
	vocab   *vocabulary.Registry

	nats      *natsclient.Client
	publisher *natsclient.EventPublisher
	archive   *objectstore.ReportArchive

	ontologies   []string
	reportFormat report.Format
	reportOut    func() (io.WriteCloser, error)

	// runMu keeps scheduled runs from overlapping.
	runMu sync.Mutex
}

func newApp(ctx context.Context, cfg *config.Config, cli *CLIConfig, logger *slog.Logger,
	registry *metric.MetricsRegistry, monitor *health.Monitor,
) (*app, error) {
	format, err := report.ParseFormat(cli.ReportFormat)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:          cfg,
		logger:       logger,
		metrics:      registry,
		health:       monitor,
		ping:         func(context.Context) error { return nil },
		closeDB:      func() error { return nil },
		ontologies:   cli.ontologyIDs(),
		reportFormat: format,
		reportOut:    reportWriter(cli.ReportPath),
	}
	if len(a.ontologies) == 0 {
		a.ontologies = cfg.RunOrder()
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.loadSources(); err != nil {
		_ = a.closeDB()
		return nil, err
	}
	if cfg.NATS.Enabled {
		if err := a.connectNATS(ctx); err != nil {
			a.close(ctx)
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	sc := a.cfg.Store
	if sc.Driver == config.DriverMemory {
		a.logger.Warn("Using in-memory term store, changes are not persisted")
		a.store = memstore.New()
		a.health.Update("store", health.NewHealthy("", "in-memory"))
		return nil
	}

	policy := retry.StoreOpen().Overlay(sc.ConnectRetry.MaxAttempts, sc.ConnectRetry.InitialDelay, sc.ConnectRetry.MaxDelay)
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		a.logger.Warn("Term store unreachable", "driver", sc.Driver, "attempt", attempt, "retry_in", wait, "error", err)
		a.health.Update("store", health.NewDegraded("", "connecting"))
	}

	db, err := retry.DoWithResult(ctx, policy, func() (*gormstore.Store, error) {
		return gormstore.Open(ctx, sc.Driver, sc.DSN, a.logger.With("component", "gormstore"))
	})
	if err != nil {
		a.health.Update("store", health.FromError("", err, ""))
		return fmt.Errorf("open term store: %w", err)
	}
	a.store = db
	a.ping = db.Ping
	a.closeDB = db.Close
	a.health.Update("store", health.NewHealthy("", sc.Driver+" reachable"))
	a.logger.Info("Term store ready", "driver", sc.Driver)
	return nil
}

// loadSources reads every configured snapshot and registers the namespaces
// it declares on top of the standard vocabulary.
func (a *app) loadSources() error {
	a.vocab = vocabulary.Default()
	sources, err := ontology.NewRegistry()
	if err != nil {
		return err
	}

	for _, oc := range a.cfg.Ontologies {
		mem, err := ontology.LoadFileAs(oc.SnapshotPath, ontology.File{
			Ontology: oc.ID,
			Database: oc.Database,
			Pattern:  oc.Pattern,
		})
		if err != nil {
			return fmt.Errorf("load ontology %s: %w", oc.ID, err)
		}

		var src ontology.Source = mem
		if oc.CacheSize > 0 {
			cached, err := ontology.NewCachedSource(mem, oc.CacheSize,
				cache.WithMetrics[*ontology.TermSnapshot](a.metrics, "ontology_"+metricName(oc.ID)))
			if err != nil {
				return fmt.Errorf("cache ontology %s: %w", oc.ID, err)
			}
			src = cached
		}
		if err := sources.Register(src); err != nil {
			return err
		}

		if oc.Namespace != "" {
			opts := []vocabulary.Option{
				vocabulary.WithDatabase(oc.Database, oc.DatabaseAC),
				vocabulary.WithOntology(oc.ID),
			}
			if oc.Pattern != "" {
				opts = append(opts, vocabulary.WithPattern(oc.Pattern))
			}
			a.vocab.RegisterNamespace(oc.Namespace, opts...)
		}
		a.logger.Info("Loaded ontology snapshot", "ontology", oc.ID, "terms", mem.Len(), "path", oc.SnapshotPath)
	}
	a.sources = sources
	return nil
}

// natsOptions translates the nats config section into client options.
func (a *app) natsOptions(nc config.NATSConfig) ([]natsclient.ClientOption, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger),
		natsclient.WithMetrics(a.metrics),
		natsclient.WithMaxReconnects(nc.MaxReconnects),
		natsclient.WithTuning(natsclient.Tuning{
			Name:          nc.ClientName,
			ReconnectWait: nc.ReconnectWait,
			PingInterval:  nc.PingInterval,
			Timeout:       nc.ConnectTimeout,
			DrainTimeout:  nc.DrainTimeout,
		}),
		natsclient.WithConnectRetry(retry.NATSConnect().Overlay(
			nc.ConnectRetry.MaxAttempts, nc.ConnectRetry.InitialDelay, nc.ConnectRetry.MaxDelay)),
		natsclient.WithStatusCallback(func(status natsclient.ConnectionStatus) {
			switch status {
			case natsclient.StatusConnected:
				a.health.Update("nats", health.NewHealthy("", "connected"))
			case natsclient.StatusReconnecting, natsclient.StatusConnecting:
				a.health.Update("nats", health.NewDegraded("", status.String()))
			default:
				a.health.Update("nats", health.NewUnhealthy("", status.String()))
			}
		}),
	}
	if nc.Username != "" {
		opts = append(opts, natsclient.WithCredentials(nc.Username, nc.Password))
	}
	if nc.Token != "" {
		opts = append(opts, natsclient.WithToken(nc.Token))
	}
	tlsConfig, err := tlsutil.LoadClientConfig(nc.TLS)
	if err != nil {
		return nil, fmt.Errorf("load NATS TLS config: %w", err)
	}
	return append(opts, natsclient.WithTLS(tlsConfig)), nil
}

// connectNATS connects and prepares the event stream and report bucket. On
// failure a.nats may hold a connected client; the caller closes it.
func (a *app) connectNATS(ctx context.Context) error {
	nc := a.cfg.NATS
	opts, err := a.natsOptions(nc)
	if err != nil {
		return err
	}

	client, err := natsclient.NewClient(strings.Join(nc.URLs, ","), opts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	a.logger.Info("Connecting to NATS")
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	a.nats = client

	durable := nc.Stream != ""
	if durable {
		if _, err := client.EnsureStream(ctx, natsclient.EventStreamConfig(nc.Stream, nc.SubjectPrefix, nc.StreamMaxAge)); err != nil {
			return fmt.Errorf("ensure event stream: %w", err)
		}
	}
	a.publisher = natsclient.NewEventPublisher(client, nc.SubjectPrefix, durable, a.logger)

	if nc.ReportBucket != "" {
		storeCfg := objectstore.DefaultConfig()
		storeCfg.Bucket = nc.ReportBucket
		bucket, err := objectstore.NewStore(ctx, client, storeCfg, a.metrics)
		if err != nil {
			return fmt.Errorf("open report bucket: %w", err)
		}
		archive, err := objectstore.NewReportArchive(bucket, storeCfg.Prefix, a.logger)
		if err != nil {
			return err
		}
		a.archive = archive
	}
	return nil
}

// runOnce reconciles the selected ontologies, then writes and archives the
// report. A run already in progress makes it return immediately.
func (a *app) runOnce(ctx context.Context) (*report.Report, error) {
	if !a.runMu.TryLock() {
		a.logger.Warn("Previous reconciliation still running, skipping")
		return nil, nil
	}
	defer a.runMu.Unlock()

	if err := a.ping(ctx); err != nil {
		a.health.Update("store", health.FromError("", err, ""))
		return nil, fmt.Errorf("term store unavailable: %w", err)
	}
	a.health.Update("store", health.NewHealthy("", "reachable"))

	builder := report.NewBuilder()
	sinks := events.MultiSink{
		builder,
		metric.NewSink(a.metrics),
		health.NewRunTracker(a.health),
		events.NewLogSink(a.logger),
	}
	if a.publisher != nil {
		sinks = append(sinks, a.publisher)
	}

	updater, err := reconcile.NewUpdater(reconcile.Dependencies{
		Store:      a.store,
		Sources:    a.sources,
		Vocabulary: a.vocab,
		Sink:       sinks,
		Logger:     a.logger,
	}, reconcile.Options{
		ImportNewTerms:          a.cfg.Update.ImportNewTerms,
		IncludeObsoleteOnImport: a.cfg.Update.IncludeObsoleteOnImport,
	})
	if err != nil {
		return nil, err
	}

	runErr := updater.Run(ctx, a.ontologies...)
	rep := builder.Report()

	if err := a.writeReport(rep); err != nil {
		a.logger.Error("Writing run report", "error", err)
	}
	if a.archive != nil {
		if key, err := a.archive.Save(ctx, rep); err != nil {
			a.logger.Error("Archiving run report", "report_id", rep.ID, "error", err)
		} else {
			a.logger.Info("Archived run report", "report_id", rep.ID, "key", key)
		}
	}

	a.logger.Info("Reconciliation finished",
		"report_id", rep.ID,
		"ontologies", len(rep.Ontologies),
		"errors", rep.ErrorCount(),
		"aborted", rep.Aborted())
	if runErr != nil {
		return rep, fmt.Errorf("reconciliation aborted: %w", runErr)
	}
	return rep, nil
}

func (a *app) writeReport(rep *report.Report) error {
	w, err := a.reportOut()
	if err != nil {
		return err
	}
	if err := rep.Write(w, a.reportFormat); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (a *app) close(ctx context.Context) {
	if a.nats != nil {
		if err := a.nats.Close(ctx); err != nil {
			a.logger.Warn("Closing NATS client", "error", err)
		}
	}
	if err := a.closeDB(); err != nil {
		a.logger.Warn("Closing term store", "error", err)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func reportWriter(path string) func() (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return func() (io.WriteCloser, error) { return nopCloser{os.Stdout}, nil }
	}
	return func() (io.WriteCloser, error) {
		return os.Create(path)
	}
}

// metricName lowercases id and replaces characters Prometheus rejects.
func metricName(id string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, id)
}
