package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/aggregate"
	"github.com/FabioFlo/asd-platform-sub001/config"
	emitterkfk "github.com/FabioFlo/asd-platform-sub001/emitter/kafka"
	"github.com/FabioFlo/asd-platform-sub001/event"
	"github.com/FabioFlo/asd-platform-sub001/httpapi"
	zl "github.com/FabioFlo/asd-platform-sub001/logger/zerolog"
	mtally "github.com/FabioFlo/asd-platform-sub001/metrics/tally"
	"github.com/FabioFlo/asd-platform-sub001/outbox"
	"github.com/FabioFlo/asd-platform-sub001/readmodel"
	readmodelkfk "github.com/FabioFlo/asd-platform-sub001/readmodel/kafka"
	"github.com/FabioFlo/asd-platform-sub001/remote"
	repogorm "github.com/FabioFlo/asd-platform-sub001/repository/gorm"
	reposql "github.com/FabioFlo/asd-platform-sub001/repository/sql"
	"github.com/FabioFlo/asd-platform-sub001/satellite"
	"github.com/FabioFlo/asd-platform-sub001/sweep"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	tally "github.com/uber-go/tally/v4"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ctxKey string

// txKey carries the gorm transaction from the sweep to the outbox.
const txKey ctxKey = "tx"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}
	log := zl.New(cfg.LogLevel, cfg.LogConsole)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("asd platform stopped", err)
		os.Exit(1)
	}
	log.Info("asd platform stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zl.Logger) error {
	rootScope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:   "asd",
		Reporter: tally.NullStatsReporter,
	}, time.Second)
	defer closer.Close()
	scope := mtally.NewScope(rootScope)

	codec, err := event.NewCodec(cfg.EventCodec)
	if err != nil {
		return err
	}

	pool, err := GetDatabasePool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("opening gorm: %w", err)
	}

	// satellites and dashboard
	registry, err := satellite.NewRegistry(cfg.Satellites, satellite.HTTPClientFactory(cfg.SatelliteTimeout))
	if err != nil {
		return err
	}
	dispatcher := satellite.NewDispatcher(registry, cfg.SatelliteTimeout)
	dispatcher.SetLogger(log.Named("satellites"))

	backends, err := dashboardBackends(cfg.Backends)
	if err != nil {
		return err
	}
	aggregator := aggregate.New(
		aggregate.WithLogger(log.Named("aggregator")),
		aggregate.WithOnFailureCounter(scope.Counter("section_failures", nil)),
		aggregate.WithDefaultTimeout(cfg.SectionTimeout),
	)
	dashboard := aggregate.NewDashboard(aggregator, backends, dispatcher, registry.Disciplines())

	handler := httpapi.NewHandler(dashboard, dispatcher, registry.Definitions())
	handler.SetLogger(log.Named("http"))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler, log.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// read model synchronization
	store := reposql.NewCacheStore(sqlDB, true)
	store.SetLogger(log.Named("cache"))
	handlers := []readmodelHandler{
		synchronizer[event.PersonCreated](readmodel.PersonCache, store, log, scope),
		synchronizer[event.PersonUpdated](readmodel.PersonCache, store, log, scope),
		synchronizer[event.GroupCreated](readmodel.GroupCache, store, log, scope),
		synchronizer[event.GroupUpdated](readmodel.GroupCache, store, log, scope),
	}
	for _, h := range handlers {
		kc, err := GetConsumer(cfg.Kafka, event.TopicName(h.EventType()))
		if err != nil {
			return err
		}
		c := readmodelkfk.New(kc, codec, h.EventType(), h, readmodelkfk.Settings{
			PollTimeout:  cfg.Kafka.PollTimeout,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		c.SetLogger(log.Named("consumer"))
		g.Go(func() error {
			defer kc.Close()
			return c.Run(gctx)
		})
	}

	// reconciliation sweep
	outboxRepo := repogorm.NewOutboxRepository(txKey, gormDB)
	box := outbox.New(outboxRepo, codec)
	if cfg.Sweep.Enabled {
		settings := sweep.Settings{Window: cfg.Sweep.Window, Interval: cfg.Sweep.Interval, BatchSize: cfg.Sweep.BatchSize}
		for _, repo := range []*repogorm.RecordRepository{
			repogorm.NewDocumentRepository(txKey, gormDB),
			repogorm.NewPaymentRepository(txKey, gormDB),
		} {
			tags := map[string]string{"kind": string(repo.Kind())}
			s := sweep.NewSweeper(repo.Kind(), repo, box, settings,
				sweep.WithLogger(log.Named("sweep")),
				sweep.WithCounters(
					scope.Counter("sweep_expired", tags),
					scope.Counter("sweep_expiring_soon", tags),
					scope.Counter("sweep_failed", tags),
				),
			)
			runner := sweep.NewRunner(s, nil)
			g.Go(func() error {
				runner.Run(gctx)
				return nil
			})
		}
	}

	// outbox relay
	if cfg.Relay.Enabled {
		producer, err := GetProducer(cfg.Kafka)
		if err != nil {
			return err
		}
		defer func() {
			producer.Flush(int(shutdownTimeout.Milliseconds()))
			producer.Close()
		}()
		go drainProducerEvents(producer, log.Named("producer"))
		emitter := emitterkfk.New(producer)
		emitter.SetLogger(log.Named("emitter"))

		relay := outbox.NewRelay(outbox.Settings{
			PollingInterval:      cfg.Relay.PollingInterval,
			MaxEventsPerInterval: cfg.Relay.MaxPerInterval,
			MaxEventsPerBatch:    cfg.Relay.BatchSize,
		}, outboxRepo, emitter,
			outbox.WithLogger(log.Named("relay")),
			outbox.WithOnSuccessCounter(scope.Counter("relay_delivered", nil)),
			outbox.WithOnErrorCounter(scope.Counter("relay_failed", nil)),
		)
		g.Go(func() error {
			relay.Run(gctx)
			return nil
		})
	}

	// http
	g.Go(func() error {
		log.Info(fmt.Sprintf("listening on %s", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type readmodelHandler interface {
	readmodel.Handler
	EventType() string
}

func synchronizer[P readmodel.CachePayload](cache string, store readmodel.Store, log *zl.Logger, scope *mtally.Scope) readmodelHandler {
	tags := map[string]string{"cache": cache}
	return readmodel.NewSynchronizer[P](cache, store,
		readmodel.WithLogger(log.Named("sync")),
		readmodel.WithCounters(
			scope.Counter("sync_applied", tags),
			scope.Counter("sync_skipped", tags),
			scope.Counter("sync_failed", tags),
		),
	)
}

func dashboardBackends(b config.Backends) (aggregate.Backends, error) {
	var backends aggregate.Backends
	for _, target := range []struct {
		url string
		dst *aggregate.JSONGetter
	}{
		{b.MembersURL, &backends.Members},
		{b.ComplianceURL, &backends.Compliance},
		{b.FinanceURL, &backends.Finance},
		{b.CompetitionsURL, &backends.Competitions},
	} {
		if target.url == "" {
			continue
		}
		c, err := remote.New(target.url, b.Timeout, nil)
		if err != nil {
			return backends, err
		}
		*target.dst = c
	}
	return backends, nil
}

func drainProducerEvents(p *kafka.Producer, log *zl.Logger) {
	for ev := range p.Events() {
		switch e := ev.(type) {
		case kafka.Error:
			log.Error("producer", e)
		default:
			log.Debug(fmt.Sprintf("ignored producer event: %s", ev))
		}
	}
}

func GetProducer(k config.Kafka) (*kafka.Producer, error) {
	return kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  k.Brokers,
		"linger.ms":          500,
		"batch.size":         100 * 1024,
		"compression.type":   "lz4",
		"acks":               -1,
		"enable.idempotence": true,
	})
}

// GetConsumer builds a consumer with manual commits; every topic gets its own
// consumer group.
func GetConsumer(k config.Kafka, topic string) (*kafka.Consumer, error) {
	return kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  k.Brokers,
		"group.id":           fmt.Sprintf("%s-%s", k.GroupID, topic),
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
}

func GetDatabasePool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return pool, nil
}
