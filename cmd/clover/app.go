package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ramsey-B/clover/config"
	contactrepo "github.com/Ramsey-B/clover/internal/repositories/contact"
	jobrepo "github.com/Ramsey-B/clover/internal/repositories/deduplication"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/deduplication"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/searchspace"
	"github.com/Ramsey-B/clover/pkg/startup"
)

// app holds the wired components of one CLI invocation.
type app struct {
	cfg    config.Config
	logger ectologger.Logger

	db       database.DB
	contacts *contactrepo.Repository
	jobs     *jobrepo.Repository
	finder   *matching.Finder

	redis     *redis.Client
	producer  *kafka.Producer
	requests  *kafka.Producer
	emitter   *events.Emitter
	consumer  *kafka.Consumer
	metricsSv *http.Server

	closers []func() error
}

func newApp(cfg config.Config, logger ectologger.Logger) (*app, error) {
	matchingCfg, err := matching.LoadConfig(cfg.MatchingConfigPath)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		finder:  matching.NewFinder(logger, matching.NewScorer(matchingCfg)),
		emitter: events.NewEmitter(nil, logger),
	}, nil
}

func (a *app) openDatabase(ctx context.Context) error {
	db, err := database.Open(ctx, a.cfg.Database(), a.logger)
	if err != nil {
		return err
	}
	a.db = db
	a.contacts = contactrepo.NewRepository(db, a.logger)
	a.jobs = jobrepo.NewRepository(db, a.logger)
	a.closers = append(a.closers, db.Close)
	return nil
}

func (a *app) migrate() error {
	return database.NewMigrationService(a.logger, a.cfg.Migration()).Migrate(a.db)
}

func (a *app) openRedis() error {
	if !a.cfg.RedisEnabled {
		return nil
	}
	client, err := redis.NewClient(a.cfg.Redis(), a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return nil
}

func (a *app) openProducers() {
	if !a.cfg.KafkaEnabled {
		return
	}
	a.producer = kafka.NewProducer(a.cfg.KafkaProducer(a.cfg.KafkaEventsTopic), a.logger)
	a.requests = kafka.NewProducer(a.cfg.KafkaProducer(a.cfg.KafkaRequestTopic), a.logger)
	a.emitter = events.NewEmitter(a.producer, a.logger)
	a.closers = append(a.closers, a.producer.Close, a.requests.Close)
}

func (a *app) runner() *deduplication.Runner {
	deps := deduplication.RunnerDeps{
		Contacts: a.contacts,
		Jobs:     a.jobs,
		Finder:   a.finder,
		Emitter:  a.emitter,
	}
	if a.redis != nil {
		deps.Locker = redis.NewLocker(a.redis, "")
		deps.Checkpoints = redis.NewCheckpointStore(a.redis, "", a.cfg.CheckpointTTL)
	}
	return deduplication.NewRunner(a.logger, deps, deduplication.RunnerOptions{
		Workers:         a.cfg.Workers,
		CheckpointEvery: a.cfg.CheckpointEvery,
		LockTTL:         a.cfg.LockTTL,
	})
}

func (a *app) resolver() *deduplication.Resolver {
	return deduplication.NewResolver(a.logger, a.jobs, a.contacts, a.emitter)
}

func (a *app) reviewer() *deduplication.Reviewer {
	return deduplication.NewReviewer(a.jobs, a.contacts)
}

// newBuilder returns a search-space builder with a fresh country cache.
func (a *app) newBuilder() *searchspace.Builder {
	return searchspace.NewBuilder(a.logger, nil)
}

func (a *app) importer(builder *searchspace.Builder) *deduplication.Importer {
	return deduplication.NewImporter(a.logger, builder, a.finder, 0)
}

// startServices registers everything serve needs with a startup sequence.
func (a *app) startServices(ctx context.Context) (*startup.Startup, error) {
	s := startup.New(a.logger, a.cfg.StartupMaxAttempts)

	s.Add(startup.Func{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			if err := a.openDatabase(ctx); err != nil {
				return err
			}
			return a.migrate()
		},
	})
	s.Add(startup.Func{
		Name:      "redis",
		StartFunc: func(context.Context) error { return a.openRedis() },
	})
	s.Add(startup.Func{
		Name: "producer",
		StartFunc: func(context.Context) error {
			a.openProducers()
			return nil
		},
	})
	s.Add(startup.Func{
		Name:     "consumer",
		Requires: []string{"database", "redis", "producer"},
		StartFunc: func(ctx context.Context) error {
			if !a.cfg.KafkaEnabled {
				a.logger.Warn("Kafka is disabled, not consuming deduplication requests")
				return nil
			}
			p := processor.NewProcessor(a.logger, a.runner())
			a.consumer = kafka.NewConsumer(a.cfg.KafkaConsumer(), a.logger, p.Handle)
			return a.consumer.Start(ctx)
		},
		StopFunc: func(context.Context) error {
			if a.consumer == nil {
				return nil
			}
			return a.consumer.Stop()
		},
	})
	s.Add(startup.Func{
		Name: "metrics",
		StartFunc: func(context.Context) error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			a.metricsSv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				if err := a.metricsSv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.WithError(err).Error("Metrics server stopped")
				}
			}()
			a.logger.Infof("Serving metrics on %s", a.cfg.MetricsAddr)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if a.metricsSv == nil {
				return nil
			}
			return a.metricsSv.Shutdown(ctx)
		},
	})

	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start clover: %w", err)
	}
	return s, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("Failed to close resource")
		}
	}
}
