package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-crisislens/config"
	"go-crisislens/cronjobs"
	"go-crisislens/db"
	"go-crisislens/events"
	"go-crisislens/feeds"
	"go-crisislens/geocode"
	"go-crisislens/handlers"
	"go-crisislens/location"
	"go-crisislens/logging"
	"go-crisislens/matcher"
	"go-crisislens/metrics"
	"go-crisislens/mlmodel"
	"go-crisislens/nlp"
	"go-crisislens/notify"
	"go-crisislens/processor"
	"go-crisislens/reasoning"
	"go-crisislens/reconcile"
	"go-crisislens/refinement"
	"go-crisislens/routes"
	"go-crisislens/scoring"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogEncoding)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	clock := clockwork.NewRealClock()

	store, closeStore, err := openStore(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var reasoner reasoning.Reasoner
	if cfg.OpenAIKey != "" {
		reasoner = reasoning.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.ReasoningTimeout, cfg.ReasoningRateLimit)
	} else {
		logger.Warn("OPENAI_API_KEY not set, refinement, reconciliation and urgency ranking will degrade")
	}

	geocoder, err := openGeocoder(cfg, m)
	if err != nil {
		logger.Warn("geocoder unavailable, unresolved locations stay at (0,0)", zap.Error(err))
	}

	var hinter processor.LocationHinter
	if cfg.NaturalLanguageCredentials != "" {
		langClient, err := nlp.NewLanguageClient(ctx, cfg.NaturalLanguageCredentials, cfg.GeocodeTimeout, m)
		if err != nil {
			return err
		}
		defer langClient.Close()
		hinter = nlp.NewLocationHinter(langClient)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		logger.Info("publishing record events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	orch := processor.New(processor.Deps{
		Classifier: mlmodel.NewClient(cfg.MLServiceURL, cfg.MLTimeout, cfg.MLRateLimit, m),
		Refiner:    refinement.New(reasoner, logger, m),
		Resolver:   location.NewResolver(geocoder, logger),
		Matcher:    matcher.New(store),
		Reconciler: reconcile.New(reasoner, logger, m),
		Hinter:     hinter,
		Store:      store,
		Publisher:  publisher,
		Clock:      clock,
		Logger:     logger,
		Metrics:    m,
	}, processor.Options{
		Policy:           processor.Policy(cfg.ReconcilePolicy),
		Workers:          cfg.BatchWorkers,
		ClassifyAttempts: cfg.ClassifyAttempts,
		ClassifyBackoff:  cfg.ClassifyBackoff,
	})
	engine := scoring.New(store, reasoner, logger, m)

	var feedSource *feeds.BlueskySource
	if len(cfg.FeedURIs) > 0 {
		feedSource = feeds.NewBlueskySource(cfg.FeedHost, cfg.FeedURIs, cfg.FeedLimit, cfg.FeedTimeout, logger)
	}

	scheduler := cronjobs.NewScheduler(logger)
	if feedSource != nil {
		if err := scheduler.Add(cfg.FeedSchedule, "feed-ingestion", cronjobs.FeedJob(feedSource, orch)); err != nil {
			return err
		}
	}
	if cfg.AlertWebhookURL != "" {
		sender := notify.NewWebhookSender(cfg.AlertWebhookURL, notify.WebhookOptions{RetryMax: cfg.AlertRetryMax}, logger)
		dispatcher := notify.NewDispatcher(store, sender, cfg.AlertSeverityThreshold, logger, m)
		if err := scheduler.Add(cfg.AlertSchedule, "alert-dispatch", cronjobs.AlertJob(dispatcher)); err != nil {
			return err
		}
	}
	if err := scheduler.Add(cfg.RetentionSchedule, "record-retention", cronjobs.RetentionJob(store, cfg.RetentionAge, clock, logger)); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}

	h := &handlers.Handler{
		Processor:   orch,
		Recommender: engine,
		Deleter:     store,
		Logger:      logger,
	}
	if feedSource != nil {
		h.Feeds = feedSource
	}

	if cfg.LogEncoding != "console" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           routes.SetupRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler did not stop cleanly", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("service stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *zap.Logger) (db.Store, func(), error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory store, records are lost on exit")
		return db.NewMemoryStore(clock), func() {}, nil
	}

	client, err := db.InitFirestore(ctx, cfg.FirebaseCredentials)
	if err != nil {
		return nil, nil, err
	}
	fs := db.NewFirestoreStore(client, clock, logger)
	return fs, func() {
		if err := fs.Close(); err != nil {
			logger.Warn("closing firestore", zap.Error(err))
		}
	}, nil
}

// openGeocoder returns a nil interface when the configured backend cannot be built.
func openGeocoder(cfg *config.Config, m *metrics.Metrics) (geocode.Geocoder, error) {
	if cfg.Geocoder == "nominatim" {
		return geocode.NewNominatimGeocoder(cfg.NominatimURL, cfg.GeocodeTimeout, m), nil
	}
	g, err := geocode.NewGoogleGeocoder(cfg.MapsCredentials, cfg.GeocodeTimeout, m)
	if err != nil {
		return nil, err
	}
	return g, nil
}
