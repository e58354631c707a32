package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/meli-harvester/internal/api/handlers"
	"github.com/donaldgifford/meli-harvester/internal/cache"
	"github.com/donaldgifford/meli-harvester/internal/config"
	"github.com/donaldgifford/meli-harvester/internal/events"
	"github.com/donaldgifford/meli-harvester/internal/harvest"
	"github.com/donaldgifford/meli-harvester/internal/meli"
	"github.com/donaldgifford/meli-harvester/internal/notify"
	"github.com/donaldgifford/meli-harvester/internal/sink"
	"github.com/donaldgifford/meli-harvester/internal/store"
	"github.com/donaldgifford/meli-harvester/internal/telemetry"
	"github.com/donaldgifford/meli-harvester/pkg/logger"
)

const webhookTimeout = 10 * time.Second

// app holds every long-lived component built from the configuration.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	limiter  *meli.RateLimiter
	tokens   *meli.TokenManager
	client   *meli.Client
	pipeline *harvest.Pipeline
	store    store.Store
	reader   sink.Reader
	closers  []func() error
}

// loadConfig reads the config file. When --config was left at its default
// and the file does not exist, settings come from the environment alone.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format).With("service", "meli-harvester")
}

// buildApp wires the harvesting stack. On error every component opened so
// far is closed.
func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	a.onClose(func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(sctx)
	})

	rdb, err := a.openRedis(ctx)
	if err != nil {
		return nil, err
	}

	a.tokens = newTokenManager(cfg, rdb, log)
	a.limiter = meli.NewRateLimiter(
		cfg.Meli.RateLimit.PerSecond,
		cfg.Meli.RateLimit.Burst,
		cfg.Meli.RateLimit.DailyLimit,
	)

	a.client = newMarketplaceClient(cfg, a.tokens, a.limiter, log)
	collector := meli.NewIDCollector(a.client,
		meli.WithPageSize(cfg.Meli.PageSize),
		meli.WithOffsetCap(cfg.Meli.OffsetCap),
		meli.WithCollectorPacing(meli.Pacing{PageDelay: cfg.Meli.PageDelay}),
		meli.WithCollectorLogger(log),
	)
	fetcher := meli.NewItemFetcher(a.client,
		meli.WithFallbackStatuses(cfg.Meli.FallbackStatuses...),
		meli.WithItemLogger(log),
	)

	results, err := a.buildSinks(ctx, rdb)
	if err != nil {
		return nil, err
	}

	opts := []harvest.PipelineOption{
		harvest.WithSink(results),
		harvest.WithNotifier(newNotifier(cfg, log)),
		harvest.WithItemDelay(cfg.Meli.ItemDelay),
		harvest.WithLogger(log),
	}
	if a.store != nil {
		opts = append(opts, harvest.WithRunRecorder(a.store))
	}
	a.pipeline = harvest.NewPipeline(cfg.Meli.AccountID, collector, fetcher, opts...)

	if a.reader == nil {
		a.reader = a.pipeline
	}

	log.Info("harvester configured",
		"account_id", cfg.Meli.AccountID,
		"api_base", cfg.Meli.APIBase,
		"sinks", cfg.Harvest.Sinks,
		"fallback_statuses", cfg.Meli.FallbackStatuses,
		"persist_tokens", cfg.Redis.PersistTokens,
	)
	return a, nil
}

func (a *app) onClose(f func() error) {
	a.closers = append(a.closers, f)
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) openRedis(ctx context.Context) (*redis.Client, error) {
	cfg := a.cfg
	if !cfg.Redis.PersistTokens && !cfg.Harvest.HasSink(config.SinkRedis) {
		return nil, nil
	}
	rdb, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	a.onClose(rdb.Close)
	return rdb, nil
}

func newTokenManager(cfg *config.Config, rdb *redis.Client, log *slog.Logger) *meli.TokenManager {
	opts := []meli.TokenOption{
		meli.WithAPIBase(cfg.Meli.APIBase),
		meli.WithTokenHTTPClient(telemetry.HTTPClient(&http.Client{})),
		meli.WithTokenLogger(log),
	}
	if cfg.Redis.PersistTokens && rdb != nil {
		opts = append(opts, meli.WithTokenStore(cache.NewTokenStore(rdb, cfg.Redis.TokenKey)))
	}
	return meli.NewTokenManager(cfg.Meli.Credentials(), opts...)
}

// newMarketplaceClient builds the API client. Request deadlines are set per
// call by the client, so the HTTP client carries no timeout of its own.
func newMarketplaceClient(
	cfg *config.Config,
	tokens meli.TokenSource,
	limiter *meli.RateLimiter,
	log *slog.Logger,
) *meli.Client {
	opts := []meli.ClientOption{
		meli.WithBaseURL(cfg.Meli.APIBase),
		meli.WithHTTPClient(telemetry.HTTPClient(&http.Client{})),
		meli.WithClientLogger(log),
	}
	if limiter != nil {
		opts = append(opts, meli.WithRateLimiter(limiter))
	}
	return meli.NewClient(tokens, opts...)
}

// buildSinks opens every configured result sink. The first readable sink
// becomes the product reader, with Postgres preferred.
func (a *app) buildSinks(ctx context.Context, rdb *redis.Client) (*sink.Multi, error) {
	cfg := a.cfg
	targets := make([]sink.Target, 0, len(cfg.Harvest.Sinks))
	var readers []sink.Reader

	for _, name := range cfg.Harvest.Sinks {
		switch name {
		case config.SinkFile:
			fs := sink.NewFileSink(cfg.Harvest.OutputDir)
			targets = append(targets, sink.Target{Name: name, Sink: fs})
			readers = append(readers, fs)

		case config.SinkPostgres:
			pg, err := store.NewPostgresStore(ctx, cfg.Database.DSN())
			if err != nil {
				return nil, fmt.Errorf("connecting to database: %w", err)
			}
			a.onClose(func() error { pg.Close(); return nil })

			applied, err := pg.Migrate(ctx)
			if err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			if len(applied) > 0 {
				a.log.Info("migrations applied", "versions", applied)
			}
			a.store = pg
			targets = append(targets, sink.Target{Name: name, Sink: pg})

		case config.SinkRedis:
			sc := cache.NewSnapshotCache(rdb, cfg.Redis.SnapshotKey, cfg.Redis.SnapshotTTL)
			targets = append(targets, sink.Target{Name: name, Sink: sc})
			readers = append(readers, sc)

		case config.SinkRabbitMQ:
			pub, err := events.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
			if err != nil {
				return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
			}
			a.onClose(pub.Close)
			targets = append(targets, sink.Target{Name: name, Sink: pub})
		}
	}

	switch {
	case a.store != nil:
		a.reader = a.store
	case len(readers) > 0:
		a.reader = readers[0]
	}

	return sink.NewMulti(targets...), nil
}

func newNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	if !cfg.Notifications.Discord.Enabled {
		return notify.NewNoOpNotifier(log)
	}
	return notify.NewDiscordNotifier(
		cfg.Notifications.Discord.WebhookURL,
		notify.WithHTTPClient(telemetry.HTTPClient(&http.Client{Timeout: webhookTimeout})),
	)
}

// productLister answers product queries from Postgres when available and
// from the latest readable snapshot otherwise.
func (a *app) productLister() handlers.ProductLister {
	if a.store != nil {
		return a.store
	}
	return store.NewSnapshotLister(a.reader)
}
