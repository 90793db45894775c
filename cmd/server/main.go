package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"golang.org/x/sync/errgroup"

	apihttp "torrentsession/internal/api/http"
	"torrentsession/internal/app"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/events"
	"torrentsession/internal/events/redisbus"
	"torrentsession/internal/metrics"
	memoryrepo "torrentsession/internal/repository/memory"
	mongorepo "torrentsession/internal/repository/mongo"
	"torrentsession/internal/services/torrent/engine"
	"torrentsession/internal/telemetry"
	"torrentsession/internal/usecase"
)

const serviceName = "torrent-session"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Bool("mongo", cfg.MongoURI != ""),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Int("maxTorrents", cfg.MaxTorrents),
		slog.Duration("progressInterval", cfg.ProgressInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	repo, mongoClient, err := openRepository(connectCtx, cfg, logger)
	if err != nil {
		logger.Error("repository init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	eng := engine.New(engine.Config{
		DownloadDir:        cfg.DownloadDir,
		MaxTorrents:        cfg.MaxTorrents,
		MaxPeersPerTorrent: cfg.MaxPeersPerTorrent,
		ListenPort:         cfg.ListenPort,
		EnableDHT:          cfg.EnableDHT,
		EnableUPnP:         cfg.EnableUPnP,
		UploadLimitKBps:    cfg.UploadLimitKBps,
		DownloadLimitKBps:  cfg.DownloadLimitKBps,
		SeedRatioLimit:     cfg.SeedRatioLimit,
		SeedTimeLimit:      cfg.SeedTimeLimit,
	}, logger)

	// Re-admit stored torrents before the feed starts so subscribers see the
	// restored Added events in order.
	restoreUC := usecase.SessionRestore{Engine: eng, Repo: repo, Logger: logger}
	if res, err := restoreUC.Execute(rootCtx); err != nil {
		logger.Warn("session restore failed", slog.String("error", err.Error()))
	} else {
		logger.Info("session restored",
			slog.Int("restored", res.Restored),
			slog.Int("skipped", res.Skipped),
			slog.Int("failed", res.Failed),
		)
	}

	createUC := usecase.CreateTorrent{Engine: eng, Repo: repo, Logger: logger, Now: time.Now}
	pauseUC := usecase.PauseTorrent{Engine: eng}
	resumeUC := usecase.ResumeTorrent{Engine: eng}
	deleteUC := usecase.DeleteTorrent{Engine: eng, Repo: repo}
	stateUC := usecase.GetTorrentState{Engine: eng}
	listStateUC := usecase.ListTorrentStates{Engine: eng}

	handler := apihttp.NewServer(createUC,
		apihttp.WithRepository(repo),
		apihttp.WithLogger(logger),
		apihttp.WithPauseTorrent(pauseUC),
		apihttp.WithResumeTorrent(resumeUC),
		apihttp.WithDeleteTorrent(deleteUC),
		apihttp.WithGetTorrentState(stateUC),
		apihttp.WithListTorrentStates(listStateUC),
		apihttp.WithEngine(eng),
		apihttp.WithSettings(settingsFromConfig(cfg)),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.HTTPRateLimit, cfg.HTTPRateBurst),
	)

	sinks := []ports.EventSink{
		handler.EventSink(),
		usecase.RecordSink{Engine: eng, Repo: repo},
	}
	if cfg.RedisURL != "" {
		redisClient, err := redisbus.Connect(connectCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, event publishing disabled", slog.String("error", err.Error()))
		} else {
			defer redisClient.Close()
			sinks = append(sinks, redisbus.NewPublisher(redisClient, cfg.RedisChannel))
		}
	}
	sinks = append(sinks, engineMetricsSink(eng))
	dispatcher := events.NewDispatcher(eng.Events(), logger, sinks...)

	reporter := engine.NewReporter(eng, cfg.ProgressInterval,
		engine.SimulatedTransfer{Increment: cfg.ProgressIncrement}, logger)
	syncUC := usecase.SyncState{Engine: eng, Repo: repo, Logger: logger, Interval: cfg.SyncInterval}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	// The dispatcher runs outside the group: it stops only once the engine
	// channel is closed and drained.
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		dispatcher.Run(context.WithoutCancel(rootCtx))
	}()

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		reporter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		syncUC.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("server started", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		handler.Close()
		return srv.Shutdown(shutdownCtx)
	})

	exitCode := 0
	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		exitCode = 1
	}

	eng.Close()
	select {
	case <-dispatched:
	case <-time.After(5 * time.Second):
		logger.Warn("event dispatcher did not drain in time")
	}

	if mongoClient != nil {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// openRepository returns the Mongo-backed repository when MONGO_URI is set
// and an in-memory one otherwise. The client is nil for the latter.
func openRepository(ctx context.Context, cfg app.Config, logger *slog.Logger) (ports.TorrentRepository, *mongo.Client, error) {
	if cfg.MongoURI == "" {
		logger.Info("MONGO_URI not set, records are kept in memory")
		return memoryrepo.NewRepository(), nil, nil
	}

	client, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	repo := mongorepo.NewRepository(client, cfg.MongoDatabase, cfg.MongoCollection)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}
	return repo, client, nil
}

func settingsFromConfig(cfg app.Config) apihttp.EngineSettings {
	return apihttp.EngineSettings{
		DownloadDir:        cfg.DownloadDir,
		MaxTorrents:        cfg.MaxTorrents,
		MaxPeersPerTorrent: cfg.MaxPeersPerTorrent,
		ListenPort:         cfg.ListenPort,
		EnableDHT:          cfg.EnableDHT,
		EnableUPnP:         cfg.EnableUPnP,
		UploadLimitKBps:    cfg.UploadLimitKBps,
		DownloadLimitKBps:  cfg.DownloadLimitKBps,
		SeedRatioLimit:     cfg.SeedRatioLimit,
		SeedTimeLimitSec:   int64(cfg.SeedTimeLimit / time.Second),
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
