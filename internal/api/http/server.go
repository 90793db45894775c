package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"torrentsession/internal/domain"
	domainports "torrentsession/internal/domain/ports"
	"torrentsession/internal/usecase"
)

type CreateTorrentUseCase interface {
	Execute(ctx context.Context, input usecase.CreateTorrentInput) (domain.TorrentSnapshot, error)
}

// ControlTorrentUseCase is satisfied by both the pause and resume use cases.
type ControlTorrentUseCase interface {
	Execute(ctx context.Context, id domain.TorrentID) (domain.TorrentSnapshot, error)
}

type DeleteTorrentUseCase interface {
	Execute(ctx context.Context, id domain.TorrentID) error
}

type GetTorrentStateUseCase interface {
	Execute(ctx context.Context, id domain.TorrentID) (domain.TorrentSnapshot, error)
}

type ListTorrentStatesUseCase interface {
	Execute(ctx context.Context, filter domain.TorrentFilter) ([]domain.TorrentSnapshot, error)
}

type Server struct {
	createTorrent  CreateTorrentUseCase
	pauseTorrent   ControlTorrentUseCase
	resumeTorrent  ControlTorrentUseCase
	deleteTorrent  DeleteTorrentUseCase
	getState       GetTorrentStateUseCase
	listStates     ListTorrentStatesUseCase
	repo           domainports.TorrentRepository
	engine         domainports.Engine
	settings       *EngineSettings
	gatherer       prometheus.Gatherer
	allowedOrigins []string
	rateLimit      float64
	rateBurst      int
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithRepository(repo domainports.TorrentRepository) ServerOption {
	return func(s *Server) {
		s.repo = repo
	}
}

func WithPauseTorrent(uc ControlTorrentUseCase) ServerOption {
	return func(s *Server) {
		s.pauseTorrent = uc
	}
}

func WithResumeTorrent(uc ControlTorrentUseCase) ServerOption {
	return func(s *Server) {
		s.resumeTorrent = uc
	}
}

func WithDeleteTorrent(uc DeleteTorrentUseCase) ServerOption {
	return func(s *Server) {
		s.deleteTorrent = uc
	}
}

func WithGetTorrentState(uc GetTorrentStateUseCase) ServerOption {
	return func(s *Server) {
		s.getState = uc
	}
}

func WithListTorrentStates(uc ListTorrentStatesUseCase) ServerOption {
	return func(s *Server) {
		s.listStates = uc
	}
}

// WithEngine enables the initial torrent list pushed to new websocket
// clients and the torrent count in /healthz.
func WithEngine(engine domainports.Engine) ServerOption {
	return func(s *Server) {
		s.engine = engine
	}
}

func WithSettings(settings EngineSettings) ServerOption {
	return func(s *Server) {
		s.settings = &settings
	}
}

// WithGatherer serves /metrics from gatherer instead of the default registry.
func WithGatherer(gatherer prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimit = rps
		s.rateBurst = burst
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(create CreateTorrentUseCase, opts ...ServerOption) *Server {
	s := &Server{
		createTorrent: create,
		rateLimit:     100,
		rateBurst:     200,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	s.wsHub = newWSHub(s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/torrents", s.handleTorrents)
	mux.HandleFunc("/torrents/", s.handleTorrentByID)
	mux.HandleFunc("/records", s.handleRecords)
	mux.HandleFunc("/records/", s.handleRecordByID)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(mux, "torrent-session",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz" && !strings.HasPrefix(p, "/ws")
		}),
	)
	// The access middleware sits outside recovery and the limiter so that
	// recovered panics and 429s are logged and counted.
	s.handler = accessMiddleware(s.logger, recoverMiddleware(s.logger,
		rateLimitMiddleware(s.rateLimit, s.rateBurst, corsMiddleware(s.allowedOrigins, traced))))
	return s
}

// EventSink exposes the websocket hub so the event dispatcher can feed it.
func (s *Server) EventSink() domainports.EventSink {
	return s.wsHub
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := newWSClient(conn, wsQueueDepth)
	if s.engine != nil {
		if payload, err := encodeWSMessage("torrents", s.engine.List(r.Context())); err == nil {
			client.out <- payload
		}
	}
	if !s.wsHub.join(client) {
		_ = conn.Close()
		return
	}
	go client.writeLoop()
	go client.readLoop(s.wsHub)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops the websocket hub, disconnecting all clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
