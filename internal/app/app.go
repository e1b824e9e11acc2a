package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/config"
	httpserver "github.com/stefan2811/port-16/internal/http"
	"github.com/stefan2811/port-16/internal/http/handlers"
	libredis "github.com/stefan2811/port-16/internal/redis"
	"github.com/stefan2811/port-16/internal/service"
	"github.com/stefan2811/port-16/internal/session"
	"github.com/stefan2811/port-16/internal/storage"
)

// App wires the simulator dependencies.
type App struct {
	server      *httpserver.Server
	redisClient *goredis.Client
	logger      *zap.Logger
}

// New constructs the application graph. The context is the process lifetime;
// every background heartbeat loop descends from it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	redisClient, err := libredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	kv := storage.NewRedisKV(redisClient)
	stores := session.Stores{
		Points:       storage.NewChargePointStore(kv, logger),
		Connectors:   storage.NewConnectorStore(kv, logger),
		Transactions: storage.NewTransactionStore(kv, logger),
		Tags:         storage.NewAuthTagStore(kv, logger),
	}

	registry := session.NewRegistry()
	commands := service.NewCommands(ctx, registry, stores, session.Dial, service.Defaults{
		Endpoint:          cfg.CentralSystem.URL,
		Protocol:          cfg.CentralSystem.Protocol,
		HeartbeatInterval: cfg.Heartbeat.IntervalSeconds,
	}, logger)

	routes := httpserver.Routes{
		CreateChargePoint: handlers.NewCreateChargePointHandler(commands),
		ListChargePoints:  handlers.NewListChargePointsHandler(commands),
		GetChargePoint:    handlers.NewGetChargePointHandler(commands),
		DeleteChargePoint: handlers.NewDeleteChargePointHandler(commands),
		StartChargePoint:  handlers.NewStartChargePointHandler(commands),
		BootNotification:  handlers.NewBootNotificationHandler(commands),
		Heartbeat:         handlers.NewHeartbeatHandler(commands),
		Authorize:         handlers.NewAuthorizeHandler(commands),
		StartTransaction:  handlers.NewStartTransactionHandler(commands),
		StopTransaction:   handlers.NewStopTransactionHandler(commands),
		Health:            handlers.NewHealthHandler(),
		Metrics:           promhttp.Handler(),
	}

	router := httpserver.NewRouter(routes)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
