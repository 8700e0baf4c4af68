package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"cafedeck/internal/clients"
	"cafedeck/internal/config"
	"cafedeck/internal/events"
	"cafedeck/internal/gateway"
	"cafedeck/internal/httpserver"
	"cafedeck/internal/store"
	"cafedeck/internal/ws"
)

// App wires all dependencies for the dashboard daemon.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	backend    *clients.Backend
	store      *store.Store
	conn       *ws.Client
	gateway    *gateway.Gateway
	httpServer *httpserver.Server
}

// New builds the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	clock := clockwork.NewRealClock()

	backend := clients.NewBackend(cfg.Backend.BaseURL, cfg.BackendTimeout(), logger)
	st := store.New(clock, cfg.TickPeriod(), logger)

	conn := ws.NewClient(ws.Config{
		URL:                  cfg.Events.URL,
		MaxReconnectAttempts: cfg.Events.MaxReconnectAttempts,
		ReconnectInterval:    cfg.ReconnectInterval(),
	}, clock, logger)

	gw := gateway.New(st, backend, gateway.LogNotifier{Logger: logger}, clock, logger)

	handlers := &httpserver.Handlers{
		Store:    st,
		Gateway:  gw,
		Conn:     conn,
		Location: cfg.Location(),
		Now:      time.Now,
	}
	router := httpserver.NewRouter(httpserver.Routes{
		StationsCollection: handlers.StationsCollection,
		StationSubtree:     handlers.StationSubtree,
		Revenue:            handlers.Revenue,
		QuickPacks:         handlers.QuickPacks,
		Connection:         handlers.Connection,
		Health:             handlers.Health,
	})

	a := &App{
		cfg:        cfg,
		logger:     logger,
		backend:    backend,
		store:      st,
		conn:       conn,
		gateway:    gw,
		httpServer: httpserver.NewServer(cfg.HTTPAddress(), router, logger),
	}

	conn.SubscribeEvents(st.ApplyRemoteEvent)
	conn.SubscribeState(func(state ws.State) {
		logger.Info("event channel state changed", zap.String("state", string(state)))
		if state == ws.StateConnected {
			// Resync after reconnect: events missed while offline are
			// recovered by replacing the whole collection.
			go func() {
				if err := a.conn.Send(events.Command{Type: "subscribe", Payload: map[string][]string{"channels": cfg.Events.Channels}}); err != nil {
					logger.Warn("failed to send subscribe command", zap.Error(err))
				}
				a.hydrate(context.Background())
			}()
		}
	})

	return a, nil
}

// Run starts the countdown, the event channel and the HTTP server, blocking
// until the context is cancelled. A failed initial hydration is not fatal:
// the dashboard stays inspectable and resyncs once the backend is reachable.
func (a *App) Run(ctx context.Context) error {
	a.hydrate(ctx)
	a.conn.Connect()
	go a.store.RunCountdown(ctx)

	err := a.httpServer.Run(ctx)
	a.conn.Disconnect()
	return err
}

// Close releases resources.
func (a *App) Close() {
	a.conn.Disconnect()
}

func (a *App) hydrate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if sysCfg, err := a.backend.GetSystemConfig(ctx); err != nil {
		a.logger.Warn("failed to fetch system config", zap.Error(err))
	} else {
		a.logger.Info("system config loaded",
			zap.String("cafe", sysCfg.CafeName),
			zap.Ints("allowed_times", sysCfg.AllowedTimes))
	}

	stations, err := a.backend.GetStations(ctx)
	if err != nil {
		a.logger.Warn("failed to fetch station snapshot", zap.Error(err))
		return
	}
	a.store.Hydrate(stations)
}
