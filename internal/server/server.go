package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/a-essam23/go-collab/internal/auth"
	"github.com/a-essam23/go-collab/internal/engine"
	"github.com/a-essam23/go-collab/internal/router"
	"github.com/a-essam23/go-collab/internal/server/middleware"
	"github.com/a-essam23/go-collab/pkg/config"
	"github.com/a-essam23/go-collab/pkg/directory"
	"github.com/a-essam23/go-collab/pkg/state"
	"github.com/a-essam23/go-collab/pkg/state/statemanager"
	"github.com/a-essam23/go-collab/pkg/transport"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

var errShutdown = errors.New("graceful shutdown")

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	engine       *engine.Engine
	eventRouter  *router.EventRouter
	verifier     *auth.Verifier
	heartbeat    *Heartbeat
	wg           sync.WaitGroup
	handler      http.Handler
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootContx context.Context, cfg *config.Config, dir directory.Directory) *App {
	stateManager := statemanager.NewInMemoryManager(logger, state.Palette(cfg.Presence.Palette))
	verifier := auth.NewVerifier(logger, cfg.Auth.JWTSecret, dir)
	eng := engine.New(logger, stateManager, dir, verifier, engine.Options{
		DefaultSpaceID:   cfg.Spaces.Default,
		DefaultSpaceName: cfg.Spaces.DefaultName,
		CursorRate:       cfg.Presence.CursorRate,
		CursorBurst:      cfg.Presence.CursorBurst,
	})

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		engine:       eng,
		eventRouter:  router.NewEventRouter(logger, stateManager, eng),
		verifier:     verifier,
		heartbeat:    NewHeartbeat(logger, cfg.Heartbeat.Interval, stateManager.AllTransports),
		config:       cfg,
		ctx:          rootContx,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestMetadataMiddleware(), middleware.NewRequestLogger(logger))

	r.Handle("/ws", middleware.Chain(http.HandlerFunc(app.upgradeHandler),
		middleware.NewConnectionLimiter(logger, stateManager.ConnectionCountByIP, cfg.Server.ConnectionLimit),
	))
	r.Get("/healthz", app.handleHealth)
	r.With(middleware.NewBearerAuth(logger, verifier.Subject)).
		Get("/api/spaces/{spaceID}/presence", app.handlePresence)

	app.handler = r
	app.http = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

// Handler exposes the routes, for serving the app from a test server.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves until the root context is cancelled, then shuts down.
func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	go a.heartbeat.Run(a.ctx)

	select {
	case <-a.ctx.Done():
	case err := <-serveErr:
		a.logger.Error("HTTP server failed", slog.Any("error", err))
		return err
	}
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, a.acceptOptions())
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	onClose := func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()), slog.Any("reason", err))
		a.engine.Disconnect(id)
	}
	// Shutdown closes sockets through CloseAll so each peer gets a close frame;
	// the root context must not tear them down first.
	conn := transport.NewConnection(
		context.WithoutCancel(r.Context()),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{
			ReadTimeout: a.config.Transport.ReadTimeout,
			SendBuffer:  a.config.Transport.SendBuffer,
		},
		a.eventRouter.HandleMessage,
		onClose,
		a.logger,
	)
	// register new connection; it stays anonymous until an auth frame arrives.
	if _, err := a.stateManager.RegisterConnection(conn, reqMeta.IP); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}
	connLogger.Info("Connection established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

func (a *App) acceptOptions() *websocket.AcceptOptions {
	origins := a.config.Server.AllowedOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: origins}
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.CloseAll()

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}

// CloseAll closes every live socket. Each close runs the normal disconnect
// cleanup.
func (a *App) CloseAll() {
	transports := a.stateManager.AllTransports()
	a.logger.Info("Closing all active connections...", slog.Int("count", len(transports)))
	for _, t := range transports {
		t.Close(errShutdown)
	}
}
