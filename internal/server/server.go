package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/vigilapp/vigil/internal/archive"
	"github.com/vigilapp/vigil/internal/billing"
	"github.com/vigilapp/vigil/internal/config"
	"github.com/vigilapp/vigil/internal/entitlement"
	"github.com/vigilapp/vigil/internal/events"
	"github.com/vigilapp/vigil/internal/handler"
	"github.com/vigilapp/vigil/internal/middleware"
	"github.com/vigilapp/vigil/internal/notify"
	"github.com/vigilapp/vigil/internal/ping"
	"github.com/vigilapp/vigil/internal/store"
)

type Server struct {
	db  *sql.DB
	cfg *config.Config
	hub *events.Hub

	pingH        *handler.PingHandler
	connectionH  *handler.ConnectionHandler
	scheduleH    *handler.ScheduleHandler
	breakH       *handler.BreakHandler
	entitlementH *handler.EntitlementHandler
	pushH        *handler.PushHandler
	webhookH     *billing.WebhookHandler

	generator  *ping.Generator
	sweeper    *ping.Sweeper
	archiveMgr *archive.Manager
	pushStore  *store.PushStore

	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := events.NewHub(logger.With("component", "events"))

	connectionStore := store.NewConnectionStore(db)
	scheduleStore := store.NewScheduleStore(db)
	breakStore := store.NewBreakStore(db)
	pingStore := store.NewPingStore(db)
	entitlementStore := store.NewEntitlementStore(db)
	pushStore := store.NewPushStore(db)

	gate := entitlement.NewGate(entitlementStore, logger.With("component", "entitlement"))

	// Without VAPID keys notifications go to the log instead of browsers.
	var dispatcher notify.Dispatcher
	var webPush *notify.WebPush
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		webPush = notify.NewWebPush(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.PushSubscriber, pushStore, logger.With("component", "push"))
		dispatcher = webPush
	} else {
		dispatcher = notify.NewLogDispatcher(logger.With("component", "push"))
	}

	generator := ping.NewGenerator(connectionStore, scheduleStore, breakStore, pingStore, gate, logger.With("component", "generator"))
	completer := ping.NewCompleter(pingStore, dispatcher, logger.With("component", "completer"))
	sweeper := ping.NewSweeper(pingStore, pushStore, dispatcher, logger.With("component", "sweeper"))
	streaks := ping.NewStreakCalculator(pingStore)

	var pushH *handler.PushHandler
	if webPush != nil {
		pushH = handler.NewPushHandler(pushStore, webPush, logger.With("component", "push_handler"))
	}

	return &Server{
		db:           db,
		cfg:          cfg,
		hub:          hub,
		pingH:        handler.NewPingHandler(generator, completer, sweeper, streaks, pingStore, hub, logger.With("component", "ping_handler")),
		connectionH:  handler.NewConnectionHandler(connectionStore, hub, logger.With("component", "connection")),
		scheduleH:    handler.NewScheduleHandler(scheduleStore, logger.With("component", "schedule")),
		breakH:       handler.NewBreakHandler(breakStore, logger.With("component", "break")),
		entitlementH: handler.NewEntitlementHandler(gate, logger.With("component", "entitlement_handler")),
		pushH:        pushH,
		webhookH:     billing.NewWebhookHandler(entitlementStore, cfg.StripeWebhookSecret, logger),
		generator:    generator,
		sweeper:      sweeper,
		archiveMgr:   archive.NewManager(cfg.Archive, db, logger),
		pushStore:    pushStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// Generator exposes the ping generator for scheduled jobs.
func (s *Server) Generator() *ping.Generator {
	return s.generator
}

// Sweeper exposes the missed-detection sweeper for scheduled jobs.
func (s *Server) Sweeper() *ping.Sweeper {
	return s.sweeper
}

// ArchiveManager exposes the archive manager for scheduled jobs.
func (s *Server) ArchiveManager() *archive.Manager {
	return s.archiveMgr
}

// PushStore exposes the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// Hub exposes the event hub.
func (s *Server) Hub() *events.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)

	// Protected routes behind bearer auth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth([]byte(s.cfg.JWTSecret))
	rateLimit := s.rateLimiter.Limit(120, time.Minute)
	outerMux.Handle("/", authMiddleware(rateLimit(protectedMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Connection routes
	mux.HandleFunc("POST /api/connections", s.connectionH.Create)
	mux.HandleFunc("GET /api/connections", s.connectionH.List)
	mux.HandleFunc("PUT /api/connections/{id}/status", s.connectionH.UpdateStatus)
	mux.HandleFunc("DELETE /api/connections/{id}", s.connectionH.Delete)

	// Schedule routes
	mux.HandleFunc("PUT /api/schedule", s.scheduleH.Upsert)
	mux.HandleFunc("GET /api/schedule", s.scheduleH.Get)
	mux.HandleFunc("PUT /api/schedule/timezone", s.scheduleH.UpdateTimezone)

	// Break routes
	mux.HandleFunc("POST /api/breaks", s.breakH.Create)
	mux.HandleFunc("GET /api/breaks", s.breakH.List)
	mux.HandleFunc("POST /api/breaks/{id}/cancel", s.breakH.Cancel)

	// Ping lifecycle routes
	mux.HandleFunc("POST /api/pings/generate", s.pingH.Generate)
	mux.HandleFunc("POST /api/pings/complete", s.pingH.Complete)
	mux.HandleFunc("POST /api/pings/sweep", s.pingH.Sweep)
	mux.HandleFunc("GET /api/pings", s.pingH.List)
	mux.HandleFunc("GET /api/streak", s.pingH.Streak)

	// Entitlement routes
	mux.HandleFunc("GET /api/entitlement", s.entitlementH.Check)

	// Push subscription routes, present only when VAPID keys are configured
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	}

	// Real-time events
	mux.HandleFunc("GET /ws", events.HandleWebSocket(s.hub, s.logger.With("component", "events")))
}
