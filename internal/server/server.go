package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/challengerdaily/challengerdaily/internal/backup"
	"github.com/challengerdaily/challengerdaily/internal/billing"
	"github.com/challengerdaily/challengerdaily/internal/handler"
	"github.com/challengerdaily/challengerdaily/internal/license"
	"github.com/challengerdaily/challengerdaily/internal/localstore"
	"github.com/challengerdaily/challengerdaily/internal/logbook"
	"github.com/challengerdaily/challengerdaily/internal/middleware"
	"github.com/challengerdaily/challengerdaily/internal/push"
	"github.com/challengerdaily/challengerdaily/internal/store"
	ws "github.com/challengerdaily/challengerdaily/internal/websocket"
)

// Config collects everything the server needs beyond the open database:
// where guest files live and the credentials for the optional outside
// services (Stripe, web push, S3 backups).
type Config struct {
	License    license.Config
	Billing    billing.Config
	Push       push.Config
	Backup     backup.Config
	RemindHour int
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	challengeH    *handler.ChallengeHandler
	logH          *handler.LogHandler
	settingsH     *handler.SettingsHandler
	authH         *handler.AuthHandler
	pushH         *handler.PushHandler
	billingH      *handler.BillingHandler
	backupH       *handler.BackupHandler
	sessionStore  *store.SessionStore
	pushStore     *store.PushStore
	rateLimiter   *middleware.RateLimiter
	license       *license.Service
	backupManager *backup.Manager
	pushService   *push.Service
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, guests *localstore.Store, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	challengeStore := store.NewChallengeStore(db)
	kvStore := store.NewKVStore(db)
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	accountStore := store.NewAccountStore(db)
	pushStore := store.NewPushStore(db)

	// Registered users keep their logbook in SQLite, guests in a JSON
	// file. The owner ID prefix decides which.
	logbooks := logbook.NewManager(func(ownerID string) logbook.Adapter {
		if strings.HasPrefix(ownerID, "guest:") {
			return guests.ForOwner(ownerID)
		}
		return kvStore.ForOwner(ownerID)
	}, nil)

	licenseSvc := license.NewService(accountStore, cfg.License)
	billingClient := billing.NewClient(cfg.Billing)
	backupMgr := backup.NewManager(cfg.Backup, db, logger.With("component", "backup"))

	pushSvc := push.NewService(cfg.Push)
	pushLogger := logger.With("component", "push")
	var pushSched *push.Scheduler
	if pushSvc.Enabled() {
		pushSched = push.NewScheduler(pushSvc, pushStore, challengeStore, logbooks, licenseSvc, pushLogger, cfg.RemindHour)
	}

	return &Server{
		db:            db,
		hub:           hub,
		challengeH:    handler.NewChallengeHandler(challengeStore, logbooks, hub, logger.With("component", "challenge")),
		logH:          handler.NewLogHandler(challengeStore, logbooks, hub, logger.With("component", "log")),
		settingsH:     handler.NewSettingsHandler(logbooks, hub, logger.With("component", "settings")),
		authH:         handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		pushH:         handler.NewPushHandler(pushSvc, pushStore, logger.With("component", "push_handler")),
		billingH:      handler.NewBillingHandler(billingClient, accountStore, userStore, licenseSvc, logger.With("component", "billing")),
		backupH:       handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler")),
		sessionStore:  sessionStore,
		pushStore:     pushStore,
		rateLimiter:   middleware.NewRateLimiter(),
		license:       licenseSvc,
		backupManager: backupMgr,
		pushService:   pushSvc,
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the reminder scheduler, nil when push is not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no identity required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/billing/webhook", s.billingH.Webhook)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else resolves an identity first: a session cookie for
	// registered users, otherwise an auto-provisioned guest cookie.
	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)

	identity := middleware.ResolveIdentity(s.sessionStore)
	outerMux.Handle("/", identity(apiMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

// gated wraps a mutating handler with the trial check: expired,
// non-upgraded owners get 402 on writes while reads stay open.
func (s *Server) gated(h http.HandlerFunc) http.HandlerFunc {
	gate := s.license.RequireActive(h)
	return func(w http.ResponseWriter, r *http.Request) {
		gate.ServeHTTP(w, r)
	}
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Challenge routes
	mux.HandleFunc("POST /api/challenges", s.gated(s.challengeH.Create))
	mux.HandleFunc("GET /api/challenges", s.challengeH.List)
	mux.HandleFunc("GET /api/challenges/{id}", s.challengeH.Get)
	mux.HandleFunc("PUT /api/challenges/{id}", s.gated(s.challengeH.Update))
	mux.HandleFunc("DELETE /api/challenges/{id}", s.gated(s.challengeH.Delete))

	// Log routes
	mux.HandleFunc("POST /api/challenges/{id}/logs", s.gated(s.logH.CreateLog))
	mux.HandleFunc("GET /api/challenges/{id}/progress", s.logH.Progress)
	mux.HandleFunc("GET /api/challenges/{id}/calendar", s.logH.Calendar)

	// Settings routes
	mux.HandleFunc("GET /api/settings/mode", s.settingsH.GetMode)
	mux.HandleFunc("PUT /api/settings/mode", s.gated(s.settingsH.UpdateMode))

	// Push notification routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)

	// Billing and account routes
	mux.HandleFunc("POST /api/billing/checkout", s.billingH.Checkout)
	mux.HandleFunc("POST /api/billing/redeem", s.billingH.Redeem)
	mux.HandleFunc("GET /api/account", s.billingH.Account)

	// Backup routes are for registered users only
	mux.Handle("GET /api/backup/status", middleware.RequireUser(http.HandlerFunc(s.backupH.Status)))
	mux.Handle("POST /api/backup/run", middleware.RequireUser(http.HandlerFunc(s.backupH.RunNow)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
