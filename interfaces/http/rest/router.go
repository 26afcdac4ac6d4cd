package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/interfaces/http/rest/handlers"
	"github.com/Skozial17/supportchat/interfaces/http/rest/middleware"
	"github.com/Skozial17/supportchat/pkg/auth"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/observability"
)

// ReadinessCheck reports whether the backing store accepts traffic.
type ReadinessCheck func() error

// RouterConfig holds everything the router mounts.
type RouterConfig struct {
	Handlers       handlers.Deps
	Authenticator  *middleware.Authenticator
	Streamer       handlers.Streamer
	SignupLimiter  auth.RateLimiter
	Collector      *observability.Collector
	AllowedOrigins []string
	Ready          ReadinessCheck
	Logger         *zap.Logger
}

// Router creates and configures the HTTP router
type Router struct {
	cfg RouterConfig
}

// NewRouter creates the HTTP router
func NewRouter(cfg RouterConfig) *Router {
	return &Router{cfg: cfg}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.cfg.Handlers.Errors.Middleware)
	router.Use(middleware.Logger(rt.cfg.Logger))
	router.Use(middleware.Metrics(rt.cfg.Collector))

	origins := rt.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.cfg.Collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.cfg.Collector.Handler())
	}

	caseHandler := handlers.NewCaseHandler(rt.cfg.Handlers, rt.cfg.Streamer)
	flowHandler := handlers.NewFlowHandler(rt.cfg.Handlers)
	driverHandler := handlers.NewDriverHandler(rt.cfg.Handlers, rt.cfg.SignupLimiter)

	router.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Post("/drivers/signup", driverHandler.Signup)
		r.Get("/drivers/status", driverHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(rt.cfg.Authenticator.Middleware)

			r.Get("/flows", flowHandler.ListFlows)
			r.Get("/flows/{name}", flowHandler.GetFlow)

			r.Route("/cases", func(r chi.Router) {
				r.Post("/", caseHandler.StartCase)
				r.Get("/", caseHandler.ListCases)
				r.Get("/{caseID}", caseHandler.GetCase)
				r.Post("/{caseID}/advance", caseHandler.AdvanceCase)
				r.Post("/{caseID}/messages", caseHandler.PostMessage)
				r.Get("/{caseID}/stream", caseHandler.Stream)
				r.Get("/{caseID}/history", caseHandler.GetHistory)
				r.Post("/{caseID}/close", caseHandler.CloseCase)
				r.Post("/{caseID}/reopen", caseHandler.ReopenCase)
				r.Put("/{caseID}/priority", caseHandler.SetPriority)
			})

			r.Route("/admin/drivers", func(r chi.Router) {
				r.Use(middleware.RequireRole(valueobjects.RoleAdmin))
				r.Get("/pending", driverHandler.ListPending)
				r.Post("/{driverID}/approve", driverHandler.Approve)
				r.Post("/{driverID}/reject", driverHandler.Reject)
			})
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.Ready != nil {
		if err := rt.cfg.Ready(); err != nil {
			rt.cfg.Handlers.Errors.Handle(w, r, pkgerrors.NewStoreUnavailableError("readiness", err))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
