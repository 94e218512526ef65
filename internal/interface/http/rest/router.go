// Package rest exposes the server of record over HTTP+JSON.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/application/usecase/record"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/infrastructure/auth"
)

// maxBodyBytes bounds request bodies; a sync batch carries whole accounts
const maxBodyBytes = 32 << 20

// Deps are the collaborators of the router
type Deps struct {
	Journeys *record.Service[journey.Journey]
	Journals *record.Service[journal.Journal]
	Tokens   *auth.Tokens
	Logger   *zap.Logger
	Metrics  output.Metrics
	// MetricsHandler serves /metrics when set
	MetricsHandler http.Handler
	CORSOrigins    []string
	Timeout        time.Duration
}

// Router builds the HTTP handler of the server of record
type Router struct {
	deps    Deps
	logger  *zap.Logger
	metrics output.Metrics
}

// NewRouter creates a router
func NewRouter(deps Deps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}
	return &Router{deps: deps, logger: logger, metrics: metrics}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))
	router.Use(requestMetrics(rt.metrics))
	router.Use(chimiddleware.Timeout(rt.deps.Timeout))

	origins := rt.deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", rt.healthCheck)
	if rt.deps.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", rt.deps.MetricsHandler)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/anonymous", rt.issueAnonymous)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(rt.deps.Tokens))

			mountEntity(r, "/journeys", newEntityHandler(rt.deps.Journeys, rt.logger))
			mountEntity(r, "/journals", newEntityHandler(rt.deps.Journals, rt.logger))
			r.Post("/account/link", rt.linkAccount)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type anonymousResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// issueAnonymous handles POST /auth/anonymous
func (rt *Router) issueAnonymous(w http.ResponseWriter, r *http.Request) {
	token, userID, err := rt.deps.Tokens.IssueAnonymous()
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	rt.logger.Info("anonymous identity issued", zap.String("user_id", userID))
	writeJSON(w, http.StatusCreated, anonymousResponse{Token: token, UserID: userID})
}

type linkRequest struct {
	AnonymousToken string `json:"anonymousToken" validate:"required"`
}

type linkResponse struct {
	Moved int `json:"moved"`
}

// linkAccount handles POST /account/link
func (rt *Router) linkAccount(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())

	var req linkRequest
	if !decodeBody(w, r, rt.logger, &req) {
		return
	}
	anon, err := rt.deps.Tokens.Validate(req.AnonymousToken)
	if err != nil || !anon.Anonymous {
		writeFieldError(w, "anonymousToken", "must be a valid anonymous token")
		return
	}
	if anon.UserID() == claims.UserID() {
		writeFieldError(w, "anonymousToken", "must belong to another identity")
		return
	}

	moved, err := record.LinkAccount(r.Context(), anon.UserID(), claims.UserID(), rt.deps.Journeys, rt.deps.Journals)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	rt.logger.Info("account linked",
		zap.String("from", anon.UserID()),
		zap.String("to", claims.UserID()),
		zap.Int("moved", moved))
	writeJSON(w, http.StatusOK, linkResponse{Moved: moved})
}
