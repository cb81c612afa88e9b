// Package httpapi exposes the services over JSON/HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/service"
)

// Options configures NewRouter. Ping backs /healthz; Metrics may be nil.
type Options struct {
	Services *service.Services
	Tokens   *auth.Tokens
	Logger   *zap.Logger
	Metrics  *Metrics
	Ping     func(context.Context) error
}

// API holds the handler dependencies.
type API struct {
	svc      *service.Services
	tokens   *auth.Tokens
	log      *zap.Logger
	validate *validator.Validate
	ping     func(context.Context) error
}

// NewRouter builds the HTTP handler with every route under /api.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &API{
		svc:      opts.Services,
		tokens:   opts.Tokens,
		log:      logger.Named("http"),
		validate: newValidator(),
		ping:     opts.Ping,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Get("/healthz", a.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(a.authenticate)

		r.Post("/auth/register", a.handle(a.register))
		r.Post("/auth/login", a.handle(a.login))

		r.Group(func(r chi.Router) {
			r.Use(a.requirePrincipal)

			r.Get("/auth/me", a.handle(a.me))
			r.Post("/auth/client", a.handle(a.upsertClient))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", a.handle(a.listOrders))
				r.Post("/", a.handle(a.createOrder))
				r.Get("/{id}", a.handle(a.getOrder))
				r.Put("/{id}", a.handle(a.updateOrder))
				r.Delete("/{id}", a.handle(a.deleteOrder))
				r.Get("/{id}/comments", a.handle(a.listOrderComments))
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", a.handle(a.listProducts))
				r.Post("/", a.handle(a.createProduct))
				r.Get("/{id}", a.handle(a.getProduct))
				r.Put("/{id}", a.handle(a.updateProduct))
				r.Delete("/{id}", a.handle(a.deleteProduct))
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", a.handle(a.listJobs))
				r.Post("/", a.handle(a.createJob))
				r.Get("/{id}", a.handle(a.getJob))
				r.Put("/{id}", a.handle(a.updateJob))
				r.Delete("/{id}", a.handle(a.deleteJob))
			})

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", a.handle(a.listDocuments))
				r.Post("/", a.handle(a.createDocument))
				r.Get("/{id}", a.handle(a.getDocument))
				r.Put("/{id}", a.handle(a.updateDocument))
				r.Delete("/{id}", a.handle(a.deleteDocument))
				r.Get("/{id}/comments", a.handle(a.listDocumentComments))
			})

			r.Route("/comments", func(r chi.Router) {
				r.Get("/", a.handle(a.listComments))
				r.Post("/", a.handle(a.createComment))
				r.Get("/{id}", a.handle(a.getComment))
				r.Put("/{id}", a.handle(a.updateComment))
				r.Delete("/{id}", a.handle(a.deleteComment))
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", a.handle(a.listUsers))
				r.Post("/", a.handle(a.createUser))
				r.Get("/{id}", a.handle(a.getUser))
				r.Delete("/{id}", a.handle(a.deleteUser))
				r.Put("/{id}/username", a.handle(a.updateUsername))
				r.Put("/{id}/password", a.handle(a.updatePassword))
				r.Put("/{id}/role", a.handle(a.setRole))
			})

			r.Get("/managers", a.handle(a.listManagers))
			r.Get("/managers/{id}", a.handle(a.getManager))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}

// handle adapts an error-returning handler.
func (a *API) handle(fn func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			a.fail(w, r, err)
		}
	}
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if a.ping != nil {
		if err := a.ping(r.Context()); err != nil {
			a.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
