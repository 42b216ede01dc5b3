package wire

import (
	"net/http"

	"mfa-service/internal/adaptor"
	"mfa-service/internal/data/repository"
	"mfa-service/internal/usecase"
	"mfa-service/pkg/metrics"
	"mfa-service/pkg/middleware"
	"mfa-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// App holds the assembled HTTP stack
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and routes. checks back GET /health.
func Wiring(
	repo *repository.Repository,
	deps usecase.Deps,
	checks map[string]adaptor.HealthCheck,
	config *utils.Config,
	logger *zap.Logger,
) *App {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}

	service := usecase.NewService(repo, deps, config, logger)
	handler := adaptor.NewHandler(service, checks, logger)

	return &App{
		Router:  setupRouter(handler, repo, deps.Metrics, logger),
		Service: service,
	}
}

func setupRouter(handler *adaptor.Handler, repo *repository.Repository, m *metrics.Metrics, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticated := middleware.AuthSession(repo.Session, repo.User, logger)

	wireAuth(r, handler.Auth, authenticated)
	wireUser(r, handler.User, authenticated, logger)
	wireNotification(r, handler.Notification, authenticated)

	r.Get("/health", handler.Health.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return r
}
