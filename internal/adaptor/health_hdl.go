package adaptor

import (
	"context"
	"net/http"
	"sort"
	"time"

	"mfa-service/pkg/utils"

	"go.uber.org/zap"
)

// HealthCheck pings one backing service
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
	log    *zap.Logger
}

func NewHealthHandler(checks map[string]HealthCheck, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		log:    log.With(zap.String("handler", "health")),
	}
}

// Health handles GET /health: 200 when every dependency answers, 503 otherwise
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}

	if !healthy {
		utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "Degraded", status, nil)
		return
	}
	utils.ResponseSuccess(w, "OK", status)
}
