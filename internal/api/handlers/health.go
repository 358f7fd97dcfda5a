package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/postpilot-hq/postpilot/internal/api/dto"
	pkgredis "github.com/postpilot-hq/postpilot/internal/pkg/redis"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db        *gorm.DB
	redis     *pkgredis.Client // nil when Redis is disabled
	startedAt time.Time
}

func NewHealthHandler(db *gorm.DB, redis *pkgredis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, startedAt: time.Now()}
}

type healthStatus struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := healthStatus{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Checks:        map[string]string{},
	}

	if err := h.pingDB(ctx); err != nil {
		status.Status = "unhealthy"
		status.Checks["database"] = err.Error()
	} else {
		status.Checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			status.Status = "degraded"
			status.Checks["redis"] = err.Error()
		} else {
			status.Checks["redis"] = "ok"
		}
	}

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	dto.JSON(w, code, status)
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	dto.OK(w, map[string]string{"status": "alive"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.pingDB(ctx); err != nil {
		dto.ServiceUnavailable(w, "database unavailable")
		return
	}
	dto.OK(w, map[string]string{"status": "ready"})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
