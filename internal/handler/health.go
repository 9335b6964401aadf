package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness and, on /readyz, whether the database
// and Redis answer.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Health is the liveness probe used by load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready pings every configured backend.  A nil Redis client is reported
// as disabled rather than failing the probe.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	out := echo.Map{"db": "ok", "redis": "disabled"}
	status := http.StatusOK
	if h.DB == nil || h.DB.PingContext(ctx) != nil {
		out["db"] = "down"
		status = http.StatusServiceUnavailable
	}
	if h.Redis != nil {
		out["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			out["redis"] = "down"
			status = http.StatusServiceUnavailable
		}
	}
	return c.JSON(status, out)
}
