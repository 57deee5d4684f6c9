package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Check tests a Record Store backend. A nil error means healthy.
type Check func(ctx context.Context) error

// PoolStats is the pool section of the Postgres health payload.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

func GetPoolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
	}
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status    string     `json:"status"`
	Store     string     `json:"store"`
	LatencyMS int64      `json:"latency_ms"`
	Error     string     `json:"error,omitempty"`
	Pool      *PoolStats `json:"pool,omitempty"`
}

// HealthHandler answers 200 when check passes within five seconds and 503
// otherwise. pool may be nil for stores that are not Postgres.
func HealthHandler(store string, check Check, pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		err := check(ctx)
		report := HealthReport{
			Status:    "healthy",
			Store:     store,
			LatencyMS: time.Since(start).Milliseconds(),
		}
		if pool != nil {
			stats := GetPoolStats(pool)
			report.Pool = &stats
		}
		if err != nil {
			report.Status = "unhealthy"
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
