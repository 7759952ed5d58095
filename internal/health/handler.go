// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var errNoDatabase = errors.New("database not configured")

// Handler reports liveness. It touches no dependency.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Readiness checks the database and, when configured, Redis.
type Readiness struct {
	db      *gorm.DB
	rdb     *redis.Client
	timeout time.Duration
}

// NewReadiness builds the probe. rdb may be nil.
func NewReadiness(db *gorm.DB, rdb *redis.Client) *Readiness {
	return &Readiness{db: db, rdb: rdb, timeout: 2 * time.Second}
}

func (h *Readiness) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	status := http.StatusOK

	if err := pingDB(ctx, h.db); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.rdb != nil {
		checks["redis"] = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errNoDatabase
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
