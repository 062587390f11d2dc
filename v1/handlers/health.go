package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/concierge-tc/portal-backend/shared/utils"
	"gorm.io/gorm"
)

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

type dependencyHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Dependencies map[string]dependencyHealth `json:"dependencies"`
}

// HealthHandler pings the database and every optional check.
// Any failure turns the response into 503.
func HealthHandler(db *gorm.DB, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := healthStatus{
			Status:       "healthy",
			Service:      "portal-backend",
			Dependencies: make(map[string]dependencyHealth, len(checks)+1),
		}
		record := func(name string, err error) {
			if err != nil {
				status.Dependencies[name] = dependencyHealth{Status: "unhealthy", Error: err.Error()}
				status.Status = "unhealthy"
				return
			}
			status.Dependencies[name] = dependencyHealth{Status: "healthy"}
		}

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		record("database", err)
		for name, check := range checks {
			record(name, check(ctx))
		}

		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		utils.RespondWithJSON(w, code, status)
	}
}
