package httpapi

import (
	"context"
	"net/http"
	"time"
)

const (
	healthProbeKey = "pmscan:healthcheck"
	healthProbeTTL = 20 * time.Second
	healthTimeout  = 3 * time.Second
)

type healthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	Cache    string `json:"cache"`
}

// healthcheck always answers 200 and reports each dependency.
func (a *API) healthcheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	res := healthResponse{Status: "Application running", Postgres: "ok", Cache: "ok"}

	if a.db == nil {
		res.Postgres = "error: not configured"
	} else if err := a.db.PingContext(ctx); err != nil {
		res.Postgres = "error: " + err.Error()
	}

	if !a.cacheHealthy(ctx) {
		res.Cache = "error"
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) cacheHealthy(ctx context.Context) bool {
	if a.redis == nil {
		return false
	}
	if err := a.redis.Set(ctx, healthProbeKey, "ok", healthProbeTTL).Err(); err != nil {
		return false
	}
	v, err := a.redis.Get(ctx, healthProbeKey).Result()
	return err == nil && v == "ok"
}
