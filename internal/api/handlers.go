package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/ignite/playbook-engine/internal/lab"
	"github.com/ignite/playbook-engine/internal/pkg/httputil"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/redis/go-redis/v9"
)

// PlaybookStoreFactory builds a tenant-scoped playbook store.
type PlaybookStoreFactory func(orgID string) *playbook.Store

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	playbookStores PlaybookStoreFactory
	lab            *lab.Service
	db             *sql.DB
	redisClient    *redis.Client
	defaultOrgID   string
	startedAt      time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(playbookStores PlaybookStoreFactory, labSvc *lab.Service, defaultOrgID string) *Handlers {
	return &Handlers{
		playbookStores: playbookStores,
		lab:            labSvc,
		defaultOrgID:   defaultOrgID,
		startedAt:      time.Now(),
	}
}

// SetDB wires the database handle for health reporting.
func (h *Handlers) SetDB(db *sql.DB) { h.db = db }

// SetRedis wires the Redis client for health reporting.
func (h *Handlers) SetRedis(client *redis.Client) { h.redisClient = client }

// orgID resolves the tenant for a request. Identity and tenancy are
// enforced upstream; this only selects the already-authorized org scope.
func (h *Handlers) orgID(r *http.Request) string {
	if org := r.Header.Get("X-Org-ID"); org != "" {
		return org
	}
	return h.defaultOrgID
}

// HealthCheck reports process and dependency health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	}
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
		} else {
			status["database"] = "ok"
		}
	}
	if h.redisClient != nil {
		if err := h.redisClient.Ping(r.Context()).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = "unreachable"
		} else {
			status["redis"] = "ok"
		}
	}
	httputil.OK(w, status)
}
