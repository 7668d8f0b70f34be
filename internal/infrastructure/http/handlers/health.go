package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// HealthHandler serves the GET /health liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Pinger is a named dependency check.
type Pinger struct {
	Name string
	Ping func(ctx context.Context) error
}

// MongoPinger checks the database with a ping command.
func MongoPinger(db *mongo.Database) Pinger {
	return Pinger{Name: "mongodb", Ping: func(ctx context.Context) error {
		return db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
	}}
}

// RedisPinger checks the Redis connection.
func RedisPinger(rdb *redis.Client) Pinger {
	return Pinger{Name: "redis", Ping: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}}
}

// HealthDependenciesHandler serves the GET /health/ready readiness probe.
// Every configured dependency is pinged concurrently. With no dependencies
// (in-memory storage) the service is always ready.
type HealthDependenciesHandler struct {
	deps    []Pinger
	timeout time.Duration
}

func NewHealthDependenciesHandler(deps ...Pinger) *HealthDependenciesHandler {
	return &HealthDependenciesHandler{deps: deps, timeout: 3 * time.Second}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

func (h *HealthDependenciesHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	var (
		mu   sync.Mutex
		deps = make(map[string]dependencyStatus, len(h.deps))
	)

	// each probe records its own result; the group only waits
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range h.deps {
		d := d
		g.Go(func() error {
			st := dependencyStatus{Status: "ok"}
			if err := d.Ping(gctx); err != nil {
				st = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			}
			mu.Lock()
			deps[d.Name] = st
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := "ok"
	httpStatus := http.StatusOK
	for _, st := range deps {
		if st.Status != "ok" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
