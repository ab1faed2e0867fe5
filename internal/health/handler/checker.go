package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"interview-analyzer/internal/server/httputil"
)

// Pinger is used for readiness checks (e.g. *sql.DB). PingContext is called by Check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatusSetter receives serving-status updates. *health.Server from grpc implements it.
type StatusSetter interface {
	SetServingStatus(service string, servingStatus healthpb.HealthCheckResponse_ServingStatus)
}

const defaultPingTimeout = 2 * time.Second

// Checker reports readiness for Kubernetes, load balancers and CI over HTTP and the standard
// gRPC health service.
type Checker struct {
	pinger  Pinger
	timeout time.Duration
	logger  logr.Logger
}

// NewChecker returns a Checker. pinger may be nil (in-memory storage); the service is then always serving.
func NewChecker(pinger Pinger, logger logr.Logger) *Checker {
	return &Checker{pinger: pinger, timeout: defaultPingTimeout, logger: logger.WithName("health")}
}

// Check returns nil when the storage backend answers within the ping timeout.
func (c *Checker) Check(ctx context.Context) error {
	if c.pinger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.pinger.PingContext(ctx)
}

// ServeHTTP answers 200 when Check succeeds and 503 otherwise.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := c.Check(r.Context()); err != nil {
		c.logger.Error(err, "readiness check failed")
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Update runs Check once and publishes the result for the overall server ("").
func (c *Checker) Update(ctx context.Context, s StatusSetter) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if err := c.Check(ctx); err != nil {
		c.logger.Error(err, "readiness check failed")
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.SetServingStatus("", st)
	return st
}

// Watch calls Update every interval until ctx is canceled.
func (c *Checker) Watch(ctx context.Context, s StatusSetter, interval time.Duration) {
	c.Update(ctx, s)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Update(ctx, s)
		}
	}
}
