package server

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	identityhandler "interview-analyzer/internal/identity/handler"
	"interview-analyzer/internal/server/httputil"
	"interview-analyzer/internal/server/interceptors"
	transcripthandler "interview-analyzer/internal/transcript/handler"
)

// AuthGateway is the auth service as used by the HTTP transport: the auth routes plus
// Authenticate for the middleware. *identityservice.AuthService implements it.
type AuthGateway interface {
	identityhandler.AuthAPI
	interceptors.Authenticator
}

// HTTPDeps holds the dependencies of the HTTP API.
type HTTPDeps struct {
	Auth        AuthGateway
	Transcripts transcripthandler.TranscriptAPI
	// Health serves GET /healthz. If nil, /healthz always answers 200.
	Health http.Handler
	// Registry receives the HTTP collectors and is served at /metrics. If nil, a new registry is used.
	Registry *prometheus.Registry
	Logger   logr.Logger
}

// NewHTTPHandler returns the HTTP API:
//
//	/api/auth/login, /api/auth/refresh, /api/auth/logout       public
//	/api/auth/verify, /api/auth/logout-all, /api/auth/sessions  Bearer
//	/api/transcripts[/{id}[/integrity]]                          Bearer
//	/healthz, /metrics
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	reg := deps.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	metrics := newHTTPMetrics(reg)

	r := mux.NewRouter()
	r.Use(metrics.middleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, httputil.CodeNotFound, "not found")
	})

	health := deps.Health
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}
	r.Handle("/healthz", health).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler(reg)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	auth := identityhandler.NewServer(deps.Auth, deps.Logger)
	auth.RegisterPublic(api)

	protected := api.NewRoute().Subrouter()
	protected.Use(interceptors.AuthHTTP(deps.Auth, deps.Logger))
	auth.RegisterProtected(protected)
	if deps.Transcripts != nil {
		transcripthandler.NewServer(deps.Transcripts, deps.Logger).Register(protected)
	}

	return interceptors.ClientIPHTTP(withRequestLogging(r, deps.Logger.WithName("http")))
}

// withRequestLogging logs one record per request. Probe and scrape traffic is logged at V(1).
func withRequestLogging(next http.Handler, logger logr.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		l := logger
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			l = logger.V(1)
		}
		l.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", interceptors.ClientIP(r.Context()),
			"user_agent", r.UserAgent(),
		)
	})
}

// statusWriter captures the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(p)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
