package httpapi

import (
	"context"
	"net/http"
	"time"

	"permatrix.org/api/spec"
	"permatrix.org/internal/auth"
	"permatrix.org/internal/obs"
	"permatrix.org/internal/perm"
	"permatrix.org/internal/stream"
)

// ReadyProbe — простая проверка готовности (ping БД).
type ReadyProbe struct {
	Pinger interface {
		Ping(ctx context.Context) error
	}
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Pinger == nil {
		return nil
	}
	return rp.Pinger.Ping(ctx)
}

// API — HTTP слой.
type API struct {
	mux        *http.ServeMux
	perms      *perm.Service
	creds      auth.CredentialStore
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string
}

func New(perms *perm.Service, creds auth.CredentialStore, st *stream.Stream, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		perms:      perms,
		creds:      creds,
		stream:     st,
		readyProbe: rp,
		version:    version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// auth
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// permission matrix
	a.mux.HandleFunc("/v1/permissions/users", a.handlePermissionUsers)
	a.mux.HandleFunc("/v1/permissions/grant", a.handlePermissionGrant)
	a.mux.HandleFunc("/v1/permissions/revoke", a.handlePermissionRevoke)
	a.mux.HandleFunc("/v1/permissions/kinds", a.handlePermissionKinds)
	a.mux.HandleFunc("/v1/permissions/stream", a.Stream)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler возвращает полный http.Handler сервера со всеми middleware.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, 50, 25)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "permatrix-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "permatrix-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}
