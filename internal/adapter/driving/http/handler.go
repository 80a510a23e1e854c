// Package httphandler serves the JSON status API, the join-payload artifacts
// and the guarded manual rotation endpoint.
package httphandler

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/application"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// Rotations is the scheduler surface the API reports on and triggers.
type Rotations interface {
	RotateNow(ctx context.Context) (model.RotationResult, error)
	State() application.SchedulerState
	NextRun() time.Time
	LastResult() *model.RotationResult
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	store      driven.CredentialStore
	rotations  Rotations
	adminToken string
	logger     *slog.Logger
}

// NewHandler creates a Handler. rotations may be nil, in which case health
// omits scheduler details and manual rotation is unavailable. An empty
// adminToken disables POST /api/v1/rotations.
func NewHandler(store driven.CredentialStore, rotations Rotations, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		store:      store,
		rotations:  rotations,
		adminToken: adminToken,
		logger:     logger,
	}
}

// RegisterRoutes registers the API and artifact routes on mux.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/credential", h.GetCredential)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("POST /api/v1/rotations", h.Rotate)
	mux.HandleFunc("GET /qr/{name}", h.GetArtifact)
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped by Wrap.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	return Wrap(mux, logger)
}

// Wrap applies the header, logging and recovery middleware to next.
func Wrap(next http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, next)
	wrapped = loggingMiddleware(logger, wrapped)
	return headersMiddleware(wrapped)
}

// GetCredential returns the current credential record, or 503 before the
// first successful rotation.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	cred, err := h.store.Current(r.Context())
	if err != nil {
		h.logger.Error("failed to read current credential", "error", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	if cred == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, toCredentialResponse(*cred))
}

// GetArtifact serves a join-payload artifact by name.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	artifact, err := h.store.OpenArtifact(r.Context(), name)
	if errors.Is(err, driven.ErrArtifactNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("failed to open artifact", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer artifact.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, artifact); err != nil {
		h.logger.Debug("artifact write interrupted", "name", name, "error", err)
	}
}

// Health reports liveness plus scheduler state when available.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if h.rotations != nil {
		resp.Scheduler = h.rotations.State().String()
		if next := h.rotations.NextRun(); !next.IsZero() {
			resp.NextRun = next.UTC().Format(time.RFC3339)
		}
		if last := h.rotations.LastResult(); last != nil {
			r := toRotationResponse(*last)
			resp.LastRotation = &r
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Rotate runs a rotation immediately and returns its outcome. The endpoint
// does not exist unless an admin token is configured.
func (h *Handler) Rotate(w http.ResponseWriter, r *http.Request) {
	if h.adminToken == "" {
		http.NotFound(w, r)
		return
	}
	if !validBearer(r, h.adminToken) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="pskrotator"`)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.rotations == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}

	result, err := h.rotations.RotateNow(r.Context())
	if errors.Is(err, application.ErrSchedulerStopped) {
		writeError(w, http.StatusServiceUnavailable, "scheduler stopped")
		return
	}
	if err != nil {
		h.logger.Warn("manual rotation abandoned", "error", err)
		writeError(w, http.StatusServiceUnavailable, "rotation not completed")
		return
	}

	status := http.StatusOK
	if !result.OK {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, toRotationResponse(result))
}

// validBearer compares the Authorization bearer token in constant time.
func validBearer(r *http.Request, want string) bool {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return false
	}
	got := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
