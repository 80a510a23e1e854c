// Package web implements the HTML status page driving adapter using templ
// components.
package web

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// Rotations is the scheduler surface the status page shows and triggers.
type Rotations interface {
	RotateNow(ctx context.Context) (model.RotationResult, error)
	NextRun() time.Time
}

// Handler is the web driving adapter that serves the status page.
type Handler struct {
	store      driven.CredentialStore
	rotations  Rotations
	noticeHTML string
	adminToken string
	logger     *slog.Logger
}

// NewHandler creates a Handler. notice is markdown shown under the
// credential; rotations may be nil. The manual rotation form appears only
// when both rotations and adminToken are set.
func NewHandler(store driven.CredentialStore, rotations Rotations, notice, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		store:      store,
		rotations:  rotations,
		noticeHTML: RenderMarkdown(notice),
		adminToken: adminToken,
		logger:     logger,
	}
}

func (h *Handler) rotateEnabled() bool {
	return h.rotations != nil && h.adminToken != ""
}

// Status renders the status page with the full HTML layout.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	cred, err := h.store.Current(r.Context())
	if err != nil {
		h.logger.Error("failed to read current credential", "error", err)
		cred = nil
	}

	var nextRun time.Time
	if h.rotations != nil {
		nextRun = h.rotations.NextRun()
	}

	view := toStatusViewModel(cred, nextRun, h.noticeHTML)
	switch r.URL.Query().Get("rotated") {
	case "ok":
		view.Flash, view.FlashOK = "Passphrase rotated.", true
	case "failed":
		view.Flash = "Rotation failed. See the service log for details."
	}
	if h.rotateEnabled() {
		view.RotateEnabled = true
		view.CSRFToken = csrfToken(w, r)
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	layout := Layout("WiFi Access", view.RefreshSeconds, StatusPage(view))
	if err := layout.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render status page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// Rotate handles the manual rotation form and redirects back to the page.
func (h *Handler) Rotate(w http.ResponseWriter, r *http.Request) {
	if !h.rotateEnabled() {
		http.NotFound(w, r)
		return
	}
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}
	token := r.PostFormValue("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		h.logger.Warn("manual rotation rejected: bad admin token", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	outcome := "ok"
	result, err := h.rotations.RotateNow(r.Context())
	if err != nil || !result.OK {
		outcome = "failed"
	}
	http.Redirect(w, r, "/?rotated="+outcome, http.StatusSeeOther)
}
