package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CredentialResponse is the JSON representation of the published credential.
// Field names match the on-disk record.
type CredentialResponse struct {
	SSID           string `json:"ssid"`
	PSK            string `json:"psk"`
	LastRotatedUTC string `json:"last_rotated_utc"`
	QRImage        string `json:"qr_image"`
	QRURL          string `json:"qr_url"`
	JoinPayload    string `json:"join_payload"`
}

// RotationResponse is the JSON representation of one rotation attempt. The
// passphrase is never included.
type RotationResponse struct {
	ID         string `json:"id"`
	OK         bool   `json:"ok"`
	Network    string `json:"network,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Time         string            `json:"time"`
	Scheduler    string            `json:"scheduler,omitempty"`
	NextRun      string            `json:"next_run,omitempty"`
	LastRotation *RotationResponse `json:"last_rotation,omitempty"`
}

// toCredentialResponse converts a domain Credential to its JSON representation.
func toCredentialResponse(c model.Credential) CredentialResponse {
	resp := CredentialResponse{
		SSID:           c.NetworkName,
		PSK:            c.Passphrase,
		LastRotatedUTC: c.RotatedAt.UTC().Format(time.RFC3339),
		QRImage:        c.JoinPayloadRef,
		JoinPayload:    c.JoinPayload(),
	}
	if c.JoinPayloadRef != "" {
		resp.QRURL = "/qr/" + c.JoinPayloadRef
	}
	return resp
}

// toRotationResponse converts a RotationResult to its JSON representation.
func toRotationResponse(r model.RotationResult) RotationResponse {
	resp := RotationResponse{
		ID:         r.ID,
		OK:         r.OK,
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: r.FinishedAt.UTC().Format(time.RFC3339),
	}
	if r.OK {
		resp.Network = r.Credential.NetworkName
	}
	if r.Cause != nil {
		resp.Error = r.Cause.Error()
	}
	return resp
}
