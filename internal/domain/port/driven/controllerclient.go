package driven

import (
	"context"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
)

// Session is an authenticated controller session. It is opaque outside the
// adapter that created it and must be passed back to that adapter.
type Session interface {
	// ID is a client-side correlation identifier used in logs.
	ID() string
}

// ControllerClient defines the driven port for the wireless controller's
// session and SSID profile API. Implementations hold no per-session state;
// everything lives in the Session handle.
type ControllerClient interface {
	// Login opens a session. A non-2xx response is an error and no session
	// is established.
	Login(ctx context.Context, endpoint model.ControllerEndpoint, creds model.ControllerCredentials) (Session, error)

	// ListProfiles returns the SSID profiles scoped to a location and node.
	ListProfiles(ctx context.Context, session Session, locationID, nodeID int64) ([]model.Profile, error)

	// UpdateProfile writes a full profile back to the controller.
	UpdateProfile(ctx context.Context, session Session, profile model.Profile) error

	// CloseSession ends the session on a best-effort basis. It never fails.
	CloseSession(ctx context.Context, session Session)
}
