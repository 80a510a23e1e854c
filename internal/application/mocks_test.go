package application

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// --- Mock SettingsSource ---

type mockSettings struct {
	settings model.RotationSettings
	err      error
}

func (m *mockSettings) RotationSettings() (model.RotationSettings, error) {
	return m.settings, m.err
}

func validSettings() model.RotationSettings {
	return model.RotationSettings{
		BaseURL:        "https://controller.example",
		NetworkName:    "Guest",
		LocationID:     7,
		NodeID:         0,
		VerifyTLS:      true,
		NameFields:     model.DefaultNameFields,
		PassphrasePath: model.DefaultPassphrasePath,
	}
}

// --- Mock CredentialsProvider ---

type mockCredentials struct {
	creds model.ControllerCredentials
	err   error
	calls int
}

func (m *mockCredentials) Fetch(_ context.Context) (model.ControllerCredentials, error) {
	m.calls++
	return m.creds, m.err
}

// --- Mock ControllerClient ---

type mockSession string

func (s mockSession) ID() string { return string(s) }

// mockController counts session opens and closes. Nil funcs fall back to a
// controller holding a single Guest profile.
type mockController struct {
	mu sync.Mutex

	loginFn  func(ctx context.Context, endpoint model.ControllerEndpoint, creds model.ControllerCredentials) (driven.Session, error)
	listFn   func(ctx context.Context, locationID, nodeID int64) ([]model.Profile, error)
	updateFn func(ctx context.Context, p model.Profile) error

	calls   int
	opened  int
	closed  int
	closeFn func(ctx context.Context)
	updated []model.Profile
}

func (m *mockController) Login(ctx context.Context, endpoint model.ControllerEndpoint, creds model.ControllerCredentials) (driven.Session, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.loginFn != nil {
		s, err := m.loginFn(ctx, endpoint, creds)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.opened++
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
	return mockSession("session-1"), nil
}

func (m *mockController) ListProfiles(ctx context.Context, _ driven.Session, locationID, nodeID int64) ([]model.Profile, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.listFn != nil {
		return m.listFn(ctx, locationID, nodeID)
	}
	return []model.Profile{guestProfile("Guest", "old-passphrase")}, nil
}

func (m *mockController) UpdateProfile(ctx context.Context, _ driven.Session, p model.Profile) error {
	m.mu.Lock()
	m.calls++
	m.updated = append(m.updated, p)
	m.mu.Unlock()
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return nil
}

func (m *mockController) CloseSession(ctx context.Context, _ driven.Session) {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	if m.closeFn != nil {
		m.closeFn(ctx)
	}
}

func guestProfile(ssid, passphrase string) model.Profile {
	return model.Profile{
		"templateName": ssid + "-Template",
		"ssid":         ssid,
		"wirelessProfile": map[string]any{
			"securityMode": map[string]any{
				"pskPassphrase": passphrase,
			},
		},
	}
}

// --- Mock CredentialStore ---

type mockStore struct {
	current *model.Credential
	saveErr error
	saves   int
}

func (m *mockStore) Save(_ context.Context, networkName, passphrase string, rotatedAt time.Time) (model.Credential, error) {
	m.saves++
	if m.saveErr != nil {
		return model.Credential{}, m.saveErr
	}
	cred := model.Credential{
		NetworkName:    networkName,
		Passphrase:     passphrase,
		RotatedAt:      rotatedAt,
		JoinPayloadRef: "wifi_qr_" + networkName + ".png",
	}
	m.current = &cred
	return cred, nil
}

func (m *mockStore) Current(_ context.Context) (*model.Credential, error) {
	return m.current, nil
}

func (m *mockStore) OpenArtifact(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, driven.ErrArtifactNotFound
}

// --- Fixed Generator ---

type fixedGenerator string

func (g fixedGenerator) Generate() string { return string(g) }

var errBoom = errors.New("boom")
