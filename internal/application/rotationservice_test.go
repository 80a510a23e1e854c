package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/controller"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/controller/controllertest"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/filestore"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/qr"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type rotationFixture struct {
	settings   *mockSettings
	creds      *mockCredentials
	controller *mockController
	store      *mockStore
	prior      model.Credential
}

func newRotationFixture() *rotationFixture {
	prior := model.Credential{
		NetworkName: "Guest",
		Passphrase:  "Prior-Pass-Word1",
		RotatedAt:   time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC),
	}
	return &rotationFixture{
		settings:   &mockSettings{settings: validSettings()},
		creds:      &mockCredentials{creds: model.ControllerCredentials{Username: "svc", Password: "secret"}},
		controller: &mockController{},
		store:      &mockStore{current: &prior},
		prior:      prior,
	}
}

func (f *rotationFixture) service() *RotationService {
	return NewRotationService(f.settings, f.creds, f.controller, f.store, fixedGenerator("Gentle-Winter-Planet7"), discardLogger())
}

func TestRotationService_Success(t *testing.T) {
	f := newRotationFixture()
	start := time.Now().UTC()

	result := f.service().RotateOnce(context.Background())

	require.True(t, result.OK, "cause: %v", result.Cause)
	assert.NoError(t, result.Cause)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "Guest", result.Credential.NetworkName)
	assert.Equal(t, "Gentle-Winter-Planet7", result.Credential.Passphrase)
	assert.False(t, result.Credential.RotatedAt.Before(start))
	assert.Equal(t, time.UTC, result.Credential.RotatedAt.Location())
	assert.False(t, result.FinishedAt.Before(result.StartedAt))

	require.Len(t, f.controller.updated, 1)
	sm := f.controller.updated[0]["wirelessProfile"].(map[string]any)["securityMode"].(map[string]any)
	assert.Equal(t, "Gentle-Winter-Planet7", sm["pskPassphrase"])

	assert.Equal(t, 1, f.controller.opened)
	assert.Equal(t, 1, f.controller.closed)
	assert.Equal(t, "Gentle-Winter-Planet7", f.store.current.Passphrase)
}

func TestRotationService_MatchByTemplateNameUsesProfileSSID(t *testing.T) {
	f := newRotationFixture()
	f.settings.settings.NetworkName = "Guest-Template"

	result := f.service().RotateOnce(context.Background())

	require.True(t, result.OK, "cause: %v", result.Cause)
	assert.Equal(t, "Guest", result.Credential.NetworkName)
}

func TestRotationService_NetworkNameFallsBackToSettings(t *testing.T) {
	f := newRotationFixture()
	f.settings.settings.NetworkName = "Guest-Template"
	f.settings.settings.NameFields = []string{"templateName"}
	f.controller.listFn = func(context.Context, int64, int64) ([]model.Profile, error) {
		p := guestProfile("Guest", "old")
		delete(p, "ssid")
		return []model.Profile{p}, nil
	}

	result := f.service().RotateOnce(context.Background())

	require.True(t, result.OK, "cause: %v", result.Cause)
	assert.Equal(t, "Guest-Template", result.Credential.NetworkName)
}

func TestRotationService_Failures(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(f *rotationFixture)
		wantErr      error
		wantNoRemote bool // no controller call at all
		wantOpened   int
	}{
		{
			name:         "settings unreadable",
			setup:        func(f *rotationFixture) { f.settings.err = errBoom },
			wantErr:      model.ErrConfiguration,
			wantNoRemote: true,
		},
		{
			name:         "credentials provider fails",
			setup:        func(f *rotationFixture) { f.creds.err = errBoom },
			wantErr:      model.ErrCredentialsUnavailable,
			wantNoRemote: true,
		},
		{
			name:         "credentials missing password",
			setup:        func(f *rotationFixture) { f.creds.creds.Password = "" },
			wantErr:      model.ErrCredentialsUnavailable,
			wantNoRemote: true,
		},
		{
			name: "login rejected",
			setup: func(f *rotationFixture) {
				f.controller.loginFn = func(context.Context, model.ControllerEndpoint, model.ControllerCredentials) (driven.Session, error) {
					return nil, errBoom
				}
			},
			wantErr:    model.ErrAuthenticationFailed,
			wantOpened: 0,
		},
		{
			name: "profile listing fails",
			setup: func(f *rotationFixture) {
				f.controller.listFn = func(context.Context, int64, int64) ([]model.Profile, error) {
					return nil, errBoom
				}
			},
			wantErr:    model.ErrProfileListFailed,
			wantOpened: 1,
		},
		{
			name: "profile not found",
			setup: func(f *rotationFixture) {
				f.controller.listFn = func(context.Context, int64, int64) ([]model.Profile, error) {
					return []model.Profile{guestProfile("Staff", "x")}, nil
				}
			},
			wantErr:    model.ErrProfileNotFound,
			wantOpened: 1,
		},
		{
			name: "profile without passphrase field",
			setup: func(f *rotationFixture) {
				f.controller.listFn = func(context.Context, int64, int64) ([]model.Profile, error) {
					return []model.Profile{{"ssid": "Guest", "wirelessProfile": map[string]any{}}}, nil
				}
			},
			wantErr:    model.ErrMalformedProfile,
			wantOpened: 1,
		},
		{
			name: "update rejected",
			setup: func(f *rotationFixture) {
				f.controller.updateFn = func(context.Context, model.Profile) error { return errBoom }
			},
			wantErr:    model.ErrRemoteWriteFailed,
			wantOpened: 1,
		},
		{
			name:       "persistence fails",
			setup:      func(f *rotationFixture) { f.store.saveErr = errBoom },
			wantErr:    model.ErrPersistenceFailed,
			wantOpened: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRotationFixture()
			tt.setup(f)

			result := f.service().RotateOnce(context.Background())

			assert.False(t, result.OK)
			assert.ErrorIs(t, result.Cause, tt.wantErr)
			assert.Equal(t, model.Credential{}, result.Credential)

			// The previously published credential is untouched.
			require.NotNil(t, f.store.current)
			assert.Equal(t, f.prior, *f.store.current)

			if tt.wantNoRemote {
				assert.Equal(t, 0, f.controller.calls, "no controller call expected")
			}
			assert.Equal(t, tt.wantOpened, f.controller.opened)
			assert.Equal(t, f.controller.opened, f.controller.closed, "every opened session must be closed")
		})
	}
}

func TestRotationService_NotFoundMessageNamesScope(t *testing.T) {
	f := newRotationFixture()
	f.settings.settings.NetworkName = "Missing"

	result := f.service().RotateOnce(context.Background())

	require.ErrorIs(t, result.Cause, model.ErrProfileNotFound)
	assert.Contains(t, result.Cause.Error(), `"Missing"`)
	assert.Contains(t, result.Cause.Error(), "location_id=7")
	assert.Contains(t, result.Cause.Error(), "candidates=1")
}

func TestRotationService_SessionClosedDespiteCanceledContext(t *testing.T) {
	f := newRotationFixture()
	ctx, cancel := context.WithCancel(context.Background())

	var closeCtxErr error
	f.controller.updateFn = func(context.Context, model.Profile) error {
		cancel()
		return context.Canceled
	}
	f.controller.closeFn = func(ctx context.Context) { closeCtxErr = ctx.Err() }

	result := f.service().RotateOnce(ctx)

	assert.ErrorIs(t, result.Cause, model.ErrRemoteWriteFailed)
	assert.Equal(t, 1, f.controller.closed)
	assert.NoError(t, closeCtxErr, "close must not inherit cancellation")
}

func TestClassify(t *testing.T) {
	already := fmt.Errorf("%w: bad password", model.ErrAuthenticationFailed)
	assert.Same(t, already, classify(model.ErrAuthenticationFailed, already))

	wrapped := classify(model.ErrProfileListFailed, errBoom)
	assert.ErrorIs(t, wrapped, model.ErrProfileListFailed)
	assert.ErrorIs(t, wrapped, errBoom)
	assert.False(t, errors.Is(wrapped, model.ErrAuthenticationFailed))
}

// TestRotationService_AgainstFakeController exercises the HTTP client and
// file store together against an in-memory controller.
func TestRotationService_AgainstFakeController(t *testing.T) {
	srv := controllertest.New(t, "svc", "secret")
	srv.AddProfile(7, 0, controllertest.GuestProfile("Guest", "old-passphrase"))
	srv.AddProfile(7, 0, controllertest.GuestProfile("Staff", "staff-passphrase"))

	store, err := filestore.New(t.TempDir(), qr.NewRenderer(256))
	require.NoError(t, err)

	settings := validSettings()
	settings.BaseURL = srv.URL

	svc := NewRotationService(
		&mockSettings{settings: settings},
		&mockCredentials{creds: model.ControllerCredentials{Username: "svc", Password: "secret"}},
		controller.NewClient("pskrotator-test", discardLogger()),
		store,
		NewPassphraseGenerator(),
		discardLogger(),
	)
	ctx := context.Background()

	first := svc.RotateOnce(ctx)
	require.True(t, first.OK, "cause: %v", first.Cause)
	assert.Regexp(t, passphraseShape, first.Credential.Passphrase)
	assert.Equal(t, first.Credential.Passphrase, srv.Passphrase(7, 0, "Guest"))
	assert.Equal(t, "staff-passphrase", srv.Passphrase(7, 0, "Staff"))

	current, err := store.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, first.Credential.Passphrase, current.Passphrase)

	artifact, err := store.OpenArtifact(ctx, current.JoinPayloadRef)
	require.NoError(t, err)
	require.NoError(t, artifact.Close())

	second := svc.RotateOnce(ctx)
	require.True(t, second.OK, "cause: %v", second.Cause)
	assert.NotEqual(t, first.Credential.Passphrase, second.Credential.Passphrase)

	assert.Equal(t, 2, srv.Logins())
	assert.Equal(t, 2, srv.Closes())
	assert.Equal(t, 0, srv.OpenSessions())

	// A rejected update leaves the published credential alone and still
	// releases the session.
	srv.FailRoute(controllertest.RouteUpdate, http.StatusInternalServerError)
	third := svc.RotateOnce(ctx)
	assert.ErrorIs(t, third.Cause, model.ErrRemoteWriteFailed)

	current, err = store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Credential.Passphrase, current.Passphrase)
	assert.Equal(t, 0, srv.OpenSessions())
}
