package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// Rotation steps, used as the "step" log attribute on failure.
const (
	stepSettings    = "resolve_settings"
	stepCredentials = "fetch_credentials"
	stepLogin       = "login"
	stepList        = "list_profiles"
	stepSelect      = "select_profile"
	stepMutate      = "mutate_profile"
	stepUpdate      = "update_profile"
	stepPersist     = "persist_credential"
)

// Generator produces a new passphrase. It must not fail.
type Generator interface {
	Generate() string
}

// RotationService runs one end-to-end passphrase rotation: it logs in to the
// controller, replaces the passphrase of the configured SSID profile, and
// publishes the new credential. Every failure is reported through the
// returned RotationResult; RotateOnce itself never returns an error.
type RotationService struct {
	settings    driven.SettingsSource
	credentials driven.CredentialsProvider
	controller  driven.ControllerClient
	store       driven.CredentialStore
	generator   Generator
	logger      *slog.Logger
}

// NewRotationService creates a RotationService with all required dependencies.
func NewRotationService(
	settings driven.SettingsSource,
	credentials driven.CredentialsProvider,
	controller driven.ControllerClient,
	store driven.CredentialStore,
	generator Generator,
	logger *slog.Logger,
) *RotationService {
	return &RotationService{
		settings:    settings,
		credentials: credentials,
		controller:  controller,
		store:       store,
		generator:   generator,
		logger:      logger,
	}
}

// RotateOnce performs a single rotation attempt. The result is OK only when
// the controller accepted the new passphrase and it was persisted locally.
// A session opened during the attempt is always closed before returning.
func (s *RotationService) RotateOnce(ctx context.Context) model.RotationResult {
	result := model.RotationResult{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := s.logger.With("rotation_id", result.ID)
	logger.Info("starting PSK rotation")

	cred, step, err := s.rotate(ctx, logger)
	result.FinishedAt = time.Now().UTC()
	duration := result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)

	if err != nil {
		result.Cause = err
		logger.Error("PSK rotation failed", "step", step, "error", err, "duration", duration)
		return result
	}

	result.OK = true
	result.Credential = cred
	logger.Info("PSK rotation succeeded",
		"network", cred.NetworkName,
		"rotated_at", cred.RotatedAt.Format(time.RFC3339),
		"duration", duration,
	)
	return result
}

// rotate executes the workflow and reports the step that failed.
func (s *RotationService) rotate(ctx context.Context, logger *slog.Logger) (model.Credential, string, error) {
	settings, err := s.settings.RotationSettings()
	if err != nil {
		return model.Credential{}, stepSettings, classify(model.ErrConfiguration, err)
	}
	logger = logger.With(
		"network", settings.NetworkName,
		"location_id", settings.LocationID,
		"node_id", settings.NodeID,
	)

	creds, err := s.credentials.Fetch(ctx)
	if err != nil {
		return model.Credential{}, stepCredentials, classify(model.ErrCredentialsUnavailable, err)
	}
	if creds.Empty() {
		return model.Credential{}, stepCredentials, fmt.Errorf("%w: username or password is empty", model.ErrCredentialsUnavailable)
	}
	logger.Debug("controller credentials resolved", "username", creds.Username)

	// Generated before any network call so it shows up in the log even when
	// the controller is unreachable.
	passphrase := s.generator.Generate()
	logger.Info("generated new passphrase", "passphrase", passphrase)

	session, err := s.controller.Login(ctx, settings.Endpoint(), creds)
	if err != nil {
		return model.Credential{}, stepLogin, classify(model.ErrAuthenticationFailed, err)
	}
	defer s.controller.CloseSession(context.WithoutCancel(ctx), session)
	logger = logger.With("session_id", session.ID())
	logger.Debug("controller session opened")

	profiles, err := s.controller.ListProfiles(ctx, session, settings.LocationID, settings.NodeID)
	if err != nil {
		return model.Credential{}, stepList, classify(model.ErrProfileListFailed, err)
	}

	profile, ok := model.FindProfile(profiles, settings.NetworkName, settings.NameFields)
	if !ok {
		return model.Credential{}, stepSelect, fmt.Errorf("%w: %q (location_id=%d, node_id=%d, candidates=%d)",
			model.ErrProfileNotFound, settings.NetworkName, settings.LocationID, settings.NodeID, len(profiles))
	}

	if err := profile.SetNested(settings.PassphrasePath, passphrase); err != nil {
		return model.Credential{}, stepMutate, classify(model.ErrMalformedProfile, err)
	}

	if err := s.controller.UpdateProfile(ctx, session, profile); err != nil {
		return model.Credential{}, stepUpdate, classify(model.ErrRemoteWriteFailed, err)
	}
	logger.Info("controller profile updated")

	networkName := profile.StringField("ssid")
	if networkName == "" {
		networkName = settings.NetworkName
	}

	cred, err := s.store.Save(ctx, networkName, passphrase, time.Now().UTC())
	if err != nil {
		return model.Credential{}, stepPersist, classify(model.ErrPersistenceFailed, err)
	}

	return cred, "", nil
}

// classify wraps err with the failure category unless it already carries it.
func classify(category, err error) error {
	if errors.Is(err, category) {
		return err
	}
	return fmt.Errorf("%w: %w", category, err)
}
