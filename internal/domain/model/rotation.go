package model

import "time"

// RotationResult is the outcome of one rotation attempt. Credential is only
// meaningful when OK is true; Cause is set when OK is false.
type RotationResult struct {
	ID         string
	OK         bool
	Credential Credential
	Cause      error
	StartedAt  time.Time
	FinishedAt time.Time
}

// RotationSettings is the per-attempt controller configuration, resolved
// fresh for every rotation.
type RotationSettings struct {
	BaseURL             string
	NetworkName         string
	LocationID          int64
	NodeID              int64
	VerifyTLS           bool
	SessionVersion      string
	DeviceConfigVersion string
	NameFields          []string
	PassphrasePath      []string
}

// Endpoint returns the connection parameters needed to open a session.
func (s RotationSettings) Endpoint() ControllerEndpoint {
	return ControllerEndpoint{
		BaseURL:             s.BaseURL,
		VerifyTLS:           s.VerifyTLS,
		SessionVersion:      s.SessionVersion,
		DeviceConfigVersion: s.DeviceConfigVersion,
	}
}

// ControllerEndpoint identifies a controller and how to talk to it.
type ControllerEndpoint struct {
	BaseURL             string
	VerifyTLS           bool
	SessionVersion      string
	DeviceConfigVersion string
}
