// Package controller implements the ControllerClient port over the wireless
// controller's REST API.
package controller

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ControllerClient = (*Client)(nil)

const (
	sessionPath  = "/wifi/api/session"
	logoutPath   = "/wifi/api/logout"
	profilesPath = "/wifi/api/deviceconfiguration/ssidprofiles"

	// Session lifetime requested from the controller, in seconds.
	sessionLifetime = 3600

	defaultLoginTimeout   = 15 * time.Second
	defaultRequestTimeout = 20 * time.Second
	defaultCloseTimeout   = 10 * time.Second

	defaultSessionVersion      = "latest"
	defaultDeviceConfigVersion = "17"

	maxErrorBody = 512
)

// ErrInvalidSession is returned when a Session handle was not created by
// this adapter.
var ErrInvalidSession = errors.New("session was not created by this controller client")

// StatusError reports a non-2xx response from the controller.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client implements the driven.ControllerClient port. It keeps no
// per-session state: each Login builds a dedicated http.Client with its own
// cookie jar, carried in the returned Session.
type Client struct {
	clientIdentifier string
	baseTransport    *http.Transport
	loginTimeout     time.Duration
	requestTimeout   time.Duration
	closeTimeout     time.Duration
	logger           *slog.Logger
}

// NewClient creates a controller client. clientIdentifier is reported to the
// controller on login.
func NewClient(clientIdentifier string, logger *slog.Logger) *Client {
	return NewClientWithTransport(nil, clientIdentifier, logger)
}

// NewClientWithTransport creates a Client whose sessions clone base instead
// of http.DefaultTransport. Intended for tests that need custom root CAs.
func NewClientWithTransport(base *http.Transport, clientIdentifier string, logger *slog.Logger) *Client {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	return &Client{
		clientIdentifier: clientIdentifier,
		baseTransport:    base,
		loginTimeout:     defaultLoginTimeout,
		requestTimeout:   defaultRequestTimeout,
		closeTimeout:     defaultCloseTimeout,
		logger:           logger,
	}
}

// session is the adapter's driven.Session implementation.
type session struct {
	id                  string
	baseURL             string
	sessionVersion      string
	deviceConfigVersion string
	http                *http.Client
}

func (s *session) ID() string { return s.id }

// loginRequest is the body of POST /wifi/api/session.
type loginRequest struct {
	Type             string `json:"type"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	Timeout          int    `json:"timeout"`
	ClientIdentifier string `json:"clientIdentifier"`
}

// Login opens a controller session using username/password credentials.
func (c *Client) Login(ctx context.Context, endpoint model.ControllerEndpoint, creds model.ControllerCredentials) (driven.Session, error) {
	baseURL, err := normalizeBaseURL(endpoint.BaseURL)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	if !endpoint.VerifyTLS {
		c.logger.Warn("TLS certificate verification is disabled for the controller connection", "base_url", baseURL)
	}

	s := &session{
		id:                  uuid.NewString(),
		baseURL:             baseURL,
		sessionVersion:      orDefault(endpoint.SessionVersion, defaultSessionVersion),
		deviceConfigVersion: orDefault(endpoint.DeviceConfigVersion, defaultDeviceConfigVersion),
		http: &http.Client{
			Jar:       jar,
			Transport: c.transport(endpoint.VerifyTLS),
		},
	}

	body := loginRequest{
		Type:             "usernamepasswordcredentials",
		Username:         creds.Username,
		Password:         creds.Password,
		Timeout:          sessionLifetime,
		ClientIdentifier: c.clientIdentifier,
	}

	if err := c.do(ctx, s.http, c.loginTimeout, "login", http.MethodPost, baseURL+sessionPath, s.sessionVersion, body, nil); err != nil {
		s.http.CloseIdleConnections()
		return nil, err
	}

	return s, nil
}

// ListProfiles fetches the SSID profiles for the given location and node.
func (c *Client) ListProfiles(ctx context.Context, handle driven.Session, locationID, nodeID int64) ([]model.Profile, error) {
	s, err := asSession(handle)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("locationid", strconv.FormatInt(locationID, 10))
	query.Set("nodeid", strconv.FormatInt(nodeID, 10))
	target := s.baseURL + profilesPath + "?" + query.Encode()

	var profiles []model.Profile
	if err := c.do(ctx, s.http, c.requestTimeout, "list profiles", http.MethodGet, target, s.deviceConfigVersion, nil, &profiles); err != nil {
		return nil, err
	}

	if profiles == nil {
		profiles = []model.Profile{}
	}
	return profiles, nil
}

// UpdateProfile writes the whole profile back with PUT.
func (c *Client) UpdateProfile(ctx context.Context, handle driven.Session, profile model.Profile) error {
	s, err := asSession(handle)
	if err != nil {
		return err
	}

	return c.do(ctx, s.http, c.requestTimeout, "update profile", http.MethodPut, s.baseURL+profilesPath, s.deviceConfigVersion, profile, nil)
}

// CloseSession deletes the session, falling back to POST /logout when the
// delete fails. Errors are logged at debug level and otherwise ignored.
func (c *Client) CloseSession(ctx context.Context, handle driven.Session) {
	s, err := asSession(handle)
	if err != nil {
		c.logger.Debug("skipping session close", "error", err)
		return
	}
	defer s.http.CloseIdleConnections()

	err = c.do(ctx, s.http, c.closeTimeout, "delete session", http.MethodDelete, s.baseURL+sessionPath, s.sessionVersion, nil, nil)
	if err == nil {
		c.logger.Debug("controller session closed", "session_id", s.id)
		return
	}
	c.logger.Debug("session delete failed, trying logout", "session_id", s.id, "error", err)

	err = c.do(ctx, s.http, c.closeTimeout, "logout", http.MethodPost, s.baseURL+logoutPath, s.sessionVersion, nil, nil)
	if err != nil {
		c.logger.Debug("controller logout failed", "session_id", s.id, "error", err)
		return
	}
	c.logger.Debug("controller session closed via logout", "session_id", s.id)
}

// do sends one JSON request bounded by timeout. A non-2xx status yields a
// *StatusError; when out is non-nil the response body is decoded into it
// with numbers preserved as json.Number.
func (c *Client) do(ctx context.Context, client *http.Client, timeout time.Duration, op, method, target, version string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Version", version)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// transport clones the base transport with the requested TLS verification.
func (c *Client) transport(verifyTLS bool) *http.Transport {
	t := c.baseTransport.Clone()
	if t.TLSClientConfig == nil {
		t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	t.TLSClientConfig.InsecureSkipVerify = !verifyTLS //nolint:gosec // Operator opt-out, warned on every login.
	return t
}

func asSession(handle driven.Session) (*session, error) {
	s, ok := handle.(*session)
	if !ok || s == nil {
		return nil, ErrInvalidSession
	}
	return s, nil
}

// normalizeBaseURL validates the controller URL and strips trailing slashes.
func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing controller base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("controller base URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("controller base URL %q has no host", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
