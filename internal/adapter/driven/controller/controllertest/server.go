// Package controllertest provides an in-memory wireless controller for tests.
// It implements the session and SSID profile endpoints used by the rotator
// and counts session opens and closes so tests can assert no session leaks.
package controllertest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

const sessionCookie = "wm_session"

// Server is a fake controller backed by httptest.Server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	username string
	password string
	profiles map[string][]map[string]any // key: "location/node"
	sessions map[string]bool

	forced map[string]int // route -> forced status code

	logins       int
	closes       int
	logouts      int
	updates      []map[string]any
	versions     map[string]string // last Version header per route
	lastLoginReq map[string]any
}

// New starts a fake controller accepting the given login. It is closed
// automatically when the test ends.
func New(t testing.TB, username, password string) *Server {
	t.Helper()
	s := newServer(username, password)
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// NewTLS is like New but serves HTTPS with a self-signed certificate.
func NewTLS(t testing.TB, username, password string) *Server {
	t.Helper()
	s := newServer(username, password)
	s.Server = httptest.NewTLSServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func newServer(username, password string) *Server {
	return &Server{
		username: username,
		password: password,
		profiles: make(map[string][]map[string]any),
		sessions: make(map[string]bool),
		versions: make(map[string]string),
		forced:   make(map[string]int),
	}
}

// Routes accepted by FailRoute.
const (
	RouteLogin  = "POST /wifi/api/session"
	RouteDelete = "DELETE /wifi/api/session"
	RouteList   = "GET /wifi/api/deviceconfiguration/ssidprofiles"
	RouteUpdate = "PUT /wifi/api/deviceconfiguration/ssidprofiles"
)

// FailRoute makes route answer with status from now on. A zero status
// restores normal behavior.
func (s *Server) FailRoute(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.forced, route)
		return
	}
	s.forced[route] = status
}

// AddProfile registers a profile under a location and node.
func (s *Server) AddProfile(locationID, nodeID int64, profile map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopeKey(locationID, nodeID)
	s.profiles[key] = append(s.profiles[key], profile)
}

// GuestProfile returns a profile shaped like the controller's SSID profile
// with the given name and passphrase, plus fields the rotator never touches.
func GuestProfile(name, passphrase string) map[string]any {
	return map[string]any{
		"id":           json.Number("9007199254740993"),
		"templateName": name,
		"ssid":         name,
		"band":         "dual",
		"wirelessProfile": map[string]any{
			"vlanId": json.Number("42"),
			"securityMode": map[string]any{
				"mode":          "WPA2_PSK",
				"pskPassphrase": passphrase,
			},
		},
	}
}

// Passphrase returns the current pskPassphrase of the named profile.
func (s *Server) Passphrase(locationID, nodeID int64, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles[scopeKey(locationID, nodeID)] {
		if p["templateName"] == name || p["ssid"] == name {
			wp, _ := p["wirelessProfile"].(map[string]any)
			sm, _ := wp["securityMode"].(map[string]any)
			v, _ := sm["pskPassphrase"].(string)
			return v
		}
	}
	return ""
}

// Logins returns the number of successful logins.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Closes returns the number of sessions ended by DELETE or logout.
func (s *Server) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Logouts returns how many sessions were ended through the logout fallback.
func (s *Server) Logouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logouts
}

// OpenSessions returns the number of sessions still open.
func (s *Server) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Updates returns copies of the bodies received by PUT ssidprofiles.
func (s *Server) Updates() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.updates...)
}

// Version returns the last Version header received for a route such as
// "POST /wifi/api/session".
func (s *Server) Version(route string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[route]
}

// LastLoginRequest returns the decoded body of the last login attempt.
func (s *Server) LastLoginRequest() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoginReq
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /wifi/api/session", s.login)
	mux.HandleFunc("DELETE /wifi/api/session", s.deleteSession)
	mux.HandleFunc("POST /wifi/api/logout", s.logout)
	mux.HandleFunc("GET /wifi/api/deviceconfiguration/ssidprofiles", s.listProfiles)
	mux.HandleFunc("PUT /wifi/api/deviceconfiguration/ssidprofiles", s.updateProfile)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.versions[r.Method+" "+r.URL.Path] = r.Header.Get("Version")
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLoginReq = body

	if status := s.forced[RouteLogin]; status != 0 {
		http.Error(w, "forced login failure", status)
		return
	}
	if body["username"] != s.username || body["password"] != s.password {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	token := newToken()
	s.sessions[token] = true
	s.logins++
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/"})
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status := s.forced[RouteDelete]; status != 0 {
		http.Error(w, "forced delete failure", status)
		return
	}
	if !s.endSessionLocked(r) {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.endSessionLocked(r) {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	s.logouts++
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorizedLocked(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if status := s.forced[RouteList]; status != 0 {
		http.Error(w, "forced list failure", status)
		return
	}

	locationID, err1 := strconv.ParseInt(r.URL.Query().Get("locationid"), 10, 64)
	nodeID, err2 := strconv.ParseInt(r.URL.Query().Get("nodeid"), 10, 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "locationid and nodeid are required", http.StatusBadRequest)
		return
	}

	profiles := s.profiles[scopeKey(locationID, nodeID)]
	if profiles == nil {
		profiles = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(profiles)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorizedLocked(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if status := s.forced[RouteUpdate]; status != 0 {
		http.Error(w, "forced update failure", status)
		return
	}

	s.updates = append(s.updates, body)
	for key, profiles := range s.profiles {
		for i, p := range profiles {
			if p["templateName"] == body["templateName"] {
				s.profiles[key][i] = body
				w.WriteHeader(http.StatusOK)
				return
			}
		}
	}
	http.Error(w, "profile not found", http.StatusNotFound)
}

func (s *Server) authorizedLocked(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	return err == nil && s.sessions[c.Value]
}

func (s *Server) endSessionLocked(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil || !s.sessions[c.Value] {
		return false
	}
	delete(s.sessions, c.Value)
	s.closes++
	return true
}

func scopeKey(locationID, nodeID int64) string {
	return fmt.Sprintf("%d/%d", locationID, nodeID)
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
