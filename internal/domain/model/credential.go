package model

import (
	"strings"
	"time"
)

// Credential is the currently published network credential. A new value
// replaces the previous one on every successful rotation; it is never
// modified in place.
type Credential struct {
	NetworkName    string
	Passphrase     string
	RotatedAt      time.Time // Always UTC.
	JoinPayloadRef string    // Artifact name of the rendered join payload.
}

// JoinPayload returns the Wi-Fi join string encoded into the QR artifact.
func (c Credential) JoinPayload() string {
	return JoinPayload(c.NetworkName, c.Passphrase)
}

// JoinPayload builds the WIFI: URI understood by phone cameras. Special
// characters in the network name and passphrase are backslash-escaped.
func JoinPayload(networkName, passphrase string) string {
	return "WIFI:T:WPA;S:" + escapeJoinField(networkName) + ";P:" + escapeJoinField(passphrase) + ";H:false;;"
}

var joinFieldEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	`:`, `\:`,
	`"`, `\"`,
)

func escapeJoinField(s string) string {
	return joinFieldEscaper.Replace(s)
}

// ControllerCredentials is the username/password pair used to log in to the
// wireless controller.
type ControllerCredentials struct {
	Username string
	Password string
}

// Empty reports whether either half of the pair is missing.
func (c ControllerCredentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}
