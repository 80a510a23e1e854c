package model

import (
	"fmt"
	"strings"
)

// Profile is an SSID profile as returned by the controller. Only a few keys
// are interpreted; everything else is carried through untouched so a
// write-back never drops fields the controller added in a newer version.
type Profile map[string]any

// DefaultNameFields are the profile keys compared against the configured
// network name.
var DefaultNameFields = []string{"templateName", "ssid"}

// DefaultPassphrasePath locates the PSK inside a profile.
var DefaultPassphrasePath = []string{"wirelessProfile", "securityMode", "pskPassphrase"}

// MatchesName reports whether any of fields holds a string equal to name.
func (p Profile) MatchesName(name string, fields []string) bool {
	for _, field := range fields {
		if v, ok := p[field].(string); ok && v == name {
			return true
		}
	}
	return false
}

// StringField returns the string value under key, or "" if absent.
func (p Profile) StringField(key string) string {
	v, _ := p[key].(string)
	return v
}

// SetNested replaces the value at path. Every intermediate key must already
// exist as an object and the leaf key must already be present; otherwise the
// profile has an unexpected shape and nothing is modified.
func (p Profile) SetNested(path []string, value any) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty field path", ErrMalformedProfile)
	}

	current := map[string]any(p)
	for i, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q is not an object", ErrMalformedProfile, strings.Join(path[:i+1], "."))
		}
		current = next
	}

	leaf := path[len(path)-1]
	if _, ok := current[leaf]; !ok {
		return fmt.Errorf("%w: missing field %q", ErrMalformedProfile, strings.Join(path, "."))
	}
	current[leaf] = value
	return nil
}

// FindProfile returns the first profile whose name fields match name.
func FindProfile(profiles []Profile, name string, fields []string) (Profile, bool) {
	for _, p := range profiles {
		if p.MatchesName(name, fields) {
			return p, true
		}
	}
	return nil, false
}
