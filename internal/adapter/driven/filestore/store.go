// Package filestore implements the CredentialStore port on the local file
// system. The current credential is a JSON record next to its rendered join
// payload artifact; both are replaced atomically.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*Store)(nil)

// RecordFile is the name of the current-credential record inside the data directory.
const RecordFile = "current_psk.json"

const artifactPrefix = "wifi_qr_"

// record is the on-disk JSON shape read by the status page.
type record struct {
	SSID           string `json:"ssid"`
	PSK            string `json:"psk"`
	LastRotatedUTC string `json:"last_rotated_utc"`
	QRImage        string `json:"qr_image"`
}

// Store is the file-system CredentialStore.
type Store struct {
	dir      string
	renderer driven.JoinPayloadRenderer
	mu       sync.Mutex // serializes writers within this process
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, renderer driven.JoinPayloadRenderer) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir, renderer: renderer}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Save renders the join payload, writes the artifact, then replaces the
// record. The artifact is written first so a reader never sees a record
// pointing at a missing image.
func (s *Store) Save(_ context.Context, networkName, passphrase string, rotatedAt time.Time) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred := model.Credential{
		NetworkName:    networkName,
		Passphrase:     passphrase,
		RotatedAt:      rotatedAt.UTC(),
		JoinPayloadRef: ArtifactName(networkName, s.renderer.Extension()),
	}

	image, err := s.renderer.Render(cred.JoinPayload())
	if err != nil {
		return model.Credential{}, fmt.Errorf("render join payload: %w", err)
	}
	if err := atomic.WriteFile(filepath.Join(s.dir, cred.JoinPayloadRef), bytes.NewReader(image)); err != nil {
		return model.Credential{}, fmt.Errorf("write join payload artifact: %w", err)
	}

	data, err := json.MarshalIndent(record{
		SSID:           cred.NetworkName,
		PSK:            cred.Passphrase,
		LastRotatedUTC: cred.RotatedAt.Format(time.RFC3339Nano),
		QRImage:        cred.JoinPayloadRef,
	}, "", "  ")
	if err != nil {
		return model.Credential{}, fmt.Errorf("encode credential record: %w", err)
	}
	if err := atomic.WriteFile(filepath.Join(s.dir, RecordFile), bytes.NewReader(data)); err != nil {
		return model.Credential{}, fmt.Errorf("write credential record: %w", err)
	}

	return cred, nil
}

// Current reads the published credential. Returns (nil, nil) when no
// rotation has succeeded yet.
func (s *Store) Current(_ context.Context) (*model.Credential, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, RecordFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential record: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode credential record: %w", err)
	}

	cred := &model.Credential{
		NetworkName:    rec.SSID,
		Passphrase:     rec.PSK,
		JoinPayloadRef: rec.QRImage,
	}
	if rec.LastRotatedUTC != "" {
		rotatedAt, err := time.Parse(time.RFC3339Nano, rec.LastRotatedUTC)
		if err != nil {
			return nil, fmt.Errorf("parse last_rotated_utc %q: %w", rec.LastRotatedUTC, err)
		}
		cred.RotatedAt = rotatedAt.UTC()
	}
	return cred, nil
}

// OpenArtifact opens an artifact inside the data directory. References that
// are not plain file names are treated as missing.
func (s *Store) OpenArtifact(_ context.Context, ref string) (io.ReadCloser, error) {
	if !isPlainName(ref) || ref == RecordFile {
		return nil, driven.ErrArtifactNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, driven.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact %q: %w", ref, err)
	}
	return f, nil
}

// ArtifactName derives the artifact file name for a network. Characters
// outside [A-Za-z0-9_-] are replaced with '_'.
func ArtifactName(networkName, ext string) string {
	var b strings.Builder
	for _, r := range networkName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		name = "network"
	}
	return artifactPrefix + name + ext
}

func isPlainName(ref string) bool {
	return ref != "" && ref != "." && ref != ".." &&
		!strings.ContainsAny(ref, `/\`) && filepath.Base(ref) == ref
}
