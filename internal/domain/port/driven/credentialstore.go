package driven

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
)

// ErrArtifactNotFound is returned by CredentialStore.OpenArtifact when no
// artifact exists under the given reference.
var ErrArtifactNotFound = errors.New("artifact not found")

// CredentialStore defines the driven port for the published credential.
// Writes replace the previous credential atomically: a concurrent reader sees
// either the old record or the new one, never a partial write.
type CredentialStore interface {
	// Save publishes a new credential and its join-payload artifact.
	Save(ctx context.Context, networkName, passphrase string, rotatedAt time.Time) (model.Credential, error)

	// Current returns the published credential, or (nil, nil) if none exists yet.
	Current(ctx context.Context) (*model.Credential, error)

	// OpenArtifact opens a join-payload artifact by reference. The caller
	// must close the returned reader.
	OpenArtifact(ctx context.Context, ref string) (io.ReadCloser, error)
}
