package secrets_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/secrets"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

func TestEnvProvider(t *testing.T) {
	t.Setenv(secrets.UsernameEnv, "svc-rotator")
	t.Setenv(secrets.PasswordEnv, "secret")

	creds, err := secrets.NewEnvProvider().Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ControllerCredentials{Username: "svc-rotator", Password: "secret"}, creds)
}

func TestEnvProvider_Missing(t *testing.T) {
	t.Setenv(secrets.UsernameEnv, "svc-rotator")
	t.Setenv(secrets.PasswordEnv, "")

	_, err := secrets.NewEnvProvider().Fetch(context.Background())
	assert.ErrorIs(t, err, model.ErrCredentialsUnavailable)
}

// writeAgeFiles encrypts creds for a fresh identity and returns the paths of
// the ciphertext and identity files.
func writeAgeFiles(t *testing.T, creds model.ControllerCredentials) (string, string) {
	t.Helper()
	dir := t.TempDir()

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	identityPath := filepath.Join(dir, "identity.txt")
	require.NoError(t, os.WriteFile(identityPath, []byte("# test key\n"+identity.String()+"\n"), 0o600))

	var buf bytes.Buffer
	require.NoError(t, secrets.EncryptCredentials(&buf, creds, identity.Recipient().String()))
	path := filepath.Join(dir, "credentials.age")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	return path, identityPath
}

func TestAgeFileProvider(t *testing.T) {
	want := model.ControllerCredentials{Username: "svc-rotator", Password: "p@ss;word"}
	path, identityPath := writeAgeFiles(t, want)

	got, err := secrets.NewAgeFileProvider(path, identityPath).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "p@ss;word")
}

func TestAgeFileProvider_NotConfigured(t *testing.T) {
	_, err := secrets.NewAgeFileProvider("", "").Fetch(context.Background())
	assert.ErrorIs(t, err, model.ErrCredentialsUnavailable)
}

func TestAgeFileProvider_MissingFile(t *testing.T) {
	_, identityPath := writeAgeFiles(t, model.ControllerCredentials{Username: "u", Password: "p"})

	_, err := secrets.NewAgeFileProvider(filepath.Join(t.TempDir(), "absent.age"), identityPath).Fetch(context.Background())
	assert.ErrorIs(t, err, model.ErrCredentialsUnavailable)
}

func TestAgeFileProvider_WrongIdentity(t *testing.T) {
	path, _ := writeAgeFiles(t, model.ControllerCredentials{Username: "u", Password: "p"})
	_, otherIdentity := writeAgeFiles(t, model.ControllerCredentials{Username: "u", Password: "p"})

	_, err := secrets.NewAgeFileProvider(path, otherIdentity).Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrCredentialsUnavailable, "undecryptable file is a hard error")
}

func TestAgeFileProvider_IncompleteDocument(t *testing.T) {
	path, identityPath := writeAgeFiles(t, model.ControllerCredentials{Username: "only-user"})

	_, err := secrets.NewAgeFileProvider(path, identityPath).Fetch(context.Background())
	assert.ErrorIs(t, err, model.ErrCredentialsUnavailable)
}

func TestEncryptCredentials_RequiresRecipient(t *testing.T) {
	err := secrets.EncryptCredentials(&bytes.Buffer{}, model.ControllerCredentials{Username: "u", Password: "p"})
	assert.Error(t, err)

	err = secrets.EncryptCredentials(&bytes.Buffer{}, model.ControllerCredentials{Username: "u", Password: "p"}, "not-a-key")
	assert.Error(t, err)
}

type stubProvider struct {
	creds model.ControllerCredentials
	err   error
	calls int
}

func (s *stubProvider) Fetch(context.Context) (model.ControllerCredentials, error) {
	s.calls++
	return s.creds, s.err
}

func unavailable() error {
	return model.ErrCredentialsUnavailable
}

func TestChainProvider(t *testing.T) {
	found := model.ControllerCredentials{Username: "u", Password: "p"}

	tests := []struct {
		name      string
		providers []*stubProvider
		wantCreds model.ControllerCredentials
		wantErr   error
		wantCalls []int
	}{
		{
			name:      "first provider wins",
			providers: []*stubProvider{{creds: found}, {creds: model.ControllerCredentials{Username: "x", Password: "y"}}},
			wantCreds: found,
			wantCalls: []int{1, 0},
		},
		{
			name:      "skips unavailable providers",
			providers: []*stubProvider{{err: unavailable()}, {err: unavailable()}, {creds: found}},
			wantCreds: found,
			wantCalls: []int{1, 1, 1},
		},
		{
			name:      "all unavailable",
			providers: []*stubProvider{{err: unavailable()}, {err: unavailable()}},
			wantErr:   model.ErrCredentialsUnavailable,
			wantCalls: []int{1, 1},
		},
		{
			name:      "hard error stops the chain",
			providers: []*stubProvider{{err: errors.New("database locked")}, {creds: found}},
			wantErr:   nil,
			wantCalls: []int{1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			named := make([]secrets.NamedProvider, len(tt.providers))
			for i, p := range tt.providers {
				named[i] = secrets.NamedProvider{Name: "p", Provider: p}
			}

			creds, err := secrets.NewChainProvider(slog.New(slog.DiscardHandler), named...).Fetch(context.Background())

			switch {
			case tt.wantCreds != (model.ControllerCredentials{}):
				require.NoError(t, err)
				assert.Equal(t, tt.wantCreds, creds)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.Error(t, err)
				assert.NotErrorIs(t, err, model.ErrCredentialsUnavailable)
			}
			for i, p := range tt.providers {
				assert.Equal(t, tt.wantCalls[i], p.calls, "provider %d", i)
			}
		})
	}
}

func TestChainProvider_Empty(t *testing.T) {
	_, err := secrets.NewChainProvider(slog.New(slog.DiscardHandler)).Fetch(context.Background())
	assert.ErrorIs(t, err, model.ErrCredentialsUnavailable)
}

var _ driven.CredentialsProvider = (*stubProvider)(nil)
