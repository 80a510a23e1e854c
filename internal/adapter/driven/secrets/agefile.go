package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"filippo.io/age"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// maxCredentialFile bounds how much decrypted plaintext is read.
const maxCredentialFile = 64 << 10

var _ driven.CredentialsProvider = (*AgeFileProvider)(nil)

// AgeFileProvider decrypts a JSON document {"username":..., "password":...}
// from an age-encrypted file. Both files are re-read on every Fetch so the
// operator can replace them without restarting the service.
type AgeFileProvider struct {
	path         string
	identityPath string
}

// NewAgeFileProvider creates a provider for the encrypted file at path,
// decrypted with the age identities in identityPath.
func NewAgeFileProvider(path, identityPath string) *AgeFileProvider {
	return &AgeFileProvider{path: path, identityPath: identityPath}
}

type credentialDocument struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Fetch decrypts and parses the credentials file. A missing file or an
// unconfigured path reports ErrCredentialsUnavailable; a file that exists
// but cannot be decrypted or parsed is a hard error.
func (p *AgeFileProvider) Fetch(_ context.Context) (model.ControllerCredentials, error) {
	if p.path == "" || p.identityPath == "" {
		return model.ControllerCredentials{}, fmt.Errorf("%w: age credentials file not configured", model.ErrCredentialsUnavailable)
	}

	identities, err := p.identities()
	if err != nil {
		return model.ControllerCredentials{}, err
	}

	f, err := os.Open(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.ControllerCredentials{}, fmt.Errorf("%w: %w", model.ErrCredentialsUnavailable, err)
	}
	if err != nil {
		return model.ControllerCredentials{}, fmt.Errorf("open age credentials file: %w", err)
	}
	defer f.Close()

	reader, err := age.Decrypt(f, identities...)
	if err != nil {
		return model.ControllerCredentials{}, fmt.Errorf("decrypt %s: %w", p.path, err)
	}

	var doc credentialDocument
	if err := json.NewDecoder(io.LimitReader(reader, maxCredentialFile)).Decode(&doc); err != nil {
		return model.ControllerCredentials{}, fmt.Errorf("parse decrypted credentials: %w", err)
	}

	creds := model.ControllerCredentials{Username: doc.Username, Password: doc.Password}
	if creds.Empty() {
		return model.ControllerCredentials{}, fmt.Errorf("%w: %s lacks username or password", model.ErrCredentialsUnavailable, p.path)
	}
	return creds, nil
}

func (p *AgeFileProvider) identities() ([]age.Identity, error) {
	f, err := os.Open(p.identityPath)
	if err != nil {
		return nil, fmt.Errorf("open age identity file: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age identities: %w", err)
	}
	return identities, nil
}

// EncryptCredentials writes creds as an age-encrypted JSON document to w for
// the given X25519 recipients (age1... strings).
func EncryptCredentials(w io.Writer, creds model.ControllerCredentials, recipientKeys ...string) error {
	if len(recipientKeys) == 0 {
		return errors.New("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return fmt.Errorf("parse recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	writer, err := age.Encrypt(w, recipients...)
	if err != nil {
		return fmt.Errorf("create age encryptor: %w", err)
	}
	if err := json.NewEncoder(writer).Encode(credentialDocument{Username: creds.Username, Password: creds.Password}); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize age encryption: %w", err)
	}
	return nil
}
