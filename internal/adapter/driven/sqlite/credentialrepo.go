package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// ErrEncryptionKeyNotSet is returned by CredentialRepo operations when no
// secret key was configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set SECRET_KEY")

// Compile-time interface satisfaction checks.
var (
	_ driven.CredentialsProvider = (*CredentialRepo)(nil)
	_ driven.CredentialsWriter   = (*CredentialRepo)(nil)
)

const (
	controllerService = "controller"
	usernameKey       = "username"
	passwordKey       = "password"
)

// keySalt is fixed so the same SECRET_KEY always yields the same AES key.
var keySalt = []byte("tsk-arista-wifi-psk-rotator/credentials/v1")

// DeriveKey stretches an operator-supplied secret into a 32-byte AES-256 key
// with Argon2id. An empty secret yields a nil key, which disables the repo.
func DeriveKey(secret string) []byte {
	if secret == "" {
		return nil
	}
	return argon2.IDKey([]byte(secret), keySalt, 1, 64*1024, 4, 32)
}

// CredentialRepo stores service credentials in SQLite. Values are encrypted
// with AES-256-GCM before write and decrypted after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (all operations will
// return ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Enabled reports whether an encryption key is configured.
func (r *CredentialRepo) Enabled() bool {
	return r.key != nil
}

const upsertCredential = `INSERT INTO credentials (service, key, value, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(service, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *CredentialRepo) put(ctx context.Context, ex execer, service, key, plaintext string, now time.Time) error {
	sealed, err := r.seal(service, key, plaintext)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, upsertCredential, service, key, sealed, now.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("set credential %s/%s: %w", service, key, err)
	}
	return nil
}

// Set stores or replaces the credential for service/key.
func (r *CredentialRepo) Set(ctx context.Context, service, key, plaintext string) error {
	return r.put(ctx, r.db.Writer, service, key, plaintext, time.Now())
}

// Get retrieves the plaintext credential for service/key.
// Returns ("", nil) if no credential exists.
func (r *CredentialRepo) Get(ctx context.Context, service, key string) (string, error) {
	if r.key == nil {
		return "", ErrEncryptionKeyNotSet
	}

	const query = `SELECT value FROM credentials WHERE service = ? AND key = ?`
	var sealed string
	err := r.db.Reader.QueryRowContext(ctx, query, service, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %s/%s: %w", service, key, err)
	}

	plaintext, err := r.open(service, key, sealed)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %s/%s: %w", service, key, err)
	}
	return plaintext, nil
}

// Delete removes the credential for service/key.
func (r *CredentialRepo) Delete(ctx context.Context, service, key string) error {
	const query = `DELETE FROM credentials WHERE service = ? AND key = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, key); err != nil {
		return fmt.Errorf("delete credential %s/%s: %w", service, key, err)
	}
	return nil
}

// Fetch returns the stored controller login.
func (r *CredentialRepo) Fetch(ctx context.Context) (model.ControllerCredentials, error) {
	if r.key == nil {
		return model.ControllerCredentials{}, fmt.Errorf("%w: %w", model.ErrCredentialsUnavailable, ErrEncryptionKeyNotSet)
	}

	username, err := r.Get(ctx, controllerService, usernameKey)
	if err != nil {
		return model.ControllerCredentials{}, err
	}
	password, err := r.Get(ctx, controllerService, passwordKey)
	if err != nil {
		return model.ControllerCredentials{}, err
	}

	creds := model.ControllerCredentials{Username: username, Password: password}
	if creds.Empty() {
		return model.ControllerCredentials{}, fmt.Errorf("%w: no controller login stored in database", model.ErrCredentialsUnavailable)
	}
	return creds, nil
}

// Store saves the controller login in a single transaction.
func (r *CredentialRepo) Store(ctx context.Context, creds model.ControllerCredentials) error {
	if creds.Empty() {
		return errors.New("username and password are required")
	}
	if r.key == nil {
		return ErrEncryptionKeyNotSet
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	now := time.Now()
	if err := r.put(ctx, tx, controllerService, usernameKey, creds.Username, now); err != nil {
		return err
	}
	if err := r.put(ctx, tx, controllerService, passwordKey, creds.Password, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit controller login: %w", err)
	}
	return nil
}

// aead returns the AES-256-GCM cipher for the configured key.
func (r *CredentialRepo) aead() (cipher.AEAD, error) {
	if r.key == nil {
		return nil, ErrEncryptionKeyNotSet
	}
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// rowBinding is the additional data that ties a ciphertext to its row, so a
// value copied into another row fails to decrypt.
func rowBinding(service, key string) []byte {
	return []byte(service + "\x00" + key)
}

// seal encrypts plaintext and returns base64(nonce || ciphertext || tag).
func (r *CredentialRepo) seal(service, key, plaintext string) (string, error) {
	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), rowBinding(service, key))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open reverses seal for the same row.
func (r *CredentialRepo) open(service, key, encoded string) (string, error) {
	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode value: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, rowBinding(service, key))
	if err != nil {
		return "", fmt.Errorf("authenticate value: %w", err)
	}
	return string(plaintext), nil
}
