package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/secrets"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// readCredentials reads the controller username and password from the first
// two lines of r. Surrounding whitespace is trimmed.
func readCredentials(r io.Reader) (model.ControllerCredentials, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for len(lines) < 2 && scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return model.ControllerCredentials{}, fmt.Errorf("read credentials: %w", err)
	}
	if len(lines) < 2 {
		return model.ControllerCredentials{}, errors.New("expected username and password on separate lines")
	}

	creds := model.ControllerCredentials{Username: lines[0], Password: lines[1]}
	if creds.Empty() {
		return model.ControllerCredentials{}, errors.New("username and password must not be empty")
	}
	return creds, nil
}

// credentialRepo is the encrypted store --set-credentials writes to.
type credentialRepo interface {
	driven.CredentialsWriter
	Enabled() bool
}

func storeCredentials(ctx context.Context, repo credentialRepo, stdin io.Reader, logger *slog.Logger) error {
	if !repo.Enabled() {
		return errors.New("SECRET_KEY must be set to store controller credentials")
	}
	creds, err := readCredentials(stdin)
	if err != nil {
		return err
	}
	if err := repo.Store(ctx, creds); err != nil {
		return err
	}
	logger.Info("controller credentials stored", "username", creds.Username)
	return nil
}

func encryptCredentials(stdin io.Reader, stdout io.Writer, recipients []string) error {
	creds, err := readCredentials(stdin)
	if err != nil {
		return err
	}
	return secrets.EncryptCredentials(stdout, creds, recipients...)
}
