// Package secrets provides controller login providers backed by the process
// environment and by age-encrypted files, plus a chain that tries several
// providers in order.
package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// Environment variables read by EnvProvider.
const (
	UsernameEnv = "PSKROTATOR_WM_USERNAME"
	PasswordEnv = "PSKROTATOR_WM_PASSWORD"
)

var _ driven.CredentialsProvider = (*EnvProvider)(nil)

// EnvProvider reads the controller login from environment variables on
// every Fetch.
type EnvProvider struct {
	usernameVar string
	passwordVar string
}

// NewEnvProvider creates an EnvProvider reading UsernameEnv and PasswordEnv.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{usernameVar: UsernameEnv, passwordVar: PasswordEnv}
}

// Fetch returns the login or ErrCredentialsUnavailable when either variable
// is unset or empty.
func (p *EnvProvider) Fetch(_ context.Context) (model.ControllerCredentials, error) {
	creds := model.ControllerCredentials{
		Username: os.Getenv(p.usernameVar),
		Password: os.Getenv(p.passwordVar),
	}
	if creds.Empty() {
		return model.ControllerCredentials{}, fmt.Errorf("%w: %s and %s must both be set",
			model.ErrCredentialsUnavailable, p.usernameVar, p.passwordVar)
	}
	return creds, nil
}
