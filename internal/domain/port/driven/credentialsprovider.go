package driven

import (
	"context"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
)

// CredentialsProvider supplies the controller login. Implementations return
// an error wrapping model.ErrCredentialsUnavailable when no usable
// credentials exist.
type CredentialsProvider interface {
	Fetch(ctx context.Context) (model.ControllerCredentials, error)
}

// CredentialsWriter is implemented by providers that can also store a login.
type CredentialsWriter interface {
	Store(ctx context.Context, creds model.ControllerCredentials) error
}
