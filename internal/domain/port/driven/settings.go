package driven

import "github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"

// SettingsSource resolves the controller settings for one rotation attempt.
// Missing required fields are reported as model.ErrConfiguration.
type SettingsSource interface {
	RotationSettings() (model.RotationSettings, error)
}
