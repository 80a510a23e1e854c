package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

var _ driven.SettingsSource = (*Source)(nil)

// Source resolves controller settings from the config file on every call,
// so edits take effect at the next rotation without a restart.
type Source struct {
	path string
}

// NewSource creates a Source reading path.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Path returns the config file path.
func (s *Source) Path() string { return s.path }

// RotationSettings reads and validates the per-rotation settings. Every
// failure wraps model.ErrConfiguration.
func (s *Source) RotationSettings() (model.RotationSettings, error) {
	v, err := read(s.path)
	if err != nil {
		return model.RotationSettings{}, fmt.Errorf("%w: %w", model.ErrConfiguration, err)
	}

	settings, err := rotationSettings(v)
	if err != nil {
		return model.RotationSettings{}, fmt.Errorf("%w: %w", model.ErrConfiguration, err)
	}
	return settings, nil
}

func rotationSettings(v *viper.Viper) (model.RotationSettings, error) {
	var missing []string
	for _, key := range []string{KeyBaseURL, KeyNetworkName, KeyLocationID, KeyNodeID} {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return model.RotationSettings{}, fmt.Errorf("missing required keys: %s", strings.Join(missing, ", "))
	}

	locationID, err := toInt64(v.Get(KeyLocationID))
	if err != nil {
		return model.RotationSettings{}, fmt.Errorf("%s: %w", KeyLocationID, err)
	}
	nodeID, err := toInt64(v.Get(KeyNodeID))
	if err != nil {
		return model.RotationSettings{}, fmt.Errorf("%s: %w", KeyNodeID, err)
	}
	verifyTLS, err := cast.ToBoolE(v.Get(KeyVerifyTLS))
	if err != nil {
		return model.RotationSettings{}, fmt.Errorf("%s: %w", KeyVerifyTLS, err)
	}

	nameFields := model.DefaultNameFields
	if v.IsSet(KeyNameFields) {
		if nameFields, err = toStringList(v.Get(KeyNameFields), ","); err != nil {
			return model.RotationSettings{}, fmt.Errorf("%s: %w", KeyNameFields, err)
		}
		if len(nameFields) == 0 {
			return model.RotationSettings{}, fmt.Errorf("%s must name at least one field", KeyNameFields)
		}
	}

	passphrasePath := model.DefaultPassphrasePath
	if v.IsSet(KeyPassphrasePath) {
		if passphrasePath, err = toStringList(v.Get(KeyPassphrasePath), "."); err != nil {
			return model.RotationSettings{}, fmt.Errorf("%s: %w", KeyPassphrasePath, err)
		}
		if len(passphrasePath) == 0 {
			return model.RotationSettings{}, fmt.Errorf("%s must not be empty", KeyPassphrasePath)
		}
	}

	return model.RotationSettings{
		BaseURL:             strings.TrimRight(strings.TrimSpace(v.GetString(KeyBaseURL)), "/"),
		NetworkName:         v.GetString(KeyNetworkName),
		LocationID:          locationID,
		NodeID:              nodeID,
		VerifyTLS:           verifyTLS,
		SessionVersion:      v.GetString(KeySessionVersion),
		DeviceConfigVersion: v.GetString(KeyDeviceConfigVersion),
		NameFields:          nameFields,
		PassphrasePath:      passphrasePath,
	}, nil
}
