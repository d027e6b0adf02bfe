package util

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ConfigToStruct takes an arbitrary settings map and populates a struct with
// the fields. Used for backend-specific settings blocks in the config file.
func ConfigToStruct[T any](rawConfig map[string]any) (*T, error) {
	config := new(T)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           config,
	})
	if err != nil {
		return config, err
	}
	if err := decoder.Decode(rawConfig); err != nil {
		return config, fmt.Errorf("decoding settings: %w", err)
	}
	return config, nil
}
