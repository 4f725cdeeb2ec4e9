package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/amd-treatment-sim/internal/domain"
)

// LoadProtocol reads a protocol specification YAML file into a validated
// domain.ProtocolSpec. Validation failures are configuration errors: the
// caller must not run a simulation against a protocol that fails here.
func LoadProtocol(path string) (*domain.ProtocolSpec, error) {
	v := viper.New()
	v.SetConfigFile(path)
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext != "" {
		v.SetConfigType(ext)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading protocol file %s: %w", path, err)
	}

	spec := &domain.ProtocolSpec{}
	if err := v.Unmarshal(spec); err != nil {
		return nil, fmt.Errorf("unmarshaling protocol file %s: %w", path, err)
	}

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("protocol file %s: %w", path, err)
	}
	return spec, nil
}
