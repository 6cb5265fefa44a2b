package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nandanugg/geofence/module/core/domain"
)

// SeedFile is the optional startup file: geofences to upsert and explicit
// device to geofence assignments.
type SeedFile struct {
	Geofences   []domain.Geofence `yaml:"geofences"`
	Assignments map[string]string `yaml:"assignments"`
}

func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}
