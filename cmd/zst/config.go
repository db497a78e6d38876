package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a named compression preset loaded from a YAML file. Flags
// override whatever the profile sets.
type Profile struct {
	Level     int    `yaml:"level"`
	WindowLog int    `yaml:"windowLog"`
	Workers   int    `yaml:"workers"`
	Checksum  bool   `yaml:"checksum"`
	Dict      string `yaml:"dict"`
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

func loadProfile(path, name string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile file: %w", err)
	}
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile file: %w", err)
	}
	p, ok := pf.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found in %s", name, path)
	}
	return p, nil
}
