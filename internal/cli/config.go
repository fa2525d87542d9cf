package cli

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the defaults an optional anvil.yaml file in the
// working directory supplies for flags the user left unset. Explicit
// flags always win over the config file.
type Config struct {
	Graph string `yaml:"graph"`
	DB    string `yaml:"db"`
}

// LoadConfig reads anvil.yaml from the working directory, if present.
// A missing file is not an error: it returns a zero Config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefault returns value if it is non-empty, otherwise fallback.
func applyDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
