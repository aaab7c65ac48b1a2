package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML file, expands environment variable references,
// decodes it into a Config, applies defaults, and validates the result —
// the single entry point cmd/quoracle uses to turn a config file into a
// runnable Config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes runs the same expand/decode/default/validate
// pipeline as LoadConfig against an in-memory YAML document.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	expanded, _ := expandEnvVars(raw).(map[string]any)

	cfg := &Config{}
	if err := decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// decode maps a generic YAML-decoded value tree onto Config using its
// `yaml` struct tags, the same mapstructure decode hooks the rest of the
// ecosystem reaches for to turn duration strings and comma-separated lists
// into their typed Go forms.
func decode(input map[string]any, out *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
