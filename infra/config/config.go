package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const path = "infra/config"

// MustLoad loads the config for the given key
func MustLoad(key string, v interface{}) []byte {

	b, err := os.ReadFile(fmt.Sprintf("%s/%s.json", path, key))
	if err != nil {
		panic(fmt.Sprintf("could not load config for %s: %s", key, err.Error()))
	}

	err = json.Unmarshal(b, v)
	if err != nil {
		panic(fmt.Sprintf("could not unmarshal the config for %s: %s", key, err.Error()))
	}

	log.Info().Str("config", key).Msg("loaded default config")

	return b

}

// Load reads the system config from a json or yaml file.
// Options missing from the file keep their default value.
func Load(file string) (model.SystemConfig, error) {
	cfg := model.DefaultConfig()
	b, err := os.ReadFile(file)
	if err != nil {
		return cfg, fmt.Errorf("could not read config '%s': %w", file, err)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unknown config format '%s': %w", file, model.ConfigInvalidErr)
	}
	if err != nil {
		return cfg, fmt.Errorf("could not decode config '%s': %v: %w", file, err, model.ConfigInvalidErr)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	log.Info().Str("file", file).Msg("loaded config")
	return cfg, nil
}
