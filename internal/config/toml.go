// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	View   ViewConfig   `toml:"view"`
	Parser ParserConfig `toml:"parser"`
	Data   DataConfig   `toml:"data"`
	Log    LogConfig    `toml:"log"`
}

// ViewConfig maps the initial result view settings.
type ViewConfig struct {
	Item      *string `toml:"item"`
	Stage     *string `toml:"stage"`
	Source    *string `toml:"source"`
	Sort      *string `toml:"sort"`
	Direction *string `toml:"direction"`
}

// ParserConfig maps stage code parsing settings.
type ParserConfig struct {
	Delimiter *string `toml:"delimiter"`
	Locale    *string `toml:"locale"`
}

// DataConfig maps dataset locations.
type DataConfig struct {
	URL *string `toml:"url"`
	DB  *string `toml:"db"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
