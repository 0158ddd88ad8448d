package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/structs"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/caravelhq/caravel/protocol/wire"
)

const (
	CONFIGS_DIR_NAME        = ".config"
	CARAVEL_CONFIG_DIR_NAME = "caravel"
	CONFIG_FILE_NAME        = "config"
	CONFIG_FILE_EXT         = "yml"
	LOG_FILE_NAME           = "caravel.log"
)

type Config struct {
	DeviceName string `mapstructure:"device_name"`
	Port       int    `mapstructure:"port"`
	ChunkSize  int    `mapstructure:"chunk_size"`
	Dest       string `mapstructure:"dest"`
	Collision  string `mapstructure:"collision"`
	Websocket  bool   `mapstructure:"websocket"`
	Verbose    bool   `mapstructure:"verbose"`
}

func GetDefault() Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "caravel"
	}
	return Config{
		DeviceName: hostname,
		Port:       wire.DefaultPort,
		ChunkSize:  wire.DefaultChunkSize,
		Dest:       ".",
		Collision:  "rename",
		Websocket:  false,
		Verbose:    false,
	}
}

func (config Config) Map() map[string]any {
	m := map[string]any{}
	for _, field := range structs.Fields(config) {
		key := field.Tag("mapstructure")
		value := field.Value()
		m[key] = value
	}
	return m
}

func (config Config) Yaml() []byte {
	var builder strings.Builder
	for k, v := range config.Map() {
		builder.WriteString(fmt.Sprintf("%s: %v", k, v))
		builder.WriteRune('\n')
	}
	return []byte(builder.String())
}

func IsDefault(key string) bool {
	defaults := GetDefault().Map()
	return viper.Get(key) == defaults[key]
}

// Dir resolves the configuration directory, $HOME/.config/caravel.
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	return filepath.Join(home, CONFIGS_DIR_NAME, CARAVEL_CONFIG_DIR_NAME), nil
}

// LogPath resolves the verbose log file path inside the config directory.
func LogPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LOG_FILE_NAME), nil
}

// Init initializes the viper config.
// `config.yml` is created in $HOME/.config/caravel if not already existing.
// NOTE: The precedence levels of viper are the following: flags -> config file -> defaults.
func Init() error {
	configPath, err := Dir()
	if err != nil {
		return err
	}
	viper.AddConfigPath(configPath)
	viper.SetConfigName(CONFIG_FILE_NAME)
	viper.SetConfigType(CONFIG_FILE_EXT)

	if err := viper.ReadInConfig(); err != nil {
		// Create config file if not found.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := os.MkdirAll(configPath, os.ModePerm); err != nil {
				return fmt.Errorf("could not create config directory: %w", err)
			}

			configFile, err := os.Create(filepath.Join(configPath, fmt.Sprintf("%s.%s", CONFIG_FILE_NAME, CONFIG_FILE_EXT)))
			if err != nil {
				return fmt.Errorf("could not create config file: %w", err)
			}
			defer configFile.Close()

			if _, err := configFile.Write(GetDefault().Yaml()); err != nil {
				return fmt.Errorf("could not write defaults to config file: %w", err)
			}
		} else {
			return fmt.Errorf("could not read config file: %w", err)
		}
	}
	for k, v := range GetDefault().Map() {
		viper.SetDefault(k, v)
	}
	return nil
}
