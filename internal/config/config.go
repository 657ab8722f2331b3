package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// PathEnv names the environment variable holding the config file path.
const PathEnv = "CONFIG_PATH"

var ErrPathNotSet = errors.New("config: " + PathEnv + " not set")

// Load config from file into the config struct, config must be a pointer to the config struct.
// Every key can be overridden by an environment variable named after its path,
// upper-cased, with dots replaced by underscores: Redis.Store.Addrs is REDIS_STORE_ADDRS.
// Lists are comma separated.
func Load(file string, config any) error {
	v := viper.New()
	m := make(map[string]any)

	// Registering every key up front lets AutomaticEnv see keys missing from the file.
	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config map: %v", err)
	}

	v.SetConfigFile(file)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config from file %s: %v", file, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

// LoadFromEnv loads the file named by PathEnv.
func LoadFromEnv(config any) error {
	p := os.Getenv(PathEnv)
	if p == "" {
		return ErrPathNotSet
	}

	return Load(p, config)
}
