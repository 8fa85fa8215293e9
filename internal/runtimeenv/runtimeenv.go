// Package runtimeenv applies ambient environment-variable overrides on
// top of a loaded game configuration, the same override-after-file
// pattern the rest of the dependency stack uses for its own config.
package runtimeenv

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ToxicPie/minecrab/pkg/config"
	"github.com/ToxicPie/minecrab/pkg/utils"
)

// envPrefix namespaces every override so MINECRAB_MAX_TICKS never
// collides with an unrelated variable in the run's environment.
const envPrefix = "MINECRAB"

// LoadDotEnv loads a .env file if one is present at path; a missing file
// is not an error, since most runs rely on the process environment or the
// config file alone.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return utils.Wrap(err, "load .env file")
	}
	return nil
}

// ApplyOverrides mutates cfg in place from MINECRAB_-prefixed environment
// variables: MINECRAB_MAX_TICKS and MINECRAB_SEED, when set, take
// precedence over whatever the JSON config file specified.
func ApplyOverrides(cfg *config.GameConfig) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	_ = v.BindEnv("max_ticks")
	_ = v.BindEnv("seed")

	if v.IsSet("max_ticks") {
		cfg.MaxTicks = v.GetUint64("max_ticks")
	}
	if v.IsSet("seed") {
		cfg.Seed = v.GetInt64("seed")
	}
}
