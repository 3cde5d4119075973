package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// GoalsConfig holds the default daily goals offered before a user sets their own.
type GoalsConfig struct {
	Calories float64 `mapstructure:"calories"`
	Protein  float64 `mapstructure:"protein"`
	Fat      float64 `mapstructure:"fat"`
	Carbs    float64 `mapstructure:"carbs"`
}

func DefaultGoalsConfig() GoalsConfig {
	return GoalsConfig{
		Calories: 2000,
		Protein:  150,
		Fat:      70,
		Carbs:    300,
	}
}

type GoalsHolder struct {
	current atomic.Value // holds GoalsConfig
}

// NewGoalsHolder loads goals.yml from the usual config paths and watches it for changes.
func NewGoalsHolder() (*GoalsHolder, error) {
	v := viper.New()

	v.SetConfigName("goals")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/macrolog/config")
	v.AddConfigPath("/etc/macrolog")
	v.AddConfigPath(".")

	return newGoalsHolder(v, true)
}

// LoadGoalsFile reads goals from an explicit file without watching it.
func LoadGoalsFile(path string) (*GoalsHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return newGoalsHolder(v, false)
}

func newGoalsHolder(v *viper.Viper, watch bool) (*GoalsHolder, error) {
	v.SetEnvPrefix("MACROLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGoalsConfig()
	v.SetDefault("goals.calories", defaults.Calories)
	v.SetDefault("goals.protein", defaults.Protein)
	v.SetDefault("goals.fat", defaults.Fat)
	v.SetDefault("goals.carbs", defaults.Carbs)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg GoalsConfig
	if err := v.UnmarshalKey("goals", &cfg); err != nil {
		return nil, err
	}
	if err := validateGoalsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &GoalsHolder{}
	holder.current.Store(cfg)

	if watch && v.ConfigFileUsed() != "" {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated GoalsConfig
			if err := v.UnmarshalKey("goals", &updated); err != nil {
				log.Printf("[goals-config] reload failed: %v", err)
				return
			}
			if err := validateGoalsConfig(updated); err != nil {
				log.Printf("[goals-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[goals-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *GoalsHolder) Get() GoalsConfig {
	if h == nil {
		return DefaultGoalsConfig()
	}
	cfg, ok := h.current.Load().(GoalsConfig)
	if !ok {
		return DefaultGoalsConfig()
	}
	return cfg
}

func validateGoalsConfig(cfg GoalsConfig) error {
	if cfg.Calories < 0 || cfg.Protein < 0 || cfg.Fat < 0 || cfg.Carbs < 0 {
		return errors.New("goals cannot be negative")
	}
	return nil
}
