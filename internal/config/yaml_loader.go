package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ConfigDirEnv overrides the directory searched for YAML files.
const ConfigDirEnv = "PORTAL_CONFIG_DIR"

// yamlSetting binds a YAML key to the env var that takes precedence over it.
type yamlSetting struct {
	key    string
	envVar string
	apply  func(c *Config, v *viper.Viper)
}

var yamlSettings = []yamlSetting{
	{"api.timeout", "API_TIMEOUT", func(c *Config, v *viper.Viper) {
		c.API.Timeout = v.GetDuration("api.timeout")
	}},
	{"csrf.header_name", "CSRF_HEADER_NAME", func(c *Config, v *viper.Viper) {
		c.CSRF.HeaderName = v.GetString("csrf.header_name")
	}},
	{"csrf.keywords", "CSRF_KEYWORDS", func(c *Config, v *viper.Viper) {
		c.CSRF.Keywords = v.GetStringSlice("csrf.keywords")
	}},
	{"cache.customers_ttl", "CACHE_CUSTOMERS_TTL", func(c *Config, v *viper.Viper) {
		c.Cache.CustomersTTL = v.GetDuration("cache.customers_ttl")
	}},
	{"cache.users_ttl", "CACHE_USERS_TTL", func(c *Config, v *viper.Viper) {
		c.Cache.UsersTTL = v.GetDuration("cache.users_ttl")
	}},
	{"cache.groups_ttl", "CACHE_GROUPS_TTL", func(c *Config, v *viper.Viper) {
		c.Cache.GroupsTTL = v.GetDuration("cache.groups_ttl")
	}},
	{"session.ttl", "SESSION_TTL", func(c *Config, v *viper.Viper) {
		c.Session.TTL = v.GetDuration("session.ttl")
	}},
	{"navigation.max_redirects", "NAVIGATION_MAX_REDIRECTS", func(c *Config, v *viper.Viper) {
		c.Navigation.MaxRedirects = v.GetInt("navigation.max_redirects")
	}},
}

// applyYAMLOverlay copies operational settings from YAML into c.
// Explicit environment variables always win over YAML values.
func (c *Config) applyYAMLOverlay() error {
	v, err := loadYAMLConfig(c.Environment.Environment)
	if errors.Is(err, errNoOverlay) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, s := range yamlSettings {
		if _, set := os.LookupEnv(s.envVar); set || !v.IsSet(s.key) {
			continue
		}
		s.apply(c, v)
	}
	return nil
}

// loadYAMLConfig loads operational configuration from YAML files based on the environment.
// It first loads defaults.yaml, then overlays environment-specific configuration
// (local.yaml, nonprod.yaml, or prod.yaml). A missing defaults.yaml yields errNoOverlay.
func loadYAMLConfig(env Environment) (*viper.Viper, error) {
	v := newYAMLViper("defaults")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, errNoOverlay
		}
		return nil, fmt.Errorf("failed to read defaults config: %w", err)
	}

	var envConfigFile string
	switch env {
	case NonProd:
		envConfigFile = "nonprod"
	case Prod:
		envConfigFile = "prod"
	default:
		envConfigFile = "local"
	}

	envViper := newYAMLViper(envConfigFile)
	if err := envViper.ReadInConfig(); err != nil {
		// Environment-specific config is optional
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s config: %w", envConfigFile, err)
		}
		return v, nil
	}

	if err := v.MergeConfigMap(envViper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to merge environment config: %w", err)
	}

	return v, nil
}

func newYAMLViper(name string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName(name)
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		v.AddConfigPath(dir)
		return v
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")
	return v
}
