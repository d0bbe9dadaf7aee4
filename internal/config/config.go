// Package config loads the service configuration from defaults, an optional
// YAML file and FOOTBALL_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/zeusync/football/internal/core/dump"
	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/observability/log"
	"github.com/zeusync/football/internal/server"
)

const EnvPrefix = "FOOTBALL"

var ErrInvalidConfig = errors.New("invalid configuration")

type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

type Config struct {
	LogLevel  string        `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat string        `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
	Server    server.Config `json:"server" yaml:"server" mapstructure:"server"`
	Env       env.Config    `json:"env" yaml:"env" mapstructure:"env"`
	Dump      dump.Config   `json:"dump" yaml:"dump" mapstructure:"dump"`
	Metrics   MetricsConfig `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", string(log.FormatJSON))

	srv := server.DefaultServerConfig()
	v.SetDefault("server.listen_addr", srv.ListenAddr)
	v.SetDefault("server.max_envs", srv.MaxEnvs)
	v.SetDefault("server.env_idle_timeout", srv.EnvIdleTimeout)
	v.SetDefault("server.request_timeout", srv.RequestTimeout)
	v.SetDefault("server.health_check_interval", srv.HealthCheckInterval)
	v.SetDefault("server.auth_token", srv.AuthToken)
	v.SetDefault("server.engine_endpoint", srv.EngineEndpoint)
	v.SetDefault("server.engine_quic_addr", srv.EngineQUICAddr)

	e := env.DefaultConfig()
	v.SetDefault("env.scenario", e.Scenario)
	v.SetDefault("env.representation", e.Representation)
	v.SetDefault("env.rewards", e.Rewards)
	v.SetDefault("env.left_agents", e.LeftAgents)
	v.SetDefault("env.right_agents", e.RightAgents)
	v.SetDefault("env.engine_addr", e.EngineAddr)

	d := dump.DefaultConfig()
	v.SetDefault("dump.write_goal_dumps", d.GoalDumps)
	v.SetDefault("dump.write_full_episode_dumps", d.FullEpisodeDumps)
	v.SetDefault("dump.dump_frequency", d.DumpFrequency)
	v.SetDefault("dump.logdir", d.LogDir)
	v.SetDefault("dump.write_timeout", d.WriteTimeout)

	v.SetDefault("metrics.enabled", false)
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch log.Format(c.LogFormat) {
	case log.FormatJSON, log.FormatConsole:
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Env.Validate(); err != nil {
		return err
	}
	return c.Dump.Validate()
}
