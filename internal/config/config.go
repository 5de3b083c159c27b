// Package config resolves process settings from flags, environment and an
// optional image-patcher.yaml file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultRegistry    = "ghcr.io"
	DefaultPatchRoot   = "patch"
	DefaultBuildTool   = "docker"
	DefaultConcurrency = 8
	DefaultLogLevel    = "info"
)

// ErrAuthMissing is returned when neither PAT nor GITHUB_TOKEN is set.
var ErrAuthMissing = errors.New("no PAT (personal access token) or GITHUB_TOKEN found in environment")

// Settings is the resolved configuration of one run.
type Settings struct {
	Registry    string
	PatchRoot   string
	BuildTool   string
	Concurrency int
	LogLevel    string
	Token       string
}

// New returns a viper instance with defaults and environment bindings.
// The token key is bound to PAT first and GITHUB_TOKEN second; the first one
// set wins.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("registry", DefaultRegistry)
	v.SetDefault("root", DefaultPatchRoot)
	v.SetDefault("build-tool", DefaultBuildTool)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("log-level", DefaultLogLevel)

	v.SetEnvPrefix("IMAGE_PATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("token", "PAT", "GITHUB_TOKEN")

	v.SetConfigName("image-patcher")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/image-patcher")

	return v
}

// Load reads the optional config file and returns the merged settings.
func Load(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	s := &Settings{
		Registry:    v.GetString("registry"),
		PatchRoot:   v.GetString("root"),
		BuildTool:   v.GetString("build-tool"),
		Concurrency: v.GetInt("concurrency"),
		LogLevel:    v.GetString("log-level"),
		Token:       v.GetString("token"),
	}
	if s.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency)
	}
	return s, nil
}

// RequireToken returns the API token or ErrAuthMissing.
func (s *Settings) RequireToken() (string, error) {
	if s.Token == "" {
		return "", ErrAuthMissing
	}
	return s.Token, nil
}
