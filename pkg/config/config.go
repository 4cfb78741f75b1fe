package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iniwex5/simprofile/pkg/api"
	"github.com/iniwex5/simprofile/pkg/crypto"
	"github.com/iniwex5/simprofile/pkg/pipeline"
)

type APIConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Config 命令行工具配置，命令行参数优先于配置文件
type Config struct {
	Key         string    `yaml:"key"`
	ProfilesDir string    `yaml:"profiles_dir"`
	Format      string    `yaml:"format"`  // hex, json, yaml
	Padding     string    `yaml:"padding"` // pkcs1v15, oaep-sha1, oaep-sha256
	IncludeSMSP bool      `yaml:"include_smsp"`
	IncludeSMSC bool      `yaml:"include_smsc"`
	API         APIConfig `yaml:"api"`
	Log         LogConfig `yaml:"log"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		ProfilesDir: "./profiles",
		Format:      string(pipeline.FormatHex),
		Padding:     crypto.PaddingPKCS1v15.String(),
		IncludeSMSP: true,
		IncludeSMSC: false,
		API: APIConfig{
			Endpoint: api.DefaultEndpoint,
			Timeout:  30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load 在默认配置上叠加 YAML 文件；path 为空时只返回默认配置
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := pipeline.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := crypto.ParsePadding(c.Padding); err != nil {
		return err
	}
	return nil
}

func (c *Config) APIClientConfig() api.Config {
	return api.Config{APIKey: c.API.APIKey, Endpoint: c.API.Endpoint, Timeout: c.API.Timeout}
}
