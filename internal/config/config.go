package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// LoadSettings holds defaults for the load command. Flags override every field.
type LoadSettings struct {
	Table              string   `yaml:"table"`
	Schema             string   `yaml:"schema,omitempty"`
	Mode               string   `yaml:"mode,omitempty"`
	InferTypes         bool     `yaml:"infer_types,omitempty"`
	KeyColumns         []string `yaml:"key_columns,omitempty"`
	Sheet              string   `yaml:"sheet,omitempty"`
	Encoding           string   `yaml:"encoding,omitempty"`
	SkipDuplicateFiles bool     `yaml:"skip_duplicate_files,omitempty"`
	MaxConns           int      `yaml:"max_conns,omitempty"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Load       LoadSettings     `yaml:"load"`
	Timeout    string           `yaml:"timeout"`
}

// ConfigFileName is looked up in the source directory.
const ConfigFileName = "tabload.yaml"

func Load(sourcePath string) (*ProjectConfig, error) {
	configPath := filepath.Join(sourcePath, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}
	return &cfg, nil
}
