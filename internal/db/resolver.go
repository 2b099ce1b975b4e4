package db

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vvka-141/tabload/internal/config"
	"github.com/vvka-141/tabload/pkg/tabload"
)

// GranularConnFlags holds connection parameters from CLI flags (-h, -p, -U, -d).
//
// Password is not a flag. Use $PGPASSWORD, a .pgpass file or a connection
// string with an embedded password.
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// IsEmpty reports whether no server-addressing flags were given.
// Database is excluded because it may override the database of a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == ""
}

// CloudAuthFlags selects a cloud authentication method from the CLI.
// The Azure client secret is only read from $AZURE_CLIENT_SECRET.
type CloudAuthFlags struct {
	Azure         bool
	AzureTenantID string
	AzureClientID string

	AWS       bool
	AWSRegion string

	Google         bool
	GoogleInstance string
}

func (f *CloudAuthFlags) selected() int {
	n := 0
	for _, on := range []bool{f.Azure, f.AWS, f.Google} {
		if on {
			n++
		}
	}
	return n
}

// EnvVars holds the environment variables consulted during resolution.
// See https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	PGHOST                    string
	PGPORT                    string
	PGUSER                    string
	PGPASSWORD                string
	PGDATABASE                string
	PGSSLMODE                 string
	DATABASE_URL              string
	TABLOAD_CONNECTION_STRING string

	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string

	AWS_REGION string
}

// LoadFromEnvironment reads EnvVars from the process environment.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:                    os.Getenv("PGHOST"),
		PGPORT:                    os.Getenv("PGPORT"),
		PGUSER:                    os.Getenv("PGUSER"),
		PGPASSWORD:                os.Getenv("PGPASSWORD"),
		PGDATABASE:                os.Getenv("PGDATABASE"),
		PGSSLMODE:                 os.Getenv("PGSSLMODE"),
		DATABASE_URL:              os.Getenv("DATABASE_URL"),
		TABLOAD_CONNECTION_STRING: os.Getenv("TABLOAD_CONNECTION_STRING"),
		AZURE_TENANT_ID:           os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:           os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:       os.Getenv("AZURE_CLIENT_SECRET"),
		AWS_REGION:                os.Getenv("AWS_REGION"),
	}
}

// ResolveConnectionParams resolves the connection configuration.
//
// Precedence:
//  1. --connection flag
//  2. granular flags (-h, -p, -U, -d, --sslmode)
//  3. $TABLOAD_CONNECTION_STRING, then $DATABASE_URL, when no granular flags are set
//  4. PG* environment variables
//  5. tabload.yaml connection section
//  6. defaults (localhost:5432, sslmode=prefer)
//
// --connection together with granular server flags is an error. The -d flag
// may still override the database named in a connection string.
func ResolveConnectionParams(
	connStringFlag string,
	granular *GranularConnFlags,
	cloud *CloudAuthFlags,
	env *EnvVars,
	projectConfig *config.ProjectConfig,
) (*tabload.ConnectionConfig, error) {
	if granular == nil {
		granular = &GranularConnFlags{}
	}
	if cloud == nil {
		cloud = &CloudAuthFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	if connStringFlag != "" && !granular.IsEmpty() {
		return nil, fmt.Errorf("%w: cannot specify both --connection and granular flags (-h, -p, -U, --sslmode)\n"+
			"Choose one approach:\n"+
			"  1. Connection string: --connection \"postgresql://user@localhost:5432/warehouse\"\n"+
			"  2. Granular flags: -h localhost -p 5432 -U loader -d warehouse\n"+
			"  3. Environment variables: export PGHOST=localhost PGUSER=loader PGDATABASE=warehouse",
			tabload.ErrInvalidConfig)
	}
	if cloud.selected() > 1 {
		return nil, fmt.Errorf("%w: --azure, --aws and --google are mutually exclusive", tabload.ErrInvalidConfig)
	}

	var (
		cfg *tabload.ConnectionConfig
		err error
	)
	switch {
	case connStringFlag != "":
		cfg, err = resolveFromConnectionString(connStringFlag, env)
	case granular.IsEmpty() && env.TABLOAD_CONNECTION_STRING != "":
		cfg, err = resolveFromConnectionString(env.TABLOAD_CONNECTION_STRING, env)
	case granular.IsEmpty() && env.DATABASE_URL != "":
		cfg, err = resolveFromConnectionString(env.DATABASE_URL, env)
	default:
		cfg, err = resolveFromGranularParams(granular, env, pc)
	}
	if err != nil {
		return nil, err
	}

	if granular.Database != "" {
		cfg.Database = granular.Database
	}

	if err := applyAuthMethod(cfg, cloud, env, pc); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveFromConnectionString(connStr string, env *EnvVars) (*tabload.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid connection string: %v", tabload.ErrInvalidConfig, err)
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = firstNonEmpty(env.PGSSLMODE, "prefer")
	}
	if cfg.Password == "" {
		cfg.Password = env.PGPASSWORD
	}
	return cfg, nil
}

func resolveFromGranularParams(flags *GranularConnFlags, env *EnvVars, pc config.ConnectionConfig) (*tabload.ConnectionConfig, error) {
	cfg := &tabload.ConnectionConfig{
		Host:             firstNonEmpty(flags.Host, env.PGHOST, pc.Host, "localhost"),
		Username:         firstNonEmpty(flags.Username, env.PGUSER, pc.Username, os.Getenv("USER"), os.Getenv("USERNAME")),
		Password:         env.PGPASSWORD,
		Database:         firstNonEmpty(flags.Database, env.PGDATABASE, pc.Database),
		SSLMode:          firstNonEmpty(flags.SSLMode, env.PGSSLMODE, pc.SSLMode, "prefer"),
		AuthMethod:       tabload.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.PGPORT != "":
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid $PGPORT value '%s': must be an integer", tabload.ErrInvalidConfig, env.PGPORT)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	default:
		cfg.Port = 5432
	}

	if cfg.Database == "" {
		cfg.Database = cfg.Username
	}
	return cfg, nil
}

// applyAuthMethod selects cloud authentication. Flags win over tabload.yaml's
// auth_method; Azure is also enabled implicitly by AZURE_TENANT_ID or AZURE_CLIENT_ID.
func applyAuthMethod(cfg *tabload.ConnectionConfig, flags *CloudAuthFlags, env *EnvVars, pc config.ConnectionConfig) error {
	method, err := authMethodFromYAML(pc.AuthMethod)
	if err != nil {
		return err
	}
	switch {
	case flags.Azure:
		method = tabload.AuthMethodAzureEntraID
	case flags.AWS:
		method = tabload.AuthMethodAWSIAM
	case flags.Google:
		method = tabload.AuthMethodGoogleIAM
	case method == tabload.AuthMethodStandard && (env.AZURE_TENANT_ID != "" || env.AZURE_CLIENT_ID != ""):
		method = tabload.AuthMethodAzureEntraID
	}
	cfg.AuthMethod = method

	switch method {
	case tabload.AuthMethodAzureEntraID:
		cfg.AzureTenantID = firstNonEmpty(flags.AzureTenantID, env.AZURE_TENANT_ID, pc.AzureTenantID)
		cfg.AzureClientID = firstNonEmpty(flags.AzureClientID, env.AZURE_CLIENT_ID, pc.AzureClientID)
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
		cfg.Password = ""
	case tabload.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(flags.AWSRegion, env.AWS_REGION, pc.AWSRegion)
		cfg.Password = ""
	case tabload.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(flags.GoogleInstance, pc.GoogleInstance)
		cfg.Password = ""
	}
	return nil
}

func authMethodFromYAML(value string) (tabload.AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "standard", "password":
		return tabload.AuthMethodStandard, nil
	case "aws", "aws_iam", "aws-iam":
		return tabload.AuthMethodAWSIAM, nil
	case "google", "google_iam", "gcp":
		return tabload.AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure_entra_id":
		return tabload.AuthMethodAzureEntraID, nil
	default:
		return tabload.AuthMethodStandard, fmt.Errorf("%w: unknown auth_method %q in %s", tabload.ErrUnsupportedAuthMethod, value, config.ConfigFileName)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
