package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/tabload/internal/config"
	"github.com/vvka-141/tabload/pkg/tabload"
)

func TestGranularConnFlags_IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		flags GranularConnFlags
		want  bool
	}{
		{"empty", GranularConnFlags{}, true},
		{"host", GranularConnFlags{Host: "localhost"}, false},
		{"port", GranularConnFlags{Port: 5432}, false},
		{"username", GranularConnFlags{Username: "loader"}, false},
		{"sslmode", GranularConnFlags{SSLMode: "require"}, false},
		{"database only", GranularConnFlags{Database: "warehouse"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.flags.IsEmpty())
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PGHOST", "envhost")
	t.Setenv("PGPORT", "6000")
	t.Setenv("TABLOAD_CONNECTION_STRING", "postgresql://x@y/z")
	t.Setenv("AWS_REGION", "us-east-2")

	env := LoadFromEnvironment()
	assert.Equal(t, "envhost", env.PGHOST)
	assert.Equal(t, "6000", env.PGPORT)
	assert.Equal(t, "postgresql://x@y/z", env.TABLOAD_CONNECTION_STRING)
	assert.Equal(t, "us-east-2", env.AWS_REGION)
}

func TestResolveConnectionParams_Precedence(t *testing.T) {
	project := &config.ProjectConfig{Connection: config.ConnectionConfig{
		Host: "yamlhost", Port: 7000, Username: "yamluser", Database: "yamldb", SSLMode: "verify-full",
	}}

	tests := []struct {
		name    string
		conn    string
		flags   *GranularConnFlags
		env     *EnvVars
		project *config.ProjectConfig
		check   func(t *testing.T, cfg *tabload.ConnectionConfig)
	}{
		{
			name: "defaults",
			env:  &EnvVars{PGUSER: "loader"},
			check: func(t *testing.T, cfg *tabload.ConnectionConfig) {
				assert.Equal(t, "localhost", cfg.Host)
				assert.Equal(t, 5432, cfg.Port)
				assert.Equal(t, "prefer", cfg.SSLMode)
				assert.Equal(t, "loader", cfg.Database, "database defaults to the user name")
			},
		},
		{
			name:    "yaml over defaults",
			env:     &EnvVars{},
			project: project,
			check: func(t *testing.T, cfg *tabload.ConnectionConfig) {
				assert.Equal(t, "yamlhost", cfg.Host)
				assert.Equal(t, 7000, cfg.Port)
				assert.Equal(t, "yamluser", cfg.Username)
				assert.Equal(t, "yamldb", cfg.Database)
				assert.Equal(t, "verify-full", cfg.SSLMode)
			},
		},
		{
			name:    "env over yaml",
			env:     &EnvVars{PGHOST: "envhost", PGPORT: "6000", PGPASSWORD: "pw", PGDATABASE: "envdb"},
			project: project,
			check: func(t *testing.T, cfg *tabload.ConnectionConfig) {
				assert.Equal(t, "envhost", cfg.Host)
				assert.Equal(t, 6000, cfg.Port)
				assert.Equal(t, "yamluser", cfg.Username)
				assert.Equal(t, "pw", cfg.Password)
				assert.Equal(t, "envdb", cfg.Database)
			},
		},
		{
			name:    "flags over env",
			flags:   &GranularConnFlags{Host: "flaghost", Port: 5999, Database: "flagdb"},
			env:     &EnvVars{PGHOST: "envhost", PGPORT: "6000"},
			project: project,
			check: func(t *testing.T, cfg *tabload.ConnectionConfig) {
				assert.Equal(t, "flaghost", cfg.Host)
				assert.Equal(t, 5999, cfg.Port)
				assert.Equal(t, "flagdb", cfg.Database)
			},
		},
		{
			name: "connection flag over environment urls",
			conn: "postgresql://a@flag:1/flagdb",
			env:  &EnvVars{DATABASE_URL: "postgresql://b@url:2/urldb", TABLOAD_CONNECTION_STRING: "postgresql://c@tab:3/tabdb"},
			check: func(t *testing.T, cfg *tabload.ConnectionConfig) {
				assert.Equal(t, "flag", cfg.Host)
				assert.Equal(t, "flagdb", cfg.Database)
			},
		},
		{
			name: "TABLOAD_CONNECTION_STRING over DATABASE_URL",
			env:  &EnvVars{DATABASE_URL: "postgresql://b@url:2/urldb", TABLOAD_CONNECTION_STRING: "postgresql://c@tab:3/tabdb"},
			check: func(t *testing.T, cfg *tabload.ConnectionConfig) {
				assert.Equal(t, "tab", cfg.Host)
				assert.Equal(t, "prefer", cfg.SSLMode)
			},
		},
		{
			name:  "database flag overrides connection string",
			conn:  "postgresql://a@h/first",
			flags: &GranularConnFlags{Database: "second"},
			env:   &EnvVars{PGPASSWORD: "pw", PGSSLMODE: "require"},
			check: func(t *testing.T, cfg *tabload.ConnectionConfig) {
				assert.Equal(t, "second", cfg.Database)
				assert.Equal(t, "pw", cfg.Password)
				assert.Equal(t, "require", cfg.SSLMode)
			},
		},
		{
			name:  "granular flags bypass DATABASE_URL",
			flags: &GranularConnFlags{Host: "flaghost"},
			env:   &EnvVars{DATABASE_URL: "postgresql://b@url:2/urldb"},
			check: func(t *testing.T, cfg *tabload.ConnectionConfig) {
				assert.Equal(t, "flaghost", cfg.Host)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ResolveConnectionParams(tt.conn, tt.flags, nil, tt.env, tt.project)
			require.NoError(t, err)
			assert.Equal(t, tabload.AuthMethodStandard, cfg.AuthMethod)
			tt.check(t, cfg)
		})
	}
}

func TestResolveConnectionParams_Errors(t *testing.T) {
	tests := []struct {
		name  string
		conn  string
		flags *GranularConnFlags
		cloud *CloudAuthFlags
		env   *EnvVars
		yaml  string
	}{
		{name: "conflict", conn: "postgresql://h/db", flags: &GranularConnFlags{Host: "other"}},
		{name: "bad PGPORT", env: &EnvVars{PGPORT: "abc"}},
		{name: "bad connection string", conn: "nonsense"},
		{name: "two clouds", cloud: &CloudAuthFlags{AWS: true, Google: true}},
		{name: "unknown yaml auth", yaml: "kerberos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := &config.ProjectConfig{Connection: config.ConnectionConfig{AuthMethod: tt.yaml}}
			_, err := ResolveConnectionParams(tt.conn, tt.flags, tt.cloud, tt.env, project)
			require.Error(t, err)
			assert.Equal(t, tabload.ExitConfigError, tabload.ExitCodeForError(err))
		})
	}
}

func TestResolveConnectionParams_CloudAuth(t *testing.T) {
	t.Run("aws flag with env region", func(t *testing.T) {
		cfg, err := ResolveConnectionParams("", &GranularConnFlags{Host: "db.rds.amazonaws.com", Username: "loader"},
			&CloudAuthFlags{AWS: true}, &EnvVars{AWS_REGION: "eu-west-1", PGPASSWORD: "ignored"}, nil)
		require.NoError(t, err)
		assert.Equal(t, tabload.AuthMethodAWSIAM, cfg.AuthMethod)
		assert.Equal(t, "eu-west-1", cfg.AWSRegion)
		assert.Empty(t, cfg.Password)
	})

	t.Run("aws region flag wins", func(t *testing.T) {
		cfg, err := ResolveConnectionParams("", nil, &CloudAuthFlags{AWS: true, AWSRegion: "us-west-2"},
			&EnvVars{AWS_REGION: "eu-west-1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "us-west-2", cfg.AWSRegion)
	})

	t.Run("google from yaml", func(t *testing.T) {
		project := &config.ProjectConfig{Connection: config.ConnectionConfig{
			AuthMethod: "google", GoogleInstance: "p:r:i", Username: "sa@p.iam",
		}}
		cfg, err := ResolveConnectionParams("", nil, nil, &EnvVars{}, project)
		require.NoError(t, err)
		assert.Equal(t, tabload.AuthMethodGoogleIAM, cfg.AuthMethod)
		assert.Equal(t, "p:r:i", cfg.GoogleInstance)
	})

	t.Run("azure implied by environment", func(t *testing.T) {
		cfg, err := ResolveConnectionParams("", nil, nil,
			&EnvVars{AZURE_TENANT_ID: "t", AZURE_CLIENT_ID: "c", AZURE_CLIENT_SECRET: "s"}, nil)
		require.NoError(t, err)
		assert.Equal(t, tabload.AuthMethodAzureEntraID, cfg.AuthMethod)
		assert.Equal(t, "t", cfg.AzureTenantID)
		assert.Equal(t, "c", cfg.AzureClientID)
		assert.Equal(t, "s", cfg.AzureClientSecret)
	})

	t.Run("azure flags override environment", func(t *testing.T) {
		cfg, err := ResolveConnectionParams("", nil, &CloudAuthFlags{Azure: true, AzureTenantID: "flag-tenant"},
			&EnvVars{AZURE_TENANT_ID: "env-tenant"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "flag-tenant", cfg.AzureTenantID)
	})

	t.Run("unknown yaml auth is unsupported", func(t *testing.T) {
		project := &config.ProjectConfig{Connection: config.ConnectionConfig{AuthMethod: "ldap"}}
		_, err := ResolveConnectionParams("", nil, nil, nil, project)
		assert.True(t, errors.Is(err, tabload.ErrUnsupportedAuthMethod))
	})
}
