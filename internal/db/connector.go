package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/tabload/pkg/tabload"
)

// DefaultMaxConnIdleTime keeps the single working connection alive between
// files that take a long time to parse.
const DefaultMaxConnIdleTime = 30 * time.Minute

// DefaultAppName is reported to the server as application_name.
const DefaultAppName = "tabload"

// PoolSize clamps a configured pool size to MinPoolConns..MaxPoolConns.
// Zero selects DefaultPoolConns.
func PoolSize(configured int) int32 {
	switch {
	case configured == 0:
		return tabload.DefaultPoolConns
	case configured < tabload.MinPoolConns:
		return tabload.MinPoolConns
	case configured > tabload.MaxPoolConns:
		return tabload.MaxPoolConns
	default:
		return int32(configured)
	}
}

func configurePool(poolConfig *pgxpool.Config, cfg *tabload.ConnectionConfig) {
	poolConfig.MaxConns = PoolSize(cfg.MaxConns)
	poolConfig.MinConns = tabload.MinPoolConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	if poolConfig.ConnConfig.RuntimeParams["application_name"] == "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = DefaultAppName
	}
}

// openPool creates the pool and verifies it with a ping.
func openPool(ctx context.Context, poolConfig *pgxpool.Config, cfg *tabload.ConnectionConfig) (*pgxpool.Pool, error) {
	configurePool(poolConfig, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	return pool, nil
}

// StandardConnector connects with username/password authentication.
// Connection attempts are not retried: an unreachable server aborts the run.
type StandardConnector struct {
	config *tabload.ConnectionConfig
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
func NewStandardConnector(config *tabload.ConnectionConfig) *StandardConnector {
	return &StandardConnector{config: config}
}

// Connect establishes a connection pool using standard authentication.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(BuildConnectionString(c.config))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse connection config: %v", tabload.ErrInvalidConfig, err)
	}
	return openPool(ctx, poolConfig, c.config)
}

// NewConnector creates the Connector matching config.AuthMethod.
func NewConnector(config *tabload.ConnectionConfig, logger tabload.Logger) (tabload.Connector, error) {
	switch config.AuthMethod {
	case tabload.AuthMethodStandard:
		return NewStandardConnector(config), nil
	case tabload.AuthMethodAWSIAM:
		provider, err := NewAWSIAMTokenProvider(fmt.Sprintf("%s:%d", config.Host, config.Port), config.AWSRegion, config.Username)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", tabload.ErrInvalidConfig, err)
		}
		return NewTokenBasedConnector(config, provider, "AWS IAM", logger), nil
	case tabload.AuthMethodGoogleIAM:
		return newGoogleConnector(config)
	case tabload.AuthMethodAzureEntraID:
		return newAzureConnector(config, logger)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, tabload.ErrUnsupportedAuthMethod)
	}
}

func newGoogleConnector(config *tabload.ConnectionConfig) (tabload.Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("%w: Google Cloud SQL IAM auth requires --google-instance (project:region:instance)", tabload.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("%w: Google Cloud SQL IAM auth requires username (-U)", tabload.ErrInvalidConfig)
	}
	return NewGoogleCloudSQLConnector(config, config.GoogleInstance), nil
}

// newAzureConnector uses Service Principal auth when tenant, client and secret
// are all set and the DefaultAzureCredential chain otherwise.
func newAzureConnector(config *tabload.ConnectionConfig, logger tabload.Logger) (tabload.Connector, error) {
	var (
		provider TokenProvider
		err      error
	)
	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		provider, err = NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
	} else {
		provider, err = NewAzureDefaultCredentialProvider()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tabload.ErrInvalidConfig, err)
	}
	return NewTokenBasedConnector(config, provider, "Azure", logger), nil
}

// wrapConnectionError adds actionable guidance to raw pgx connection errors.
// The result always wraps tabload.ErrConnectionFailed.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	var hint string
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		hint = fmt.Sprintf(`connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port
  - Firewall blocking the connection`, addr, host, port)

	case strings.Contains(errStr, "no such host"):
		hint = fmt.Sprintf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not reachable`, host)

	case strings.Contains(errStr, "password authentication failed"):
		hint = fmt.Sprintf(`password authentication failed for database "%s"

Check $PGPASSWORD, ~/.pgpass or the password in the connection string.`, database)

	case strings.Contains(errStr, "database") && strings.Contains(errStr, "does not exist"):
		hint = fmt.Sprintf(`database "%s" does not exist

Create it first:
  createdb %s`, database, database)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		hint = fmt.Sprintf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets`, addr)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		hint = `SSL/TLS connection error

Check --sslmode (for example --sslmode=require or --sslmode=disable).`

	case strings.Contains(errStr, "too many connections"):
		hint = fmt.Sprintf(`too many connections to database "%s"

Lower --max-conns or free connections on the server.`, database)

	default:
		return fmt.Errorf("%w: %v", tabload.ErrConnectionFailed, err)
	}

	return fmt.Errorf("%w: %s\n\nOriginal error: %v", tabload.ErrConnectionFailed, hint, err)
}
