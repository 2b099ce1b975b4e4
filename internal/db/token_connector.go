package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/tabload/internal/logging"
	"github.com/vvka-141/tabload/pkg/tabload"
)

// tokenExpiryWarning is the remaining lifetime below which a warning is logged.
// A load run that outlives its token keeps working on the already open connection.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector connects to cloud-hosted PostgreSQL using a token from
// a TokenProvider as the password (AWS IAM, Azure Entra ID).
type TokenBasedConnector struct {
	config        *tabload.ConnectionConfig
	tokenProvider TokenProvider
	providerName  string
	logger        tabload.Logger
}

// NewTokenBasedConnector creates a connector that authenticates with tokenProvider.
// providerName appears in error and warning messages. A nil logger discards output.
func NewTokenBasedConnector(config *tabload.ConnectionConfig, tokenProvider TokenProvider, providerName string, logger tabload.Logger) *TokenBasedConnector {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		providerName:  providerName,
		logger:        logger,
	}
}

func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	token, expiresOn, err := c.tokenProvider.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire %s token: %v", tabload.ErrConnectionFailed, c.providerName, err)
	}
	c.logger.Verbose("Acquired token from %s", c.tokenProvider)

	if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning {
		c.logger.Info("Warning: %s token expires in %v", c.providerName, remaining.Round(time.Second))
	}

	withToken := *c.config
	withToken.Password = token

	poolConfig, err := pgxpool.ParseConfig(BuildConnectionString(&withToken))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse connection config: %v", tabload.ErrInvalidConfig, err)
	}
	return openPool(ctx, poolConfig, c.config)
}
