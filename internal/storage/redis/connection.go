// -----------------------------------------------------------------------
// Redis Connection - Shared job store client
// -----------------------------------------------------------------------

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
)

// Connection manages the redis client backing the job store
type Connection struct {
	client *redis.Client
	logger arbor.ILogger
}

// Connect parses the store URL, opens a client, and verifies
// connectivity with a ping
func Connect(ctx context.Context, url string, logger arbor.ILogger) (*Connection, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to job store: %w", err)
	}

	logger.Debug().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Job store connection established")

	return &Connection{
		client: client,
		logger: logger,
	}, nil
}

// Client returns the underlying redis client
func (c *Connection) Client() *redis.Client {
	return c.client
}

// Ping checks connectivity
func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client
func (c *Connection) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
