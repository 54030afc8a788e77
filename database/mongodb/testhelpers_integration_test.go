//go:build integration

package mongodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/querybricks/logger"
	"github.com/gaborage/querybricks/testing/containers"
)

// uniqueCollectionName generates a unique collection name for tests to prevent cross-test pollution
func uniqueCollectionName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

// setupTestContainer starts a MongoDB replica set container and returns a connection to it.
// The container is automatically cleaned up when the test finishes.
func setupTestContainer(t *testing.T) (*Connection, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	mongoContainer := containers.MustStartMongoDB(ctx, t, nil)

	conn, err := NewConnection(mongoContainer.DatabaseConfig(), logger.New("disabled", true))
	require.NoError(t, err, "Failed to create MongoDB connection")

	t.Cleanup(func() {
		_ = conn.Close()
	})

	require.NoError(t, conn.Health(ctx), "Failed to ping MongoDB")
	return conn, ctx
}
