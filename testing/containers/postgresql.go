//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/querybricks/config"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// MustStartPostgreSQL starts postgres (17-alpine unless opts says otherwise) and fails t
// when it cannot. The container is terminated when t finishes.
func MustStartPostgreSQL(ctx context.Context, t *testing.T, opts *Options) *Container {
	t.Helper()
	requireDocker(ctx, t)
	o := opts.withDefaults("17-alpine")

	ctr, err := postgres.Run(ctx, "postgres:"+o.ImageTag,
		postgres.WithDatabase(o.Database),
		postgres.WithUsername(o.Username),
		postgres.WithPassword(o.Password),
		testcontainers.WithWaitStrategy(
			// postgres restarts once after init
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(o.StartupTimeout),
		),
	)
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		t.Fatalf("failed to get PostgreSQL connection string: %v", err)
	}

	return started(t, "PostgreSQL", ctr, config.DatabaseConfig{
		Type:             dbtypes.PostgreSQL,
		ConnectionString: dsn,
		Database:         o.Database,
	})
}
