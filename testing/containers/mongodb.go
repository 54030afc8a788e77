//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/querybricks/config"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// MustStartMongoDB starts mongo (8.0 unless opts says otherwise) as a single-node replica
// set and fails t when it cannot. The container is terminated when t finishes.
func MustStartMongoDB(ctx context.Context, t *testing.T, opts *Options) *Container {
	t.Helper()
	requireDocker(ctx, t)
	o := opts.withDefaults("8.0")

	customizers := []testcontainers.ContainerCustomizer{
		mongodb.WithUsername(o.Username),
		mongodb.WithPassword(o.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Waiting for connections").WithStartupTimeout(o.StartupTimeout),
		),
	}
	if o.ReplicaSet != "" {
		customizers = append(customizers, mongodb.WithReplicaSet(o.ReplicaSet))
	}

	ctr, err := mongodb.Run(ctx, "mongo:"+o.ImageTag, customizers...)
	if err != nil {
		t.Fatalf("failed to start MongoDB container: %v", err)
	}

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		t.Fatalf("failed to get MongoDB connection string: %v", err)
	}

	return started(t, "MongoDB", ctr, config.DatabaseConfig{
		Type:             dbtypes.MongoDB,
		ConnectionString: uri,
		Database:         o.Database,
	})
}
