//go:build integration

// Package containers starts throwaway database servers for integration tests.
// Every helper skips the calling test when no Docker daemon is reachable.
package containers

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/logger"
	testconsts "github.com/gaborage/querybricks/testing"
)

var connectionFilter = logger.NewSensitiveDataFilter(nil)

// Options tunes a container. Zero fields take the defaults of the backend.
type Options struct {
	ImageTag string
	Username string
	Password string
	Database string

	// ReplicaSet applies to MongoDB only and defaults to "rs0"; MongoDB transactions need
	// one. NoReplicaSet starts a standalone server.
	ReplicaSet   string
	NoReplicaSet bool

	StartupTimeout time.Duration
}

func (o *Options) withDefaults(imageTag string) Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.ImageTag == "" {
		out.ImageTag = imageTag
	}
	if out.Username == "" {
		out.Username = testconsts.TestUsername
	}
	if out.Password == "" {
		out.Password = testconsts.TestPasswordDefault
	}
	if out.Database == "" {
		out.Database = testconsts.TestDatabaseName
	}
	if out.ReplicaSet == "" && !out.NoReplicaSet {
		out.ReplicaSet = "rs0"
	}
	if out.StartupTimeout == 0 {
		out.StartupTimeout = time.Minute
	}
	return out
}

// Container is a running database server and the settings to reach it.
type Container struct {
	name      string
	cfg       config.DatabaseConfig
	container testcontainers.Container
}

// DatabaseConfig returns a fresh copy of the connection settings, safe to modify.
func (c *Container) DatabaseConfig() *config.DatabaseConfig {
	cfg := c.cfg
	return &cfg
}

// ConnectionString returns the DSN or URI of the server.
func (c *Container) ConnectionString() string {
	return c.cfg.ConnectionString
}

// Terminate stops and removes the container.
func (c *Container) Terminate(ctx context.Context) error {
	if c == nil || c.container == nil {
		return nil
	}
	return c.container.Terminate(ctx)
}

// started wraps a running container and registers its teardown on t.
func started(t *testing.T, name string, ctr testcontainers.Container, cfg config.DatabaseConfig) *Container {
	t.Helper()
	c := &Container{name: name, cfg: cfg, container: ctr}
	t.Logf("%s container started at %s", name, connectionFilter.FilterString("connection", cfg.ConnectionString))
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate %s container: %v", name, err)
		}
	})
	return c
}

// requireDocker skips t when no Docker daemon answers.
func requireDocker(ctx context.Context, t *testing.T) {
	t.Helper()
	provider, err := testcontainers.NewDockerProvider()
	if err == nil {
		defer provider.Close()
		_, err = provider.DaemonHost(ctx)
	}
	if err != nil {
		t.Skip("Docker is not available - skipping integration test")
	}
}
