package mongodb

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

// Sentinel errors for MongoDB configuration validation
var (
	ErrInvalidReadPreference = errors.New("invalid read preference")
	ErrInvalidWriteConcern   = errors.New("invalid write concern")
)

// Connection is the MongoDB gateway.
type Connection struct {
	executor
	client   *mongo.Client
	compiler *Compiler
	config   *config.DatabaseConfig
	logger   logger.Logger
}

var _ dbtypes.Gateway = (*Connection)(nil)

var (
	connectMongoDB = func(opts *options.ClientOptions) (*mongo.Client, error) {
		return mongo.Connect(opts)
	}
	pingMongoDB = func(ctx context.Context, client *mongo.Client) error {
		return client.Ping(ctx, readpref.Primary())
	}
)

const (
	defaultConnectionTimeout = 10 * time.Second

	// markerCollection materializes a database on CreateDatabase; MongoDB only
	// creates databases on first write.
	markerCollection = "schema_migrations"
)

// NewConnection creates a new MongoDB connection
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (*Connection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectionTimeout)
	defer cancel()

	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	client, err := connectMongoDB(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := pingMongoDB(ctx, client); err != nil {
		if closeErr := client.Disconnect(ctx); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to disconnect MongoDB client after ping failure")
		}
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Str("replica_set", cfg.Mongo.Replica.Set).
		Msg("Connected to MongoDB")

	return newConnection(client, cfg, log), nil
}

func newConnection(client *mongo.Client, cfg *config.DatabaseConfig, log logger.Logger) *Connection {
	return &Connection{
		executor: executor{db: client.Database(cfg.Database)},
		client:   client,
		compiler: NewCompiler(),
		config:   cfg,
		logger:   log,
	}
}

// clientOptions translates the connection settings into driver options.
func clientOptions(cfg *config.DatabaseConfig) (*options.ClientOptions, error) {
	opts := options.Client()

	if cfg.ConnectionString != "" {
		opts.ApplyURI(cfg.ConnectionString)
	} else {
		opts.ApplyURI(buildMongoURI(cfg))
	}

	setConnectionOptions(opts, cfg)

	if err := setReadPreference(opts, cfg.Mongo.Replica.Preference); err != nil {
		return nil, err
	}
	if err := setWriteConcern(opts, cfg.Mongo.Concern.Write); err != nil {
		return nil, err
	}

	if cfg.TLS.Mode != "" {
		tlsConfig, err := buildTLSConfig(cfg.TLS.Mode)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		if tlsConfig != nil {
			opts.SetTLSConfig(tlsConfig)
		}
	}
	return opts, nil
}

// setConnectionOptions sets connection pool options based on configuration
func setConnectionOptions(opts *options.ClientOptions, cfg *config.DatabaseConfig) {
	if cfg.Pool.Max.Connections > 0 {
		opts.SetMaxPoolSize(uint64(cfg.Pool.Max.Connections))
	}
	if cfg.Pool.Idle.Connections > 0 {
		opts.SetMinPoolSize(uint64(cfg.Pool.Idle.Connections))
	}
	if cfg.Pool.Idle.Time > 0 {
		opts.SetMaxConnIdleTime(cfg.Pool.Idle.Time)
	}
}

// setReadPreference sets the read preference in the client options
func setReadPreference(opts *options.ClientOptions, pref string) error {
	if pref != "" {
		rp, err := parseReadPreference(pref)
		if err != nil {
			return fmt.Errorf("invalid read preference: %w", err)
		}
		opts.SetReadPreference(rp)
	}
	return nil
}

// setWriteConcern sets the write concern in the client options
func setWriteConcern(opts *options.ClientOptions, concern string) error {
	if concern != "" {
		wc, err := parseWriteConcern(concern)
		if err != nil {
			return fmt.Errorf("invalid write concern: %w", err)
		}
		opts.SetWriteConcern(wc)
	}
	return nil
}

// buildMongoURI constructs a MongoDB connection URI from configuration
func buildMongoURI(cfg *config.DatabaseConfig) string {
	var uri strings.Builder

	uri.WriteString("mongodb://")

	if cfg.Username != "" {
		uri.WriteString(url.PathEscape(cfg.Username))
		if cfg.Password != "" {
			uri.WriteString(":")
			uri.WriteString(url.PathEscape(cfg.Password))
		}
		uri.WriteString("@")
	}

	uri.WriteString(cfg.Host)
	if cfg.Port > 0 {
		uri.WriteString(fmt.Sprintf(":%d", cfg.Port))
	}

	if cfg.Database != "" {
		uri.WriteString("/")
		uri.WriteString(cfg.Database)
	}

	var params []string
	if cfg.Mongo.Replica.Set != "" {
		params = append(params, "replicaSet="+url.QueryEscape(cfg.Mongo.Replica.Set))
	}
	if cfg.Mongo.Auth.Source != "" {
		params = append(params, "authSource="+url.QueryEscape(cfg.Mongo.Auth.Source))
	}

	if len(params) > 0 {
		uri.WriteString("?")
		uri.WriteString(strings.Join(params, "&"))
	}

	return uri.String()
}

// buildTLSConfig creates a TLS configuration based on the SSL mode
func buildTLSConfig(sslMode string) (*tls.Config, error) {
	switch strings.ToLower(sslMode) {
	case "disable":
		return nil, nil
	case "verify-ca":
		return nil, fmt.Errorf("SSL mode 'verify-ca' is not supported for MongoDB")
	case "verify-full", "require":
		return &tls.Config{
			MinVersion: tls.VersionTLS12,
		}, nil
	default:
		return nil, fmt.Errorf("unknown SSL mode: %s", sslMode)
	}
}

// parseReadPreference converts string to MongoDB read preference
func parseReadPreference(pref string) (*readpref.ReadPref, error) {
	switch strings.ToLower(pref) {
	case "primary":
		return readpref.Primary(), nil
	case "primarypreferred":
		return readpref.PrimaryPreferred(), nil
	case "secondary":
		return readpref.Secondary(), nil
	case "secondarypreferred":
		return readpref.SecondaryPreferred(), nil
	case "nearest":
		return readpref.Nearest(), nil
	default:
		return nil, ErrInvalidReadPreference
	}
}

// parseWriteConcern converts string to MongoDB write concern
func parseWriteConcern(concern string) (*writeconcern.WriteConcern, error) {
	trimmed := strings.TrimSpace(concern)

	switch strings.ToLower(trimmed) {
	case "majority":
		return writeconcern.Majority(), nil
	case "acknowledged":
		return &writeconcern.WriteConcern{W: 1}, nil
	case "unacknowledged":
		return &writeconcern.WriteConcern{W: 0}, nil
	}

	if n, err := strconv.Atoi(trimmed); err == nil && n >= 0 {
		return &writeconcern.WriteConcern{W: n}, nil
	}

	return nil, ErrInvalidWriteConcern
}

// Compiler returns the document compiler paired with this connection.
func (c *Connection) Compiler() expression.Compiler {
	return c.compiler
}

// Begin starts a transaction on a fresh session. Transactions need a replica set.
func (c *Connection) Begin(ctx context.Context) (dbtypes.Scope, error) {
	session, err := c.client.StartSession()
	if err != nil {
		return nil, dbtypes.NewTransactionError("begin", fmt.Errorf("failed to start MongoDB session: %w", err))
	}

	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, dbtypes.NewTransactionError("begin", fmt.Errorf("failed to start MongoDB transaction: %w", err))
	}

	return &Transaction{
		executor: executor{db: c.db, session: session},
		logger:   c.logger,
	}, nil
}

// Health checks MongoDB connection health
func (c *Connection) Health(ctx context.Context) error {
	return pingMongoDB(ctx, c.client)
}

// Close closes the MongoDB connection
func (c *Connection) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectionTimeout)
	defer cancel()

	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	c.logger.Info().Msg("Disconnected from MongoDB")
	return nil
}

// CreateDatabase materializes a database by creating its marker collection.
func (c *Connection) CreateDatabase(ctx context.Context, name string) error {
	db := c.client.Database(name)
	exists, err := collectionExists(ctx, db, markerCollection)
	if err != nil || exists {
		return err
	}
	if err := db.CreateCollection(ctx, markerCollection); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// DropDatabase drops a database and every collection in it.
func (c *Connection) DropDatabase(ctx context.Context, name string) error {
	if err := c.client.Database(name).Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}

// DatabaseExists reports whether the server lists the database.
func (c *Connection) DatabaseExists(ctx context.Context, name string) (bool, error) {
	names, err := c.client.ListDatabaseNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("failed to list databases: %w", err)
	}
	return len(names) > 0, nil
}

// CreateTable creates a collection. Primary key columns other than the identity get a
// unique index.
func (c *Connection) CreateTable(ctx context.Context, name string, columns []dbtypes.ColumnDefinition) error {
	exists, err := collectionExists(ctx, c.db, name)
	if err != nil {
		return err
	}
	if !exists {
		if err := c.db.CreateCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}

	for _, col := range columns {
		if !col.PrimaryKey || col.Name == idField || col.Name == "id" {
			continue
		}
		index := mongo.IndexModel{
			Keys:    bson.D{{Key: col.Name, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
		if _, err := c.db.Collection(name).Indexes().CreateOne(ctx, index); err != nil {
			return fmt.Errorf("failed to create index on %s.%s: %w", name, col.Name, err)
		}
	}
	return nil
}

// DropTable drops a collection. Dropping a missing collection succeeds.
func (c *Connection) DropTable(ctx context.Context, name string) error {
	if err := c.db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

// AlterTable applies field changes to every document. Adding a field is a no-op on a
// schemaless collection.
func (c *Connection) AlterTable(ctx context.Context, name string, changes []dbtypes.TableChange) error {
	coll := c.db.Collection(name)
	for _, change := range changes {
		var update bson.D
		switch change.Kind {
		case dbtypes.AddColumn:
			continue
		case dbtypes.DropColumn:
			update = bson.D{{Key: "$unset", Value: bson.D{{Key: change.Column.Name, Value: ""}}}}
		case dbtypes.RenameColumn:
			if change.NewName == "" {
				return dbtypes.InvalidArgumentf("rename of %q requires a new name", change.Column.Name)
			}
			update = bson.D{{Key: "$rename", Value: bson.D{{Key: change.Column.Name, Value: change.NewName}}}}
		default:
			return dbtypes.InvalidArgumentf("unsupported table change %q", change.Kind)
		}
		if _, err := coll.UpdateMany(ctx, bson.D{}, update); err != nil {
			return fmt.Errorf("failed to alter collection %s: %w", name, err)
		}
	}
	return nil
}

// TableExists reports whether the collection exists.
func (c *Connection) TableExists(ctx context.Context, name string) (bool, error) {
	return collectionExists(ctx, c.db, name)
}

// DropAllTables drops every user collection concurrently.
func (c *Connection) DropAllTables(ctx context.Context) error {
	names, err := c.db.ListCollectionNames(ctx, bson.D{
		{Key: "name", Value: bson.D{{Key: "$not", Value: bson.Regex{Pattern: `^system\.`}}}},
	})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			if err := c.db.Collection(name).Drop(gctx); err != nil {
				return fmt.Errorf("failed to drop collection %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	return len(names) > 0, nil
}

// Client returns the underlying MongoDB client instance
func (c *Connection) Client() *mongo.Client {
	return c.client
}

// Database returns the underlying MongoDB database instance
func (c *Connection) Database() *mongo.Database {
	return c.db
}
