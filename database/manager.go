package database

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/logger"
)

// ConfigSource provides per-name connection configurations.
type ConfigSource interface {
	// DBConfig returns the configuration of the named connection. Unknown names yield a
	// not-configured error.
	DBConfig(ctx context.Context, name string) (*config.DatabaseConfig, error)

	// DefaultName is the connection used when a caller asks for "".
	DefaultName() string
}

type databasesSource struct {
	cfg *config.DatabasesConfig
}

// NewConfigSource serves connection settings from the database section of the config.
func NewConfigSource(cfg *config.DatabasesConfig) ConfigSource {
	return &databasesSource{cfg: cfg}
}

func (s *databasesSource) DBConfig(_ context.Context, name string) (*config.DatabaseConfig, error) {
	cfg, ok := s.cfg.Connection(name)
	if !ok {
		path := "database.connections." + name
		env := "QB_" + strings.ToUpper(strings.ReplaceAll(path, ".", "_")) + "_TYPE"
		return nil, config.NewNotConfiguredError(path, env, path+".type")
	}
	return &cfg, nil
}

func (s *databasesSource) DefaultName() string {
	return s.cfg.Default
}

// Manager manages database connections by name.
// It provides lazy initialization, LRU eviction, and cleanup of idle connections.
type Manager struct {
	logger    logger.Logger
	source    ConfigSource
	connector Connector

	// Connection management
	mu    sync.RWMutex
	conns map[string]*dbEntry

	// LRU management
	lru     *list.List
	maxSize int

	// Cleanup management
	idleTTL   time.Duration
	cleanupMu sync.Mutex
	cleanupCh chan struct{}

	// Singleflight for concurrent initialization
	sfg singleflight.Group
}

// dbEntry represents a database connection with metadata
type dbEntry struct {
	conn     Connection
	element  *list.Element // for LRU
	lastUsed time.Time
	name     string
	vendor   string
}

// ManagerOptions configures the Manager
type ManagerOptions struct {
	MaxSize int           // Maximum number of open connections (default 16)
	IdleTTL time.Duration // Idle time after which cleanup closes a connection (default 30m)

	// Connector replaces the default NewConnection, mostly for tests.
	Connector Connector
	// Tracking is passed to NewConnection when no Connector is set.
	Tracking []TrackingOption
}

// NewManager creates a new database manager
func NewManager(source ConfigSource, log logger.Logger, opts ManagerOptions) *Manager {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 16
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}

	connector := opts.Connector
	if connector == nil {
		tracking := opts.Tracking
		connector = func(cfg *config.DatabaseConfig, log logger.Logger) (Connection, error) {
			return NewConnection(cfg, log, tracking...)
		}
	}

	return &Manager{
		logger:    log,
		source:    source,
		connector: connector,
		conns:     make(map[string]*dbEntry),
		lru:       list.New(),
		maxSize:   opts.MaxSize,
		idleTTL:   opts.IdleTTL,
	}
}

// NewManagerFromConfig serves the connections of cfg. The optional keys
// database.manager.size and database.manager.idle.ttl tune the connection cache.
func NewManagerFromConfig(cfg *config.Config, log logger.Logger, tracking ...TrackingOption) *Manager {
	return NewManager(NewConfigSource(&cfg.Database), log, ManagerOptions{
		MaxSize:  cfg.GetInt("database.manager.size"),
		IdleTTL:  cfg.GetDuration("database.manager.idle.ttl"),
		Tracking: tracking,
	})
}

// Get returns the named connection, creating it on first use. An empty name selects
// the default connection.
func (m *Manager) Get(ctx context.Context, name string) (Connection, error) {
	if name == "" {
		name = m.source.DefaultName()
	}

	// Fast path
	if conn := m.getExisting(name); conn != nil {
		return conn, nil
	}

	// Use singleflight to prevent thundering herd on connection creation
	result, err, _ := m.sfg.Do(name, func() (any, error) {
		if conn := m.getExisting(name); conn != nil {
			return conn, nil
		}
		return m.createConnection(ctx, name)
	})
	if err != nil {
		return nil, err
	}

	return result.(Connection), nil
}

// Default returns the default connection.
func (m *Manager) Default(ctx context.Context) (Connection, error) {
	return m.Get(ctx, "")
}

// getExisting returns an existing connection and updates LRU, or nil if not found
func (m *Manager) getExisting(name string) Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.conns[name]
	if !exists {
		return nil
	}

	entry.lastUsed = time.Now()
	m.lru.MoveToFront(entry.element)

	return entry.conn
}

// createConnection creates a new database connection for the given name
func (m *Manager) createConnection(ctx context.Context, name string) (Connection, error) {
	dbConfig, err := m.source.DBConfig(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get database config for connection %q: %w", name, err)
	}

	conn, err := m.connector(dbConfig, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictIfNeeded()

	element := m.lru.PushFront(name)
	m.conns[name] = &dbEntry{
		conn:     conn,
		element:  element,
		lastUsed: time.Now(),
		name:     name,
		vendor:   dbConfig.Type,
	}

	m.logger.Info().
		Str("connection", name).
		Str("db_type", dbConfig.Type).
		Msg("Created new database connection")

	return conn, nil
}

// evictIfNeeded removes the least recently used connection if at capacity
func (m *Manager) evictIfNeeded() {
	if len(m.conns) < m.maxSize {
		return
	}

	oldest := m.lru.Back()
	if oldest == nil {
		return
	}

	name := oldest.Value.(string)
	entry := m.conns[name]

	if err := entry.conn.Close(); err != nil {
		m.logger.Error().
			Err(err).
			Str("connection", name).
			Msg("Error closing evicted database connection")
	}

	delete(m.conns, name)
	m.lru.Remove(oldest)

	m.logger.Debug().
		Str("connection", name).
		Msg("Evicted database connection due to LRU limit")
}

// StartCleanup starts the background cleanup routine for idle connections
func (m *Manager) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m.cleanupMu.Lock()
	if m.cleanupCh != nil {
		m.cleanupMu.Unlock()
		return
	}
	done := make(chan struct{})
	m.cleanupCh = done
	m.cleanupMu.Unlock()

	go m.cleanupLoop(interval, done)
}

// StopCleanup stops the background cleanup routine
func (m *Manager) StopCleanup() {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()
	if m.cleanupCh == nil {
		return
	}
	close(m.cleanupCh)
	m.cleanupCh = nil
}

func (m *Manager) cleanupLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdleConnections()
		case <-done:
			return
		}
	}
}

// cleanupIdleConnections closes connections idle for longer than idleTTL
func (m *Manager) cleanupIdleConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for name, entry := range m.conns {
		idle := now.Sub(entry.lastUsed)
		if idle <= m.idleTTL {
			continue
		}

		if err := entry.conn.Close(); err != nil {
			m.logger.Error().
				Err(err).
				Str("connection", name).
				Msg("Error closing idle database connection")
		}

		delete(m.conns, name)
		m.lru.Remove(entry.element)

		m.logger.Debug().
			Str("connection", name).
			Dur("idle_time", idle).
			Msg("Cleaned up idle database connection")
	}
}

// Close closes all database connections and stops cleanup
func (m *Manager) Close() error {
	m.StopCleanup()

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, entry := range m.conns {
		if err := entry.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing connection %q: %w", name, err))
		}
	}

	m.conns = make(map[string]*dbEntry)
	m.lru.Init()

	return errors.Join(errs...)
}

// Size returns the number of open connections
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Stats returns statistics about the managed connections
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	connections := make([]map[string]any, 0, len(m.conns))
	for name, entry := range m.conns {
		connections = append(connections, map[string]any{
			"name":          name,
			"vendor":        entry.vendor,
			"last_used":     entry.lastUsed.Format(time.RFC3339),
			"idle_duration": int(now.Sub(entry.lastUsed).Seconds()),
		})
	}

	return map[string]any{
		"active_connections": len(m.conns),
		"max_connections":    m.maxSize,
		"idle_ttl_seconds":   int(m.idleTTL.Seconds()),
		"connections":        connections,
	}
}
