package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Connection pool limits.
const (
	// MaxConnectionPoolLimit is the maximum allowed connections in a pool.
	MaxConnectionPoolLimit = 100
)

// ErrPoolClosed is returned by Get after the pool has been closed.
var ErrPoolClosed = errors.New("connection pool is closed")

// dialFunc opens an unauthenticated connection to url.
type dialFunc func(url string, config *ConnectionConfig) (*ldap.Conn, error)

// connectionPool implements ConnectionPool interface.
type connectionPool struct {
	ctx         context.Context // Logging context with LDAP subsystem
	config      *ConnectionConfig
	connections chan *PooledConnection
	slots       chan struct{}
	dial        dialFunc
	mu          sync.RWMutex
	closed      bool

	// Statistics
	activeConns  int64
	totalCreated int64
	totalErrors  int64
	startTime    time.Time
}

// NewConnectionPool creates a new connection pool. Connections are dialed
// lazily on first use.
func NewConnectionPool(ctx context.Context, config *ConnectionConfig) (ConnectionPool, error) {
	return newConnectionPool(ctx, config, dialURL)
}

func newConnectionPool(ctx context.Context, config *ConnectionConfig, dial dialFunc) (*connectionPool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool := &connectionPool{
		ctx:         ctx,
		config:      config,
		connections: make(chan *PooledConnection, config.MaxConnections),
		slots:       make(chan struct{}, config.MaxConnections),
		dial:        dial,
		startTime:   time.Now(),
	}

	LogPoolEvent(ctx, "pool_initialized", map[string]any{
		"max_connections": config.MaxConnections,
		"urls":            config.LDAPURLs,
	})

	return pool, nil
}

// Get retrieves an idle connection or dials a new one while under the pool limit.
func (p *connectionPool) Get(ctx context.Context) (*PooledConnection, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	for {
		select {
		case conn := <-p.connections:
			if p.isConnectionHealthy(conn) {
				atomic.AddInt64(&p.activeConns, 1)
				LogPoolEvent(p.ctx, "connection_acquired", map[string]any{"url": conn.url})
				return conn, nil
			}
			p.closeConnection(conn)
			continue
		default:
		}

		select {
		case conn := <-p.connections:
			if p.isConnectionHealthy(conn) {
				atomic.AddInt64(&p.activeConns, 1)
				return conn, nil
			}
			p.closeConnection(conn)
		case p.slots <- struct{}{}:
			conn, err := p.createConnection(ctx)
			if err != nil {
				<-p.slots
				return nil, err
			}
			atomic.AddInt64(&p.activeConns, 1)
			return conn, nil
		case <-ctx.Done():
			LogPoolEvent(p.ctx, "pool_exhausted", map[string]any{"error": ctx.Err().Error()})
			return nil, ctx.Err()
		}
	}
}

// createConnection dials the configured URLs in order and binds the first that answers.
func (p *connectionPool) createConnection(ctx context.Context) (*PooledConnection, error) {
	var lastErr error

	for _, url := range p.config.LDAPURLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		conn, err := p.dial(url, p.config)
		if err != nil {
			atomic.AddInt64(&p.totalErrors, 1)
			LogConnectionEvent(p.ctx, "connection_failed", map[string]any{
				"url":         url,
				"error":       err.Error(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			lastErr = err
			continue
		}

		if p.config.Username != "" {
			if err := conn.Bind(p.config.Username, p.config.Password); err != nil {
				atomic.AddInt64(&p.totalErrors, 1)
				_ = conn.Close()
				LogConnectionEvent(p.ctx, "authentication_failed", map[string]any{
					"url":      url,
					"username": p.config.Username,
					"error":    err.Error(),
				})
				// Credentials are the same for every URL.
				return nil, NewLDAPError("bind", err)
			}
		}

		atomic.AddInt64(&p.totalCreated, 1)
		LogConnectionEvent(p.ctx, "connection_established", map[string]any{
			"url":         url,
			"duration_ms": time.Since(start).Milliseconds(),
		})

		return &PooledConnection{
			conn:         conn,
			url:          url,
			lastUsed:     time.Now(),
			returnToPool: p.returnConnection,
		}, nil
	}

	return nil, NewConnectionError("all LDAP servers unreachable", true, lastErr)
}

// dialURL is the production dialFunc.
func dialURL(url string, config *ConnectionConfig) (*ldap.Conn, error) {
	tlsConfig := config.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if config.SkipTLSVerify {
		tlsConfig = tlsConfig.Clone()
		tlsConfig.InsecureSkipVerify = true
	}

	conn, err := ldap.DialURL(url,
		ldap.DialWithDialer(&net.Dialer{Timeout: config.Timeout}),
		ldap.DialWithTLSConfig(tlsConfig),
	)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(config.Timeout)

	return conn, nil
}

func (p *connectionPool) returnConnection(conn *PooledConnection) {
	atomic.AddInt64(&p.activeConns, -1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || !p.isConnectionHealthy(conn) {
		p.closeConnection(conn)
		return
	}

	conn.lastUsed = time.Now()
	select {
	case p.connections <- conn:
		LogPoolEvent(p.ctx, "connection_released", map[string]any{"url": conn.url})
	default:
		p.closeConnection(conn)
	}
}

func (p *connectionPool) isConnectionHealthy(conn *PooledConnection) bool {
	if conn == nil || conn.conn == nil || conn.conn.IsClosing() {
		return false
	}
	return p.config.MaxIdleTime <= 0 || time.Since(conn.lastUsed) < p.config.MaxIdleTime
}

// closeConnection closes conn and frees its slot.
func (p *connectionPool) closeConnection(conn *PooledConnection) {
	if conn != nil && conn.conn != nil {
		_ = conn.conn.Close()
	}
	select {
	case <-p.slots:
	default:
	}
}

// Close closes all idle connections; in-use connections are closed when returned.
func (p *connectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case conn := <-p.connections:
			p.closeConnection(conn)
		default:
			tflog.SubsystemDebug(p.ctx, SubsystemLDAP, "Connection pool closed", map[string]any{
				"uptime": time.Since(p.startTime).String(),
			})
			return nil
		}
	}
}

// Stats returns pool statistics.
func (p *connectionPool) Stats() PoolStats {
	return PoolStats{
		Idle:    len(p.connections),
		Active:  atomic.LoadInt64(&p.activeConns),
		Created: atomic.LoadInt64(&p.totalCreated),
		Errors:  atomic.LoadInt64(&p.totalErrors),
		Uptime:  time.Since(p.startTime),
	}
}

// Close returns the connection to its pool.
func (pc *PooledConnection) Close() {
	if pc.returnToPool != nil {
		pc.returnToPool(pc)
	}
}

func (pc *PooledConnection) Conn() *ldap.Conn {
	return pc.conn
}

func (pc *PooledConnection) URL() string {
	return pc.url
}

func (pc *PooledConnection) LastUsed() time.Time {
	return pc.lastUsed
}
