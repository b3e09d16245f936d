package ldap

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// ConnectionConfig holds configuration for LDAP connections.
type ConnectionConfig struct {
	// Connection settings
	LDAPURLs     []string      // LDAP URLs, tried in order
	BaseDN       string        // Base DN for searches
	SchemaFlavor string        `default:"ad"`  // Schema dialect used to map attributes
	Timeout      time.Duration `default:"30s"` // Dial and request timeout

	// Authentication settings
	Username string // Bind DN or UPN for simple bind
	Password string // Password for simple bind

	// TLS settings
	TLSConfig     *tls.Config // Custom TLS configuration
	SkipTLSVerify bool        // Disable certificate verification (not recommended)

	// Pool settings
	MaxConnections int           `default:"10"` // Maximum connections in pool
	MaxIdleTime    time.Duration `default:"5m"` // Idle connections older than this are redialed

	// Retry settings, applied to searches only
	MaxRetries     int           `default:"3"`
	InitialBackoff time.Duration `default:"500ms"`
	MaxBackoff     time.Duration `default:"30s"`
	BackoffFactor  float64       `default:"2.0"`
}

// PooledConnection represents a connection in the pool.
type PooledConnection struct {
	conn         *ldap.Conn
	url          string
	lastUsed     time.Time
	returnToPool func(*PooledConnection)
}

// ConnectionPool manages a pool of LDAP connections.
type ConnectionPool interface {
	// Get retrieves a connection from the pool
	Get(ctx context.Context) (*PooledConnection, error)

	// Close closes all connections and shuts down the pool
	Close() error

	// Stats returns pool statistics
	Stats() PoolStats
}

// PoolStats provides statistics about the connection pool.
type PoolStats struct {
	Idle    int           // Idle connections
	Active  int64         // Active (in-use) connections
	Created int64         // Total connections created
	Errors  int64         // Total connection errors
	Uptime  time.Duration // Pool uptime
}

// Client is the directory transport consumed by the object manager.
type Client interface {
	Close() error

	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)
	Add(ctx context.Context, req *AddRequest) error

	// ModifyBatch applies changes to dn in a single modify request, in order.
	ModifyBatch(ctx context.Context, dn string, changes []ldap.Change) error
	Delete(ctx context.Context, dn string) error

	// Move renames dn to rdn and relocates it below newParent.
	Move(ctx context.Context, dn, rdn, newParent string) error

	// SchemaFlavor names the schema dialect the directory speaks.
	SchemaFlavor() string

	Ping(ctx context.Context) error
	Stats() PoolStats
}

// SearchRequest encapsulates LDAP search parameters.
type SearchRequest struct {
	BaseDN     string
	Scope      SearchScope
	Filter     string
	Attributes []string
	SizeLimit  int
	TimeLimit  time.Duration
}

// SearchResult contains search results and metadata.
type SearchResult struct {
	Entries []*ldap.Entry
	Total   int
	HasMore bool
}

// AddRequest encapsulates LDAP add parameters.
type AddRequest struct {
	DN         string
	Attributes map[string][]string
}

// SearchScope defines LDAP search scope.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// RetryableError indicates an error that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
}

// ConnectionError represents connection-related errors.
type ConnectionError struct {
	message   string
	retryable bool
	cause     error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *ConnectionError) IsRetryable() bool {
	return e.retryable
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, retryable bool, cause error) *ConnectionError {
	return &ConnectionError{
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}
