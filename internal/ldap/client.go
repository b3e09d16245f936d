package ldap

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// client implements the Client interface.
type client struct {
	pool       ConnectionPool
	config     *ConnectionConfig
	logContext context.Context // Context with configured subsystems for logging
}

// NewClient creates a new LDAP client with connection pooling.
func NewClient(ctx context.Context, config *ConnectionConfig) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Creating new LDAP client", map[string]any{
		"ldap_urls_count": len(config.LDAPURLs),
		"schema_flavor":   config.SchemaFlavor,
		"max_connections": config.MaxConnections,
	})

	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		tflog.SubsystemError(ctx, SubsystemLDAP, "Failed to create connection pool", map[string]any{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &client{
		pool:       pool,
		config:     config,
		logContext: ctx,
	}, nil
}

// getLoggingContext falls back to the context the client was created with,
// which carries the configured subsystem loggers.
func (c *client) getLoggingContext(ctx context.Context) context.Context {
	if ctx == nil {
		return c.logContext
	}
	return ctx
}

func (c *client) Close() error {
	return c.pool.Close()
}

func (c *client) SchemaFlavor() string {
	return c.config.SchemaFlavor
}

// performSearch is a helper function that performs search operations with comprehensive logging.
func (c *client) performSearch(ctx context.Context, operation string, fields map[string]any, searchFunc func() (*SearchResult, error)) (*SearchResult, error) {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Starting search operation", fields)

	result, err := searchFunc()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		tflog.SubsystemError(ctx, SubsystemLDAP, "Search operation failed", fields)
		return nil, err
	}

	fields["entries_found"] = len(result.Entries)
	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Search operation completed successfully", fields)

	return result, nil
}

// Search performs an LDAP search.
func (c *client) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}

	logCtx := c.getLoggingContext(ctx)
	searchFields := map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"attributes": req.Attributes,
		"size_limit": req.SizeLimit,
	}

	return c.performSearch(logCtx, "search", searchFields, func() (*SearchResult, error) {
		ldapReq := ldap.NewSearchRequest(
			req.BaseDN,
			int(req.Scope),
			ldap.NeverDerefAliases,
			req.SizeLimit,
			int(req.TimeLimit.Seconds()),
			false, // TypesOnly
			req.Filter,
			req.Attributes,
			nil,
		)

		var result *ldap.SearchResult
		err := c.withRetry(logCtx, func() error {
			conn, err := c.pool.Get(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			var searchErr error
			result, searchErr = conn.Conn().Search(ldapReq)
			return searchErr
		})
		if err != nil {
			// A missing base object is an empty result, not a failure.
			if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
				return &SearchResult{}, nil
			}
			LogLDAPError(logCtx, SubsystemLDAP, "search", err, searchFields)
			return nil, NewLDAPError("search", err)
		}

		hasMore := req.SizeLimit > 0 && len(result.Entries) >= req.SizeLimit

		return &SearchResult{
			Entries: result.Entries,
			Total:   len(result.Entries),
			HasMore: hasMore,
		}, nil
	})
}

// Add creates a new LDAP entry.
func (c *client) Add(ctx context.Context, req *AddRequest) error {
	if req == nil {
		return fmt.Errorf("add request cannot be nil")
	}

	ldapReq := ldap.NewAddRequest(req.DN, nil)
	for _, attr := range slices.Sorted(maps.Keys(req.Attributes)) {
		ldapReq.Attribute(attr, req.Attributes[attr])
	}

	return c.write(ctx, "add", req.DN, func(conn *ldap.Conn) error {
		return conn.Add(ldapReq)
	})
}

// ModifyBatch sends changes as one modify request, preserving their order.
func (c *client) ModifyBatch(ctx context.Context, dn string, changes []ldap.Change) error {
	if dn == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	ldapReq := ldap.NewModifyRequest(dn, nil)
	ldapReq.Changes = changes

	return c.write(ctx, "modify", dn, func(conn *ldap.Conn) error {
		return conn.Modify(ldapReq)
	})
}

// Move renames and relocates an entry. The old RDN value is removed.
func (c *client) Move(ctx context.Context, dn, rdn, newParent string) error {
	if dn == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	if rdn == "" {
		return fmt.Errorf("new RDN cannot be empty")
	}

	ldapReq := ldap.NewModifyDNRequest(dn, rdn, true, newParent)

	return c.write(ctx, "modify_dn", dn, func(conn *ldap.Conn) error {
		return conn.ModifyDN(ldapReq)
	})
}

// Delete removes an LDAP entry.
func (c *client) Delete(ctx context.Context, dn string) error {
	if dn == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	ldapReq := ldap.NewDelRequest(dn, nil)

	return c.write(ctx, "delete", dn, func(conn *ldap.Conn) error {
		return conn.Del(ldapReq)
	})
}

// write runs a single-attempt write operation. Writes are never retried:
// a batch that failed part-way on the server is not safe to replay.
func (c *client) write(ctx context.Context, operation, dn string, fn func(conn *ldap.Conn) error) error {
	logCtx := c.getLoggingContext(ctx)

	return LogOperation(logCtx, SubsystemLDAP, operation, map[string]any{"dn": dn}, func() error {
		conn, err := c.pool.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to get connection: %w", err)
		}
		defer conn.Close()

		if err := fn(conn.Conn()); err != nil {
			ldapErr := NewLDAPError(operation, err)
			ldapErr.DN = dn
			return ldapErr
		}

		return nil
	})
}

// Ping tests connectivity to the LDAP server.
func (c *client) Ping(ctx context.Context) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	searchReq := ldap.NewSearchRequest(
		"", // Root DSE
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		[]string{"namingContexts"},
		nil,
	)

	_, err = conn.Conn().Search(searchReq)
	return err
}

// Stats returns pool statistics.
func (c *client) Stats() PoolStats {
	return c.pool.Stats()
}

// withRetry executes an operation with retry logic.
func (c *client) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			tflog.SubsystemDebug(ctx, SubsystemLDAP, "Retrying operation", map[string]any{
				"attempt":    attempt,
				"max_retry":  c.config.MaxRetries,
				"backoff_ms": backoff.Milliseconds(),
				"last_error": lastErr.Error(),
			})
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !c.isRetryableError(err) {
			return err
		}

		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*c.config.BackoffFactor), c.config.MaxBackoff)
		}
	}

	tflog.SubsystemError(ctx, SubsystemLDAP, "Operation failed after all retries exhausted", map[string]any{
		"total_attempts": c.config.MaxRetries + 1,
		"final_error":    lastErr.Error(),
	})

	return NewConnectionError("operation failed after retries", false, lastErr)
}

// isRetryableError determines if an error should be retried.
func (c *client) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if ldap.IsErrorWithCode(err, ldap.LDAPResultBusy) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultUnavailable) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultServerDown) ||
		ldap.IsErrorWithCode(err, ldap.ErrorNetwork) {
		return true
	}

	return IsRetryableError(err) || strings.Contains(strings.ToLower(err.Error()), "connection")
}
