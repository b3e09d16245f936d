/*
Package ldap provides the directory transport used by the object manager.

# Architecture Overview

The package is organized into a few core components:

  - Client: request execution over a pooled set of connections
  - ConnectionPool: dialing, idle expiry and failover across LDAP URLs
  - LDAPError: categorized errors shared by every layer above the transport
  - DN helpers: RFC 4514 value escaping, RDN construction and DN comparison
  - Logging: tflog subsystems and the Logger interface used by hydrators

# Connection Management

URLs from ConnectionConfig are tried in order until one accepts a
connection. Connections are bound with simple bind when credentials are
configured and are redialed once they have been idle longer than
MaxIdleTime.

Searches are retried with exponential backoff when the failure is
retryable. Writes (add, modify, delete, move) are never retried: a failed
write is returned to the caller unchanged so that pending changes can be
inspected and resent deliberately.

# Configuration

LoadConfigFromEnv reads LDAP_* variables, optionally after loading a .env
file with godotenv. Unset fields take their `default` struct tags via
creasty/defaults.

# Error Handling

The package provides structured error handling through LDAPError:

  - Categorized errors (connection, permission, not found, precondition, schema, conversion)
  - Retryable error classification
  - Server message and result code preservation

# Logging

Each layer logs to its own tflog subsystem (see Subsystems). Subsystems are
registered on the context by the caller; logging without them is a no-op.

# Example Usage

	config, err := ldap.LoadConfigFromEnv(".env")
	if err != nil {
		return err
	}

	client, err := ldap.NewClient(ctx, config)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Search(ctx, &ldap.SearchRequest{
		BaseDN: config.BaseDN,
		Scope:  ldap.ScopeWholeSubtree,
		Filter: "(objectClass=organizationalUnit)",
	})
*/
package ldap
