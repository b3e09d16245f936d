package ldap

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvURLs           = "LDAP_URLS"
	EnvBaseDN         = "LDAP_BASEDN"
	EnvUsername       = "LDAP_USERNAME"
	EnvPassword       = "LDAP_PASSWORD"
	EnvSchemaFlavor   = "LDAP_SCHEMA_FLAVOR"
	EnvTimeout        = "LDAP_TIMEOUT"
	EnvMaxConnections = "LDAP_MAX_CONNECTIONS"
	EnvSkipTLSVerify  = "LDAP_SKIP_TLS_VERIFY"
)

// DefaultConfig returns a secure default configuration.
func DefaultConfig() *ConnectionConfig {
	config := &ConnectionConfig{}
	// Only fails on malformed struct tags.
	if err := defaults.Set(config); err != nil {
		panic(fmt.Sprintf("invalid connection config defaults: %v", err))
	}
	config.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return config
}

// LoadConfigFromEnv builds a configuration from the process environment,
// after loading envFile (if non-empty) with godotenv. Variables already set
// in the environment take precedence over the file.
func LoadConfigFromEnv(envFile string) (*ConnectionConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	config := DefaultConfig()

	if v := os.Getenv(EnvURLs); v != "" {
		for u := range strings.SplitSeq(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				config.LDAPURLs = append(config.LDAPURLs, u)
			}
		}
	}
	config.BaseDN = os.Getenv(EnvBaseDN)
	config.Username = os.Getenv(EnvUsername)
	config.Password = os.Getenv(EnvPassword)

	if v := os.Getenv(EnvSchemaFlavor); v != "" {
		config.SchemaFlavor = v
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		config.Timeout = timeout
	}

	if v := os.Getenv(EnvMaxConnections); v != "" {
		maxConns, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxConnections, err)
		}
		config.MaxConnections = maxConns
	}

	if v := os.Getenv(EnvSkipTLSVerify); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSkipTLSVerify, err)
		}
		config.SkipTLSVerify = skip
		config.TLSConfig.InsecureSkipVerify = skip
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func validateConfig(config *ConnectionConfig) error {
	if config == nil {
		return errors.New("configuration cannot be nil")
	}

	if len(config.LDAPURLs) == 0 {
		return errors.New("at least one LDAP URL is required")
	}

	for _, u := range config.LDAPURLs {
		if !strings.HasPrefix(u, "ldap://") && !strings.HasPrefix(u, "ldaps://") {
			return fmt.Errorf("invalid LDAP URL %q: scheme must be ldap or ldaps", u)
		}
	}

	if config.MaxConnections <= 0 {
		return errors.New("max connections must be positive")
	}

	if config.MaxConnections > MaxConnectionPoolLimit {
		return fmt.Errorf("max connections cannot exceed %d", MaxConnectionPoolLimit)
	}

	if config.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if config.SchemaFlavor == "" {
		return errors.New("schema flavor is required")
	}

	return nil
}
