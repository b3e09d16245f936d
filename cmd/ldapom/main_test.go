package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/ldapom/internal/ldap"
)

// fakeClient records write calls and serves searches from entries.
type fakeClient struct {
	flavor  string
	entries map[string]*ldap.Entry

	modified map[string][]ldap.Change
	added    []*ldapclient.AddRequest
	deleted  []string
	moved    [][3]string
	closed   bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		flavor:   "ad",
		entries:  make(map[string]*ldap.Entry),
		modified: make(map[string][]ldap.Change),
	}
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func (c *fakeClient) Search(_ context.Context, req *ldapclient.SearchRequest) (*ldapclient.SearchResult, error) {
	entry, ok := c.entries[req.BaseDN]
	if !ok {
		return &ldapclient.SearchResult{}, nil
	}
	return &ldapclient.SearchResult{Entries: []*ldap.Entry{entry}, Total: 1}, nil
}

func (c *fakeClient) Add(_ context.Context, req *ldapclient.AddRequest) error {
	c.added = append(c.added, req)
	return nil
}

func (c *fakeClient) ModifyBatch(_ context.Context, dn string, changes []ldap.Change) error {
	c.modified[dn] = append(c.modified[dn], changes...)
	return nil
}

func (c *fakeClient) Delete(_ context.Context, dn string) error {
	c.deleted = append(c.deleted, dn)
	return nil
}

func (c *fakeClient) Move(_ context.Context, dn, rdn, newParent string) error {
	c.moved = append(c.moved, [3]string{dn, rdn, newParent})
	return nil
}

func (c *fakeClient) SchemaFlavor() string {
	return c.flavor
}

func (c *fakeClient) Ping(context.Context) error {
	return nil
}

func (c *fakeClient) Stats() ldapclient.PoolStats {
	return ldapclient.PoolStats{}
}

// withFakeClient points the CLI at fake for the duration of the test.
func withFakeClient(t *testing.T, fake *fakeClient) {
	t.Helper()
	t.Setenv(ldapclient.EnvURLs, "ldap://dc1.example.com")
	t.Setenv(ldapclient.EnvSchemaFlavor, fake.flavor)
	t.Setenv(EnvAuditDBURL, "")

	original := newClient
	newClient = func(context.Context, *ldapclient.ConnectionConfig) (ldapclient.Client, error) {
		return fake, nil
	}
	t.Cleanup(func() { newClient = original })
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"ldapom"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage: ldapom")

	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Commands:")

	code, _, stderr = runCLI(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestRun_ArgumentCounts(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)

	tests := [][]string{
		{"delete"},
		{"delete", "cn=a,dc=example,dc=com", "extra"},
		{"move", "cn=a,dc=example,dc=com"},
		{"clear", "cn=a,dc=example,dc=com"},
		{"add", "cn=a,dc=example,dc=com", "mail"},
		{"show"},
	}

	for _, args := range tests {
		code, _, stderr := runCLI(t, args...)
		assert.Equal(t, 1, code, args)
		assert.Contains(t, stderr, "Usage: ldapom "+args[0], args)
	}

	assert.False(t, fake.closed, "no session is opened for bad arguments")
}

func TestRun_Help(t *testing.T) {
	code, _, stderr := runCLI(t, "set", "-h")
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "-type")
}

func TestRun_Set(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)
	dn := "cn=Alice,ou=People,dc=example,dc=com"

	code, _, stderr := runCLI(t, "set", "-type", "user", dn, "emailAddress", "alice@example.com")

	require.Equal(t, 0, code, stderr)
	assert.Equal(t, []ldap.Change{
		{Operation: ldap.ReplaceAttribute, Modification: ldap.PartialAttribute{Type: "mail", Vals: []string{"alice@example.com"}}},
	}, fake.modified[dn])
	assert.True(t, fake.closed)
}

func TestRun_AddRemoveClearRaw(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)
	dn := "cn=Staff,ou=Groups,dc=example,dc=com"
	member := "cn=Alice,ou=People,dc=example,dc=com"

	for _, args := range [][]string{
		{"add", dn, "member", member},
		{"remove", dn, "member", member},
		{"clear", dn, "description"},
	} {
		code, _, stderr := runCLI(t, args...)
		require.Equal(t, 0, code, stderr)
	}

	assert.Equal(t, []ldap.Change{
		{Operation: ldap.AddAttribute, Modification: ldap.PartialAttribute{Type: "member", Vals: []string{member}}},
		{Operation: ldap.DeleteAttribute, Modification: ldap.PartialAttribute{Type: "member", Vals: []string{member}}},
		{Operation: ldap.DeleteAttribute, Modification: ldap.PartialAttribute{Type: "description"}},
	}, fake.modified[dn])
}

func TestRun_Create(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)
	dn := "ou=Sales,dc=example,dc=com"

	code, _, stderr := runCLI(t, "create", "-type", "ou", dn, "name=Sales", "description=Sales team")

	require.Equal(t, 0, code, stderr)
	require.Len(t, fake.added, 1)
	assert.Equal(t, dn, fake.added[0].DN)
	assert.Equal(t, map[string][]string{
		"ou":          {"Sales"},
		"description": {"Sales team"},
		"objectClass": {"top", "organizationalUnit"},
	}, fake.added[0].Attributes)
}

func TestRun_CreateBadAssignment(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)

	code, _, stderr := runCLI(t, "create", "ou=Sales,dc=example,dc=com", "Sales")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "expected attribute=value")
	assert.Empty(t, fake.added)
}

func TestRun_Delete(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)

	code, _, stderr := runCLI(t, "delete", "cn=Alice,dc=example,dc=com")

	require.Equal(t, 0, code, stderr)
	assert.Equal(t, []string{"cn=Alice,dc=example,dc=com"}, fake.deleted)
}

func TestRun_Move(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)
	dn := "cn=Smith\\, John,ou=Old,dc=example,dc=com"
	fake.entries[dn] = ldap.NewEntry(dn, map[string][]string{"cn": {"Smith, John"}})

	code, _, stderr := runCLI(t, "move", "-type", "user", dn, "ou=New,dc=example,dc=com")

	require.Equal(t, 0, code, stderr)
	assert.Equal(t, [][3]string{{dn, `cn=Smith\, John`, "ou=New,dc=example,dc=com"}}, fake.moved)
}

func TestRun_MoveRequiresType(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)

	code, _, stderr := runCLI(t, "move", "cn=a,dc=example,dc=com", "ou=New,dc=example,dc=com")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "move requires -type")
	assert.Empty(t, fake.moved)
}

func TestRun_MoveMissingEntry(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)

	code, _, stderr := runCLI(t, "move", "-type", "user", "cn=ghost,dc=example,dc=com", "ou=New,dc=example,dc=com")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
	assert.Empty(t, fake.moved)
}

func TestRun_Show(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)
	dn := "cn=Alice,ou=People,dc=example,dc=com"
	fake.entries[dn] = ldap.NewEntry(dn, map[string][]string{
		"cn":   {"Alice"},
		"mail": {"alice@example.com"},
	})

	code, stdout, stderr := runCLI(t, "show", "-type", "user", dn, "Mail", "name")

	require.Equal(t, 0, code, stderr)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, map[string]any{
		"dn":   dn,
		"name": "Alice",
		"Mail": "alice@example.com",
	}, got)
}

func TestRun_ShowNotFound(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)

	code, _, stderr := runCLI(t, "show", "cn=ghost,dc=example,dc=com")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "entry not found")
}

func TestRun_UnknownType(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)

	code, _, stderr := runCLI(t, "delete", "-type", "printer", "cn=a,dc=example,dc=com")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no schema registered")
	assert.Empty(t, fake.deleted)
}

func TestRun_EnvFile(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)
	require.NoError(t, os.Unsetenv(ldapclient.EnvURLs))

	path := filepath.Join(t.TempDir(), "ldapom.env")
	require.NoError(t, os.WriteFile(path, []byte("LDAP_URLS=ldaps://dc2.example.com\n"), 0o600))

	var seen *ldapclient.ConnectionConfig
	newClient = func(_ context.Context, config *ldapclient.ConnectionConfig) (ldapclient.Client, error) {
		seen = config
		return fake, nil
	}

	code, _, stderr := runCLI(t, "delete", "-env", path, "cn=a,dc=example,dc=com")

	require.Equal(t, 0, code, stderr)
	require.NotNil(t, seen)
	assert.Equal(t, []string{"ldaps://dc2.example.com"}, seen.LDAPURLs)
}

func TestRun_ClientError(t *testing.T) {
	fake := newFakeClient()
	withFakeClient(t, fake)
	newClient = func(context.Context, *ldapclient.ConnectionConfig) (ldapclient.Client, error) {
		return nil, errors.New("failed to create connection pool: at least one LDAP URL is required")
	}

	code, _, stderr := runCLI(t, "delete", "cn=a,dc=example,dc=com")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "failed to create connection pool")
}
