package manager

import (
	"context"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/mock"

	"github.com/isometry/ldapom/internal/event"
	ldapclient "github.com/isometry/ldapom/internal/ldap"
	"github.com/isometry/ldapom/internal/object"
	"github.com/isometry/ldapom/internal/schema"
)

// MockClient implements ldapclient.Client for testing manager operations.
type MockClient struct {
	mock.Mock
	flavor string
}

func (m *MockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockClient) Search(ctx context.Context, req *ldapclient.SearchRequest) (*ldapclient.SearchResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*ldapclient.SearchResult)
	return result, args.Error(1)
}

func (m *MockClient) Add(ctx context.Context, req *ldapclient.AddRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockClient) ModifyBatch(ctx context.Context, dn string, changes []ldap.Change) error {
	args := m.Called(ctx, dn, changes)
	return args.Error(0)
}

func (m *MockClient) Delete(ctx context.Context, dn string) error {
	args := m.Called(ctx, dn)
	return args.Error(0)
}

func (m *MockClient) Move(ctx context.Context, dn, rdn, newParent string) error {
	args := m.Called(ctx, dn, rdn, newParent)
	return args.Error(0)
}

func (m *MockClient) SchemaFlavor() string {
	return m.flavor
}

func (m *MockClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Stats() ldapclient.PoolStats {
	args := m.Called()
	return args.Get(0).(ldapclient.PoolStats)
}

// MockQuerier implements Querier.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) SelectSingleAttribute(ctx context.Context, objectType, attribute, dn string) (*object.Object, error) {
	args := m.Called(ctx, objectType, attribute, dn)
	obj, _ := args.Get(0).(*object.Object)
	return obj, args.Error(1)
}

// eventLog records dispatched event kinds.
type eventLog struct {
	kinds []event.Kind
	dns   []string
}

func (l *eventLog) Dispatch(_ context.Context, e event.Event) {
	l.kinds = append(l.kinds, e.Kind)
	l.dns = append(l.dns, e.Object.DN())
}

func newTestManager() (*ObjectManager, *MockClient, *eventLog) {
	client := &MockClient{flavor: schema.FlavorActiveDirectory}
	events := &eventLog{}
	return NewObjectManager(client, schema.DefaultRegistry(), events), client, events
}
