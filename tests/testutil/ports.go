package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/node"
)

// MockChat is a testify mock of integration.Chat.
type MockChat struct {
	mock.Mock
}

func (m *MockChat) SendMessage(ctx context.Context, to integration.Member, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

func (m *MockChat) StartFlow(ctx context.Context, to integration.Member, flow integration.Flow) error {
	return m.Called(ctx, to, flow).Error(0)
}

func (m *MockChat) PutUserData(ctx context.Context, to integration.Member, data map[string]any) error {
	return m.Called(ctx, to, data).Error(0)
}

func (m *MockChat) AddRole(ctx context.Context, to integration.Member, role string) error {
	return m.Called(ctx, to, role).Error(0)
}

func (m *MockChat) NotifySupport(ctx context.Context, subject, body string) error {
	return m.Called(ctx, subject, body).Error(0)
}

// MockCRM is a testify mock of integration.CRM.
type MockCRM struct {
	mock.Mock
}

func (m *MockCRM) TagUser(ctx context.Context, username, email string, tags []string) error {
	return m.Called(ctx, username, email, tags).Error(0)
}

// MockERP is a testify mock of integration.ERP.
type MockERP struct {
	mock.Mock
}

func (m *MockERP) CreateQuotation(ctx context.Context, req integration.QuotationRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockERP) CancelQuotation(ctx context.Context, saleOrderID int64) error {
	return m.Called(ctx, saleOrderID).Error(0)
}

func (m *MockERP) ConfirmQuotation(ctx context.Context, saleOrderID int64) error {
	return m.Called(ctx, saleOrderID).Error(0)
}

func (m *MockERP) NodesForSaleOrder(ctx context.Context, saleOrderID int64) ([]integration.ERPNode, error) {
	args := m.Called(ctx, saleOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ERPNode), args.Error(1)
}

// MockFleet is a testify mock of integration.Fleet.
type MockFleet struct {
	mock.Mock
}

func (m *MockFleet) NodeStatuses(ctx context.Context, ids []string) (map[string]node.Status, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]node.Status), args.Error(1)
}

func (m *MockFleet) Snapshots(ctx context.Context, statuses map[string]node.Status) ([]node.Snapshot, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]node.Snapshot), args.Error(1)
}

// MockStatsStore is a testify mock of integration.NodeStatsStore.
type MockStatsStore struct {
	mock.Mock
}

func (m *MockStatsStore) WriteSnapshots(ctx context.Context, snapshots []node.Snapshot, at time.Time) (int, error) {
	args := m.Called(ctx, snapshots, at)
	return args.Int(0), args.Error(1)
}

func (m *MockStatsStore) QuerySeries(ctx context.Context, q integration.StatsQuery) (map[string][]node.Series, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]node.Series), args.Error(1)
}

// MockDocumentStore is a testify mock of integration.DocumentStore.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Put(ctx context.Context, key string, content []byte, contentType string) error {
	return m.Called(ctx, key, content, contentType).Error(0)
}

func (m *MockDocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentStore) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	args := m.Called(ctx, key, expires)
	return args.String(0), args.Error(1)
}

// MockRenderer is a testify mock of integration.AgreementRenderer.
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) RenderHostingAgreement(ctx context.Context, data integration.HostingAgreement) ([]byte, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// StaticMembers resolves every user to a member built from the username.
type StaticMembers struct {
	AppID string
	Err   error
}

func (s StaticMembers) Member(ctx context.Context, username string) (integration.Member, error) {
	if s.Err != nil {
		return integration.Member{}, s.Err
	}
	return integration.Member{Email: username + "@example.com", AppID: s.AppID}, nil
}
