package notion

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetDatabase(ctx context.Context, dbID string) (*notionapi.Database, error) {
	args := m.Called(ctx, dbID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Database), args.Error(1)
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func (m *MockClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

var _ Client = (*MockClient)(nil)

func TestNewClient_RateLimit(t *testing.T) {
	c := NewClient("secret").(*apiClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(defaultRPS), c.limiter.Limit())

	c = NewClient("secret", WithRateLimit(0)).(*apiClient)
	assert.Nil(t, c.limiter)

	c = NewClient("secret", WithRateLimit(10)).(*apiClient)
	assert.Equal(t, 10, c.limiter.Burst())
}

func TestThrottled_WrapsError(t *testing.T) {
	c := NewClient("secret", WithRateLimit(0)).(*apiClient)
	_, err := throttled(context.Background(), c, "create page", func() (*notionapi.Page, error) {
		return nil, errors.New("validation_error")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: create page")
	assert.Contains(t, err.Error(), "validation_error")
}

func TestThrottled_CancelledWhileWaiting(t *testing.T) {
	c := NewClient("secret", WithRateLimit(0.001)).(*apiClient)
	require.True(t, c.limiter.Allow(), "drain the single token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := throttled(ctx, c, "query database db-1", func() (int, error) {
		called = true
		return 1, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.False(t, called)
}
