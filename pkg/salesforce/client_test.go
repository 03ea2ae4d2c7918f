package salesforce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// mockClient implements Client for testing.
type mockClient struct {
	queryFn            func(ctx context.Context, soql string, out any) error
	insertOneFn        func(ctx context.Context, sObjectName string, record map[string]any) (string, error)
	insertCollectionFn func(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
	updateOneFn        func(ctx context.Context, sObjectName string, id string, fields map[string]any) error
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	if m.queryFn != nil {
		return m.queryFn(ctx, soql, out)
	}
	return nil
}

func (m *mockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	if m.insertOneFn != nil {
		return m.insertOneFn(ctx, sObjectName, record)
	}
	return "001000000000001", nil
}

func (m *mockClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	if m.insertCollectionFn != nil {
		return m.insertCollectionFn(ctx, sObjectName, records)
	}
	results := make([]CollectionResult, len(records))
	for i := range records {
		results[i] = CollectionResult{ID: "001" + string(rune('A'+i)), Success: true}
	}
	return results, nil
}

func (m *mockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	if m.updateOneFn != nil {
		return m.updateOneFn(ctx, sObjectName, id, fields)
	}
	return nil
}

var _ Client = (*mockClient)(nil)

func TestWithRateLimit(t *testing.T) {
	c := NewClient(nil).(*restClient)
	assert.Nil(t, c.limiter, "unthrottled by default")

	c = NewClient(nil, WithRateLimit(5)).(*restClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(5), c.limiter.Limit())
	assert.Equal(t, 5, c.limiter.Burst())

	c = NewClient(nil, WithRateLimit(0.5)).(*restClient)
	assert.Equal(t, 1, c.limiter.Burst())

	c = NewClient(nil, WithRateLimit(5), WithRateLimit(-1)).(*restClient)
	assert.Nil(t, c.limiter)
}

func TestLimited_CancelledContext(t *testing.T) {
	c := &restClient{limiter: rate.NewLimiter(rate.Every(time.Hour), 0)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := limited(ctx, c, func() (string, error) {
		called = true
		return "001", nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: rate limit")
	assert.False(t, called)
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate("{Message:Use one of these records? StatusCode:DUPLICATES_DETECTED}"))
	assert.True(t, isDuplicate("DUPLICATE_VALUE: duplicate value found: Website__c"))
	assert.True(t, isDuplicate("Duplicate value found: Email"))
	assert.False(t, isDuplicate("REQUIRED_FIELD_MISSING: LastName"))
}

func TestConnect_RequiresCredentials(t *testing.T) {
	_, err := Connect(JWTConfig{LoginURL: "https://login.salesforce.com", Username: "ops@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client id, username, and key are required")
}
