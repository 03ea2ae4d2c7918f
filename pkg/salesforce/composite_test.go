package salesforce

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertContacts_Batches(t *testing.T) {
	var sizes []int
	mock := &mockClient{
		insertCollectionFn: func(_ context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
			assert.Equal(t, "Contact", sObjectName)
			sizes = append(sizes, len(records))
			out := make([]CollectionResult, len(records))
			for i := range out {
				out[i] = CollectionResult{Success: true}
			}
			return out, nil
		},
	}

	results, err := InsertContacts(context.Background(), mock, makeRecords(450))
	require.NoError(t, err)
	assert.Len(t, results, 450)
	assert.Equal(t, []int{200, 200, 50}, sizes)
}

func TestInsertContacts_Empty(t *testing.T) {
	results, err := InsertContacts(context.Background(), &mockClient{}, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInsertContacts_PartialFailure(t *testing.T) {
	calls := 0
	mock := &mockClient{
		insertCollectionFn: func(_ context.Context, _ string, records []map[string]any) ([]CollectionResult, error) {
			calls++
			if calls == 2 {
				return nil, assert.AnError
			}
			return make([]CollectionResult, len(records)), nil
		},
	}

	results, err := InsertContacts(context.Background(), mock, makeRecords(300))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 200-300")
	assert.Len(t, results, 200)
}

func makeRecords(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"LastName": fmt.Sprintf("Contact %d", i)}
	}
	return out
}
