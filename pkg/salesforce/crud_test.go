package salesforce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	t.Run("creates with name", func(t *testing.T) {
		var gotObject string
		mock := &mockClient{
			insertOneFn: func(_ context.Context, sObjectName string, record map[string]any) (string, error) {
				gotObject = sObjectName
				assert.Equal(t, "Taco Place", record["Name"])
				return "001new", nil
			},
		}

		id, err := CreateAccount(context.Background(), mock, map[string]any{"Name": "Taco Place"})
		require.NoError(t, err)
		assert.Equal(t, "001new", id)
		assert.Equal(t, "Account", gotObject)
	})

	t.Run("requires name", func(t *testing.T) {
		_, err := CreateAccount(context.Background(), &mockClient{}, map[string]any{"Website": "x.com"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "account Name is required")
	})

	t.Run("wraps insert error", func(t *testing.T) {
		mock := &mockClient{
			insertOneFn: func(context.Context, string, map[string]any) (string, error) {
				return "", assert.AnError
			},
		}
		_, err := CreateAccount(context.Background(), mock, map[string]any{"Name": "X"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sf: create account")
	})
}

func TestUpdateAccount(t *testing.T) {
	var gotID string
	mock := &mockClient{
		updateOneFn: func(_ context.Context, sObjectName, id string, fields map[string]any) error {
			assert.Equal(t, "Account", sObjectName)
			gotID = id
			return nil
		},
	}

	require.NoError(t, UpdateAccount(context.Background(), mock, "001xx", map[string]any{"Industry": "Restaurants"}))
	assert.Equal(t, "001xx", gotID)

	assert.Error(t, UpdateAccount(context.Background(), mock, "", map[string]any{"Industry": "x"}))
	assert.Error(t, UpdateAccount(context.Background(), mock, "001xx", nil))
}

func TestContactRecord(t *testing.T) {
	rec := ContactRecord("001xx", "Maria de la Cruz", "Owner", "maria@taco-place.com", "")
	assert.Equal(t, "001xx", rec["AccountId"])
	assert.Equal(t, "Maria de la", rec["FirstName"])
	assert.Equal(t, "Cruz", rec["LastName"])
	assert.Equal(t, "Owner", rec["Title"])
	assert.NotContains(t, rec, "Phone")

	rec = ContactRecord("001xx", "Direct", "", "", "+15055551234")
	assert.Equal(t, "Direct", rec["LastName"])
	assert.NotContains(t, rec, "FirstName")
	assert.Equal(t, "+15055551234", rec["Phone"])
}
