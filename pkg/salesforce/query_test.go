package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAccountByWebsite(t *testing.T) {
	t.Run("returns account when found", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "Website LIKE '%taco-place.com%'")
				accounts := out.(*[]Account)
				*accounts = []Account{{ID: "001xx", Name: "Taco Place"}}
				return nil
			},
		}

		acct, err := FindAccountByWebsite(context.Background(), mock, "taco-place.com")
		require.NoError(t, err)
		require.NotNil(t, acct)
		assert.Equal(t, "001xx", acct.ID)
	})

	t.Run("returns nil when none found", func(t *testing.T) {
		acct, err := FindAccountByWebsite(context.Background(), &mockClient{}, "nope.com")
		require.NoError(t, err)
		assert.Nil(t, acct)
	})

	t.Run("wraps query error", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(context.Context, string, any) error { return errors.New("timeout") },
		}
		_, err := FindAccountByWebsite(context.Background(), mock, "x.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "find account by website x.com")
	})
}

func TestFindContactsByAccountID(t *testing.T) {
	mock := &mockClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			assert.Contains(t, soql, "AccountId = '001xx'")
			assert.Contains(t, soql, "SELECT Id, FirstName, LastName, Email")
			contacts := out.(*[]Contact)
			*contacts = []Contact{
				{ID: "003a", LastName: "Lopez", Email: "maria@taco-place.com", AccountID: "001xx"},
				{ID: "003b", LastName: "Direct", Phone: "+15055551234", AccountID: "001xx"},
			}
			return nil
		},
	}

	contacts, err := FindContactsByAccountID(context.Background(), mock, "001xx")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "maria@taco-place.com", contacts[0].Email)
}

func TestEscapeSoql(t *testing.T) {
	assert.Equal(t, `o\'brien.com`, escapeSoql("o'brien.com"))
	assert.Equal(t, `a\\b`, escapeSoql(`a\b`))
}
