package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSFClient creates a restClient backed by an httptest server.
func newTestSFClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	sf, err := gosf.Init(gosf.Creds{
		AccessToken: "test-token",
		Domain:      ts.URL,
	},
		gosf.WithValidateAuthentication(false),
		gosf.WithRoundTripper(http.DefaultTransport),
	)
	require.NoError(t, err)
	require.NotNil(t, sf)

	return NewClient(sf)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSFClient_FindAccountByWebsite(t *testing.T) {
	var soql string
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/query")
		soql = r.URL.Query().Get("q")
		writeJSON(w, http.StatusOK, map[string]any{
			"totalSize": 1,
			"done":      true,
			"records": []map[string]any{{
				"attributes": map[string]any{"type": "Account"},
				"Id":         "001taco",
				"Name":       "Taco Place",
				"Website":    "https://tacoplace.com",
				"Industry":   "Restaurants",
			}},
		})
	}))

	acct, err := FindAccountByWebsite(context.Background(), client, "tacoplace.com")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "001taco", acct.ID)
	assert.Equal(t, "Restaurants", acct.Industry)
	assert.Contains(t, soql, "Website LIKE '%tacoplace.com%'")
}

func TestSFClient_QueryError(t *testing.T) {
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, []map[string]any{
			{"message": "unexpected token", "errorCode": "MALFORMED_QUERY"},
		})
	}))

	_, err := FindAccountByWebsite(context.Background(), client, "tacoplace.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: query")
}

func TestSFClient_CreateAccount(t *testing.T) {
	var body map[string]any
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/sobjects/Account")
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, map[string]any{"id": "001new", "success": true, "errors": []any{}})
	}))

	id, err := CreateAccount(context.Background(), client, map[string]any{
		"Name":    "Burrito Barn",
		"Website": "burrito-barn.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "001new", id)
	assert.Equal(t, "Burrito Barn", body["Name"])
	assert.Equal(t, "burrito-barn.com", body["Website"])
}

func TestSFClient_InsertOne_DuplicateRule(t *testing.T) {
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "",
			"success": false,
			"errors": []map[string]any{{
				"message":    "duplicate value found: Website",
				"statusCode": "DUPLICATES_DETECTED",
			}},
		})
	}))

	_, err := client.InsertOne(context.Background(), "Account", map[string]any{"Name": "Taco Place"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate), err.Error())
}

func TestSFClient_InsertOne_Rejected(t *testing.T) {
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "",
			"success": false,
			"errors":  []map[string]any{{"message": "Required fields are missing: [Name]"}},
		})
	}))

	_, err := client.InsertOne(context.Background(), "Account", map[string]any{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicate))
	assert.Contains(t, err.Error(), "insert Account failed")
	assert.Contains(t, err.Error(), "Required fields are missing")
}

func TestSFClient_UpdateAccount(t *testing.T) {
	var body map[string]any
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Contains(t, r.URL.Path, "/sobjects/Account/001taco")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))

	err := UpdateAccount(context.Background(), client, "001taco", map[string]any{"Description": "Family-owned taqueria"})
	require.NoError(t, err)
	assert.Equal(t, "Family-owned taqueria", body["Description"])
}

func TestSFClient_UpdateError(t *testing.T) {
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, []map[string]any{
			{"message": "No such column 'Rating__c'", "errorCode": "INVALID_FIELD"},
		})
	}))

	err := client.UpdateOne(context.Background(), "Account", "001taco", map[string]any{"Rating__c": "Hot"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: update Account 001taco")
}

func TestSFClient_InsertContacts_FlagsDuplicates(t *testing.T) {
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "003maria", "success": true, "errors": []any{}},
			{"id": "", "success": false, "errors": []map[string]any{{
				"message":    "duplicate value found: Email",
				"statusCode": "DUPLICATES_DETECTED",
			}}},
		})
	}))

	results, err := InsertContacts(context.Background(), client, []map[string]any{
		ContactRecord("001taco", "Maria Lopez", "Owner", "maria@tacoplace.com", ""),
		ContactRecord("001taco", "Direct", "", "info@tacoplace.com", ""),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "003maria", results[0].ID)
	assert.False(t, results[1].Success)
	assert.True(t, results[1].Duplicate)
}

func TestSFClient_InsertCollectionError(t *testing.T) {
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, []map[string]any{{"message": "batch error"}})
	}))

	_, err := client.InsertCollection(context.Background(), "Contact", []map[string]any{{"LastName": "Lopez"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: insert collection Contact")
}
