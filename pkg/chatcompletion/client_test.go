package chatcompletion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

func noRetry() Option {
	return WithRetry(resilience.Policy{Attempts: 1})
}

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
		want    string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`,
			want:   `{"ok":true}`,
		},
		{
			name:    "bad_request",
			status:  http.StatusBadRequest,
			body:    `{"error":"nope"}`,
			wantErr: "unexpected status 400",
		},
		{
			name:    "malformed",
			status:  http.StatusOK,
			body:    `{bad`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

				b, _ := io.ReadAll(r.Body)
				var req Request
				require.NoError(t, json.Unmarshal(b, &req))
				assert.Equal(t, "gpt-4o-mini", req.Model)
				require.NotNil(t, req.ResponseFormat)
				assert.Equal(t, "json_object", req.ResponseFormat.Type)

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("key", WithBaseURL(srv.URL), WithModel("gpt-4o-mini"), noRetry())
			resp, err := c.ChatCompletion(context.Background(), Request{
				Messages:       []Message{{Role: "user", Content: "hi"}},
				ResponseFormat: JSONObject,
			})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Content())
		})
	}
}

func TestChatCompletion_AzureDeployment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/leadgen-gpt/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azkey", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("azkey", WithBaseURL(srv.URL), WithAzure("leadgen-gpt", "2024-06-01"), noRetry())
	resp, err := c.ChatCompletion(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Content())
}

func TestChatCompletion_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL),
		WithRetry(resilience.Policy{Attempts: 2, Base: time.Millisecond, Cap: time.Millisecond}))
	resp, err := c.ChatCompletion(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content())
	assert.Equal(t, int32(2), calls.Load())
}

func TestResponse_ContentEmpty(t *testing.T) {
	assert.Empty(t, (&Response{}).Content())
}
