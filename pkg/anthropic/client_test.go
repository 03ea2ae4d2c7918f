package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates an sdkClient pointing at a local test server.
func newTestClient(baseURL string) *sdkClient {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
	}
}

func TestSDKClient_CreateMessage_Text(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		system := req["system"].([]any)
		assert.Equal(t, "Respond with JSON only.", system[0].(map[string]any)["text"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":          "msg_test_001",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": `{"industry":"Restaurant"}`}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 1024,
		System:    "Respond with JSON only.",
		Messages:  []Message{UserText("classify tacoplace.com")},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, StopEndTurn, resp.StopReason)
	assert.Equal(t, `{"industry":"Restaurant"}`, resp.Text())
	assert.Empty(t, resp.ToolUses())
	assert.Equal(t, int64(10), resp.Usage.InputTokens)
}

func TestSDKClient_CreateMessage_ToolUse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))

		tools := req["tools"].([]any)
		require.Len(t, tools, 1)
		tool := tools[0].(map[string]any)
		assert.Equal(t, "search_companies", tool["name"])
		schema := tool["input_schema"].(map[string]any)
		assert.Equal(t, []any{"query"}, schema["required"])

		msgs := req["messages"].([]any)
		require.Len(t, msgs, 3)
		last := msgs[2].(map[string]any)["content"].([]any)[0].(map[string]any)
		assert.Equal(t, "tool_result", last["type"])
		assert.Equal(t, "toolu_1", last["tool_use_id"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_tool",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "Searching again."},
				{"type": "tool_use", "id": "toolu_2", "name": "search_companies", "input": map[string]any{"query": "tacos abq"}},
			},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "tool_use",
			"usage":       map[string]any{"input_tokens": 100, "output_tokens": 20},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Tools: []Tool{{
			Name:        "search_companies",
			Description: "Search the web",
			InputSchema: map[string]any{"query": map[string]any{"type": "string"}},
			Required:    []string{"query"},
		}},
		Messages: []Message{
			UserText("find taco shops"),
			{Role: "assistant", Content: []ContentBlock{{
				Type: BlockToolUse, ID: "toolu_1", Name: "search_companies", Input: json.RawMessage(`{"query":"tacos"}`),
			}}},
			{Role: "user", Content: []ContentBlock{ToolResult("toolu_1", `[]`, false)}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StopToolUse, resp.StopReason)
	assert.Equal(t, "Searching again.", resp.Text())
	uses := resp.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "toolu_2", uses[0].ID)
	assert.JSONEq(t, `{"query":"tacos abq"}`, string(uses[0].Input))
}

func TestSDKClient_CreateMessage_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "message": "bad"},
		})
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 16,
		Messages:  []Message{UserText("hi")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.0, u.EstimateCost("claude-sonnet-4-5-20250929"), 1e-9)
	assert.InDelta(t, 6.0, u.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
	assert.Zero(t, u.EstimateCost("unknown"))
	assert.Zero(t, TokenUsage{}.EstimateCost("claude-opus-4-6"))
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 1, OutputTokens: 1}.LogCost("claude-haiku-4-5-20251001", "classify")
	})
}
