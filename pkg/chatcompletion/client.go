// Package chatcompletion is a client for OpenAI-compatible chat completion
// endpoints, including Azure OpenAI deployments.
package chatcompletion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client performs chat completions.
type Client interface {
	ChatCompletion(ctx context.Context, req Request) (*Response, error)
}

// Request is the body for POST /chat/completions.
type Request struct {
	Model          string          `json:"model,omitempty"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat selects structured output; "json_object" forces JSON.
type ResponseFormat struct {
	Type string `json:"type"`
}

// JSONObject requests JSON-mode output.
var JSONObject = &ResponseFormat{Type: "json_object"}

// Message is a single message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the body returned by POST /chat/completions.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Content returns the first choice's message content.
func (r *Response) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice is a single completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithAzure routes requests to an Azure OpenAI deployment.
func WithAzure(deployment, apiVersion string) Option {
	return func(c *httpClient) {
		c.deployment = deployment
		c.apiVersion = apiVersion
	}
}

// WithModel sets the model used when a request leaves it empty.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy.
func WithRetry(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	model      string
	deployment string
	apiVersion string
	http       *http.Client
	retry      resilience.Policy
}

// NewClient creates a chat completion client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: resilience.DefaultPolicy("chatcompletion"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) endpoint() string {
	if c.deployment == "" {
		return c.baseURL + "/chat/completions"
	}
	u := c.baseURL + "/openai/deployments/" + url.PathEscape(c.deployment) + "/chat/completions"
	if c.apiVersion != "" {
		u += "?api-version=" + url.QueryEscape(c.apiVersion)
	}
	return u
}

func (c *httpClient) ChatCompletion(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" && c.deployment == "" {
		req.Model = c.model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "chatcompletion: marshal request")
	}

	respBody, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "chatcompletion: create request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.deployment != "" {
			httpReq.Header.Set("api-key", c.apiKey)
		} else {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, eris.Wrap(err, "chatcompletion: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "chatcompletion: read response")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &resilience.StatusError{Service: "chatcompletion", Code: resp.StatusCode, Body: string(b)}
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "chatcompletion: unmarshal response")
	}
	return &result, nil
}
