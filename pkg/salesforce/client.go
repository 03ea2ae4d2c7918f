// Package salesforce pushes leads to Salesforce as Accounts and Contacts.
package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrDuplicate is returned when an org duplicate rule rejects a record.
var ErrDuplicate = eris.New("sf: duplicate record")

// Client defines the Salesforce API operations used by the lead export.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
	InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error)
	InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
	UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error
}

// CollectionResult is the outcome of a single record in a collection insert.
type CollectionResult struct {
	ID        string   `json:"id"`
	Success   bool     `json:"success"`
	Duplicate bool     `json:"duplicate,omitempty"`
	Errors    []string `json:"errors"`
}

// ClientOption configures the Salesforce client.
type ClientOption func(*restClient)

// WithRateLimit sets requests per second. Zero or less leaves calls unthrottled.
func WithRateLimit(rps float64) ClientOption {
	return func(c *restClient) {
		c.limiter = nil
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// restClient wraps go-salesforce. The library takes no context, so ctx only
// bounds the limiter wait.
type restClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewClient wraps an authenticated go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &restClient{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JWTConfig holds the connected-app settings for the JWT bearer flow.
type JWTConfig struct {
	LoginURL string
	Username string
	ClientID string
	KeyPEM   []byte
}

// Connect authenticates with the JWT bearer flow.
func Connect(cfg JWTConfig, opts ...ClientOption) (Client, error) {
	if cfg.ClientID == "" || cfg.Username == "" || len(cfg.KeyPEM) == 0 {
		return nil, eris.New("sf: client id, username, and key are required")
	}
	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.LoginURL,
		Username:       cfg.Username,
		ConsumerKey:    cfg.ClientID,
		ConsumerRSAPem: string(cfg.KeyPEM),
	})
	if err != nil {
		return nil, eris.Wrap(err, "sf: connect")
	}
	return NewClient(sf, opts...), nil
}

// limited waits for the limiter and then runs fn.
func limited[T any](ctx context.Context, c *restClient, fn func() (T, error)) (T, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, eris.Wrap(err, "sf: rate limit")
		}
	}
	return fn()
}

func (c *restClient) Query(ctx context.Context, soql string, out any) error {
	_, err := limited(ctx, c, func() (struct{}, error) {
		if err := c.sf.Query(soql, out); err != nil {
			return struct{}{}, eris.Wrap(err, "sf: query")
		}
		return struct{}{}, nil
	})
	return err
}

func (c *restClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	return limited(ctx, c, func() (string, error) {
		res, err := c.sf.InsertOne(sObjectName, record)
		if err != nil {
			if isDuplicate(err.Error()) {
				return "", eris.Wrapf(ErrDuplicate, "sf: insert %s: %v", sObjectName, err)
			}
			return "", eris.Wrapf(err, "sf: insert %s", sObjectName)
		}
		if !res.Success {
			msgs, dup := errorMessages(res.Errors)
			if dup {
				return "", eris.Wrapf(ErrDuplicate, "sf: insert %s: %s", sObjectName, strings.Join(msgs, "; "))
			}
			return "", eris.Errorf("sf: insert %s failed: %s", sObjectName, strings.Join(msgs, "; "))
		}
		return res.Id, nil
	})
}

func (c *restClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	return limited(ctx, c, func() ([]CollectionResult, error) {
		res, err := c.sf.InsertCollection(sObjectName, records, maxBatchSize)
		if err != nil {
			return nil, eris.Wrapf(err, "sf: insert collection %s", sObjectName)
		}
		out := make([]CollectionResult, len(res.Results))
		for i, r := range res.Results {
			msgs, dup := errorMessages(r.Errors)
			out[i] = CollectionResult{ID: r.Id, Success: r.Success, Duplicate: dup, Errors: msgs}
		}
		return out, nil
	})
}

func (c *restClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	_, err := limited(ctx, c, func() (struct{}, error) {
		record := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			record[k] = v
		}
		record["Id"] = id
		if err := c.sf.UpdateOne(sObjectName, record); err != nil {
			return struct{}{}, eris.Wrapf(err, "sf: update %s %s", sObjectName, id)
		}
		return struct{}{}, nil
	})
	return err
}

// errorMessages flattens Salesforce record errors and reports whether any
// came from a duplicate rule.
func errorMessages[E any](errs []E) ([]string, bool) {
	var (
		msgs []string
		dup  bool
	)
	for _, e := range errs {
		s := fmt.Sprintf("%+v", e)
		msgs = append(msgs, s)
		dup = dup || isDuplicate(s)
	}
	return msgs, dup
}

func isDuplicate(s string) bool {
	return strings.Contains(s, "DUPLICATES_DETECTED") ||
		strings.Contains(s, "DUPLICATE_VALUE") ||
		strings.Contains(strings.ToLower(s), "duplicate value found")
}
