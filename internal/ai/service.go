// Package ai wraps LLM calls behind typed operations that always return a
// usable value. When the model is unconfigured, unreachable, or returns
// garbage, each operation degrades to a deterministic fallback.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/normalize"
	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// Service exposes the enrichment operations. A Service with a nil Completer
// is valid and answers every call with its fallback.
type Service struct {
	completer  Completer
	breaker    *resilience.Breaker
	industries *normalize.IndustryClassifier
}

// Option configures a Service.
type Option func(*Service)

// WithBreaker guards completions with a circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

// WithIndustryClassifier sets the keyword classifier used by fallbacks.
func WithIndustryClassifier(c *normalize.IndustryClassifier) Option {
	return func(s *Service) { s.industries = c }
}

// NewService returns a Service over c, which may be nil.
func NewService(c Completer, opts ...Option) *Service {
	s := &Service{completer: c}
	for _, o := range opts {
		o(s)
	}
	if s.industries == nil {
		s.industries = normalize.NewIndustryClassifier(nil)
	}
	return s
}

// Configured reports whether a model backs the service.
func (s *Service) Configured() bool {
	return s != nil && s.completer != nil
}

// complete runs one completion through the breaker when one is set.
func (s *Service) complete(ctx context.Context, system, user string) (string, error) {
	call := func(ctx context.Context) (string, error) {
		return s.completer.CompleteJSON(ctx, system, user)
	}
	if s.breaker == nil {
		return call(ctx)
	}
	return resilience.Execute(ctx, s.breaker, call)
}

// WithFallback runs call and returns its value, or fallback when the service
// is unconfigured, the circuit is open, or call fails or panics.
func WithFallback[T any](ctx context.Context, s *Service, op string, call func(ctx context.Context) (T, error), fallback T) (out T) {
	log := zap.L().With(zap.String("component", "ai"), zap.String("op", op))
	if !s.Configured() {
		log.Warn("ai not configured, using fallback")
		return fallback
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("ai operation panicked, using fallback", zap.Any("panic", r))
			out = fallback
		}
	}()

	v, err := call(withOp(ctx, op))
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			log.Warn("ai circuit open, using fallback")
		} else {
			log.Error("ai call failed, using fallback", zap.Error(err))
		}
		return fallback
	}
	return v
}

// decodeJSON unmarshals the outermost {...} object found in raw.
func decodeJSON[T any](raw string) (T, error) {
	var v T
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return v, eris.Errorf("ai: no JSON object in response: %.120s", raw)
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return v, eris.Wrap(err, "ai: decode response")
	}
	return v, nil
}

// completeJSON is complete followed by decodeJSON.
func completeJSON[T any](ctx context.Context, s *Service, system, user string) (T, error) {
	raw, err := s.complete(ctx, system, user)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeJSON[T](raw)
}

// cleanList trims, drops empties, dedupes case-insensitively, and caps at limit
// (limit <= 0 means no cap).
func cleanList(in []string, limit int) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.Join(strings.Fields(v), " ")
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
