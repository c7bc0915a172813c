// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

// Package inference defines the provider interface for structured AI
// inference calls. Providers accept system instructions, a user prompt,
// and an expected response schema, and return the model's JSON output
// together with token usage so callers can meter every call.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Service is the unified interface for inference providers.
// Implementations must be safe for concurrent use.
type Service interface {
	// Name returns the unique identifier for this provider instance.
	// This is used for logging and metrics.
	Name() string

	// Model returns the model identifier the provider calls.
	// Usage metering prices calls against this identifier.
	Model() string

	// Request sends a structured inference request. The schema describes
	// the JSON document the caller expects back; providers embed it in the
	// system instructions so the model responds with parseable JSON.
	Request(ctx context.Context, req Request) (*Result, error)

	// HealthCheck verifies the provider is operational.
	HealthCheck(ctx context.Context) error
}

// Request is a structured inference request.
type Request struct {
	// SystemInstructions frame the model's role for this call.
	SystemInstructions string

	// Prompt is the user-visible content to analyze.
	Prompt string

	// Schema is a JSON description of the expected response document.
	// Optional; when empty the raw text response is returned as-is.
	Schema string

	// MaxTokens caps the response length (0 = provider default).
	MaxTokens int

	// Temperature controls sampling. Negative means provider default;
	// 0.0 is valid and requests deterministic output.
	Temperature float64
}

// Result is a completed inference call.
type Result struct {
	// Raw is the model's response body. When a schema was supplied this
	// is the first JSON document extracted from the response text.
	Raw json.RawMessage

	// Model is the model that actually served the call.
	Model string

	// StopReason reports why generation ended.
	StopReason string

	// Usage is the token accounting for the call.
	Usage UsageStats

	// Latency is the wall-clock duration of the call.
	Latency time.Duration
}

// UsageStats contains token usage for a single inference call.
type UsageStats struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Decode unmarshals the raw response into out.
func (r *Result) Decode(out any) error {
	if len(r.Raw) == 0 {
		return fmt.Errorf("empty inference response")
	}
	if err := json.Unmarshal(r.Raw, out); err != nil {
		return fmt.Errorf("failed to decode inference response: %w", err)
	}
	return nil
}

// APIError represents a provider API error.
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError returns true if this is a rate limit error
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Type == "rate_limit_error"
}

// IsAuthError returns true if this is an authentication error
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Type == "authentication_error"
}

// IsOverloadedError returns true if the API is overloaded
func (e *APIError) IsOverloadedError() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.Type == "overloaded_error"
}

// ExtractJSON returns the first balanced JSON object or array in text.
// Models occasionally wrap their JSON in prose or markdown fences; this
// recovers the document without retrying the call.
func ExtractJSON(text string) (json.RawMessage, error) {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			start = i
			open = text[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no JSON document in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				candidate := json.RawMessage(text[start : i+1])
				if !json.Valid(candidate) {
					return nil, fmt.Errorf("malformed JSON document in response")
				}
				return candidate, nil
			}
		}
	}
	return nil, fmt.Errorf("unterminated JSON document in response")
}
