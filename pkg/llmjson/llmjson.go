// Package llmjson coerces LLM replies into structured JSON values.
//
// A reply reaches the pipeline either as raw text, which may be wrapped in a
// markdown code fence, or as a value a provider already decoded. Normalize
// resolves both shapes once so downstream code only sees parsed values.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMalformedResponse reports a reply that is not a JSON document even
	// after fence stripping.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMissingField reports a parsed reply without the expected top-level key.
	ErrMissingField = errors.New("missing expected field")
)

// Only the outermost fence pair is matched. Fences inside the payload are left alone.
var (
	reLeadingFence  = regexp.MustCompile("(?i)^\\s*```(?:json)?")
	reTrailingFence = regexp.MustCompile("```\\s*$")
)

// Reply is either raw text or an already structured value.
type Reply struct {
	text       string
	value      any
	structured bool
}

// Text wraps a raw text reply.
func Text(s string) Reply {
	return Reply{text: s}
}

// Structured wraps a value that was decoded by the provider.
func Structured(v any) Reply {
	return Reply{value: v, structured: true}
}

// IsStructured reports whether the reply carries a decoded value.
func (r Reply) IsStructured() bool {
	return r.structured
}

// Raw returns the reply text. Structured replies return an empty string.
func (r Reply) Raw() string {
	return r.text
}

// Normalize returns the structured value of a reply.
// Structured replies are returned unchanged. Text replies are fence-stripped
// and parsed strictly; any top-level JSON value is accepted.
func Normalize(r Reply) (any, error) {
	if r.structured {
		return r.value, nil
	}
	return NormalizeText(r.text)
}

// NormalizeText parses a text reply.
func NormalizeText(s string) (any, error) {
	body := StripFences(s)
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return v, nil
}

// StripFences removes a single leading and a single trailing code fence and
// trims surrounding whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = reLeadingFence.ReplaceAllString(s, "")
	s = reTrailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DecodeField decodes the top-level key of a normalized object into out.
// It fails with ErrMissingField when v is not an object or lacks the key.
func DecodeField(v any, key string, out any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %q (reply is %T, not an object)", ErrMissingField, key, v)
	}
	field, ok := obj[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	raw, err := json.Marshal(field)
	if err != nil {
		return fmt.Errorf("re-encode field %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: field %q has unexpected shape: %v", ErrMalformedResponse, key, err)
	}
	return nil
}
