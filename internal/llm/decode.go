// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks a completion response that could not be parsed into the
// expected structure. The raw text is carried in the error message; callers
// decide between a corrective retry and a fallback.
var ErrMalformed = errors.New("malformed completion output")

// correctiveInstruction is appended to the prompt on the single retry issued
// after a parse failure.
const correctiveInstruction = "Your previous reply could not be parsed. Return ONLY the valid JSON object described above, with no prose, no code fences, and no text outside the JSON."

// Decode parses a completion response into T. It tolerates surrounding prose
// and Markdown code fences by extracting the outermost JSON object or array
// before unmarshaling. A response with no parseable JSON yields ErrMalformed.
func Decode[T any](raw string) (T, error) {
	var out T
	payload := extractJSON(raw)
	if payload == "" {
		return out, fmt.Errorf("%w: no JSON found in %q", ErrMalformed, clip(raw, 200))
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, fmt.Errorf("%w: %v in %q", ErrMalformed, err, clip(raw, 200))
	}
	return out, nil
}

// Structured performs one completion call and parses the response into T.
// On a parse failure it issues exactly one corrective retry with an explicit
// return-only-valid-output instruction. Transport failures and a second parse
// failure are returned to the caller, which applies its stage fallback.
func Structured[T any](ctx context.Context, client Client, req Request) (T, error) {
	var zero T

	raw, err := client.Complete(ctx, req)
	if err != nil {
		return zero, err
	}

	out, err := Decode[T](raw)
	if err == nil {
		return out, nil
	}

	retry := req
	retry.User = req.User + "\n\n" + correctiveInstruction

	raw, err = client.Complete(ctx, retry)
	if err != nil {
		return zero, err
	}
	return Decode[T](raw)
}

// extractJSON returns the outermost {...} or [...] span in raw, or "" when
// neither bracket pair is present.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return ""
	}
	closing := byte('}')
	if raw[start] == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(raw, closing)
	if end <= start {
		return ""
	}
	return raw[start : end+1]
}

// clip shortens s for error messages.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
