// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate filters raw provider results before they become findings.
// The checks are pure and deterministic: the same raw result checked against
// the same finding-set snapshot always yields the same decision.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meshintel/deepresearch/pkg/types"
)

// Rejection reasons. Callers that only care about accept/reject can treat any
// non-nil error as a rejection.
var (
	ErrNoURL     = errors.New("result has no URL")
	ErrShort     = errors.New("snippet below minimum length")
	ErrLowValue  = errors.New("snippet matches a low-value pattern")
	ErrDuplicate = errors.New("URL already present in finding set")
)

// lowValuePhrases are placeholder texts providers return for inaccessible
// pages. A snippet containing any of them carries no evidence.
var lowValuePhrases = []string{
	"access denied",
	"403 forbidden",
	"404 not found",
	"please enable javascript",
	"enable cookies",
	"just a moment",
	"verify you are human",
	"subscribe to continue",
	"sign in to read",
	"log in to view",
	"purchase this article",
	"paywall",
}

// Validator holds the tunable thresholds for result checks.
type Validator struct {
	// MinSnippetChars is the snippet length floor.
	MinSnippetChars int
}

// New returns a validator with the given snippet floor (default 40).
func New(minSnippetChars int) Validator {
	if minSnippetChars <= 0 {
		minSnippetChars = 40
	}
	return Validator{MinSnippetChars: minSnippetChars}
}

// Check decides whether a raw result qualifies as evidence against the given
// snapshot. A nil return means accept; otherwise the error names the first
// rejection reason that applies. Check never mutates its inputs.
func (v Validator) Check(raw types.RawResult, snap types.Snapshot) error {
	if strings.TrimSpace(raw.URL) == "" {
		return ErrNoURL
	}

	snippet := strings.TrimSpace(raw.Snippet)
	if len(snippet) < v.MinSnippetChars {
		return fmt.Errorf("%w: %d < %d", ErrShort, len(snippet), v.MinSnippetChars)
	}

	lower := strings.ToLower(snippet)
	for _, phrase := range lowValuePhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("%w: %q", ErrLowValue, phrase)
		}
	}

	if snap.Has(raw.URL) {
		return ErrDuplicate
	}
	return nil
}
