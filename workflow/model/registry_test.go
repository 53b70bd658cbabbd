package model

import (
	"errors"
	"testing"
)

func TestParseTier(t *testing.T) {
	tier, role, err := ParseTier("tier3_reviewer")
	if err != nil {
		t.Fatalf("ParseTier: %v", err)
	}
	if tier != Tier3 {
		t.Fatalf("expected Tier3, got %v", tier)
	}
	if role != "reviewer" {
		t.Fatalf("expected role %q, got %q", "reviewer", role)
	}
}

func TestParseTierRejectsOutOfRange(t *testing.T) {
	if _, _, err := ParseTier("tier9_x"); err == nil {
		t.Fatalf("expected error for out-of-range tier")
	}
}

func TestCandidatesFiltersUnavailableProviders(t *testing.T) {
	r := NewRegistry()
	r.MarkAvailable("google", false)
	r.MarkAvailable("openai", true)
	r.MarkAvailable("anthropic", false)

	got, err := r.Candidates(Tier2, "")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	for _, c := range got {
		if c != "openai:gpt-4o-mini" {
			t.Fatalf("expected only openai candidates to survive filtering, got %v", got)
		}
	}
}

func TestCandidatesStepOverrideTakesPrecedence(t *testing.T) {
	r := NewRegistry()
	r.MarkAvailable("google", true)
	got, err := r.Candidates(Tier2, "anthropic:claude-3-5-haiku-20241022")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if got[0] != "anthropic:claude-3-5-haiku-20241022" {
		t.Fatalf("expected step override first, got %v", got)
	}
}

func TestParseOverrideEnvWithFallback(t *testing.T) {
	t.Setenv("MY_MODEL", "")
	o := ParseOverride("env:MY_MODEL|openai:gpt-4o-mini")
	got, err := o.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "openai:gpt-4o-mini" {
		t.Fatalf("expected fallback value, got %q", got)
	}
}

func TestParseOverrideEnvUnsetNoFallbackErrors(t *testing.T) {
	t.Setenv("MY_MODEL_UNSET", "")
	o := ParseOverride("env:MY_MODEL_UNSET")
	if _, err := o.Resolve(); err == nil {
		t.Fatalf("expected error for unset env var with no fallback")
	}
}

func TestClassifyRetryableStatus(t *testing.T) {
	err := &StatusError{StatusCode: 429, Message: "too many requests"}
	if !Classify(err) {
		t.Fatalf("expected 429 to be retryable")
	}
}

func TestClassifyRetryableSubstring(t *testing.T) {
	if !Classify(errors.New("upstream connection reset")) {
		t.Fatalf("expected connection error to be retryable")
	}
	if !Classify(errors.New("model is overloaded, try again")) {
		t.Fatalf("expected overloaded error to be retryable")
	}
}

func TestClassifyPermanentError(t *testing.T) {
	if Classify(errors.New("invalid api key")) {
		t.Fatalf("expected auth error to be permanent")
	}
}
