package model

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Tier names a class of models. Tier 0 is deterministic (no model call at
// all, handled entirely in workflow/compiler); tiers 1..5 climb in
// capability and cost.
type Tier int

const (
	Tier0 Tier = iota
	Tier1
	Tier2
	Tier3
	Tier4
	Tier5
)

// Chain is an ordered, named list of candidate model identifiers. Each
// identifier is an opaque string prefixed by a provider tag
// ("anthropic:...", "openai:...", "google:...").
type Chain struct {
	Name   string
	Models []string
}

// defaultChains mirrors the fallback ordering the workflow's origin
// project ships: a free/fast candidate first, progressively more
// capable/expensive candidates after. Authors can override any tier via
// RegisterChain or a per-step/process-level override (see Resolve).
var defaultChains = map[Tier]Chain{
	Tier1: {Name: "tier1-default", Models: []string{
		"google:gemini-2.0-flash-lite",
		"openai:gpt-4o-mini",
	}},
	Tier2: {Name: "tier2-default", Models: []string{
		"google:gemini-2.0-flash",
		"openai:gpt-4o-mini",
		"anthropic:claude-3-5-haiku-20241022",
	}},
	Tier3: {Name: "tier3-default", Models: []string{
		"google:gemini-2.5-flash",
		"openai:gpt-4o",
		"anthropic:claude-sonnet-4-5-20250929",
	}},
	Tier4: {Name: "tier4-default", Models: []string{
		"google:gemini-2.5-pro",
		"openai:gpt-4o",
		"anthropic:claude-sonnet-4-5-20250929",
	}},
	Tier5: {Name: "tier5-default", Models: []string{
		"google:gemini-2.5-pro",
		"anthropic:claude-opus-4-6",
		"openai:gpt-4o",
	}},
}

// providerEnvVar names the environment variable whose presence signals
// that a given provider's credentials are configured.
var providerEnvVar = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// Override is the typed sum the workflow config's string-encoded
// `model_override: <id>` / `model_override: env:VAR|fallback` form
// resolves into at step-construction time, per the
// from-string-to-typed-sum redesign.
type Override struct {
	literal  string
	envVar   string
	fallback string
	hasEnv   bool
}

// ParseOverride parses a raw override string. "env:VAR|fallback" (the
// fallback clause is optional) produces an environment-backed override;
// anything else is treated as a literal model identifier.
func ParseOverride(raw string) Override {
	if !strings.HasPrefix(raw, "env:") {
		return Override{literal: raw}
	}
	rest := strings.TrimPrefix(raw, "env:")
	varName, fallback, hasFallback := strings.Cut(rest, "|")
	o := Override{envVar: varName, hasEnv: true}
	if hasFallback {
		o.fallback = fallback
	}
	return o
}

// Resolve returns the literal model identifier this override names.
// An env-backed override with an unset variable and no fallback is a
// hard error surfaced at step-start time, per spec.
func (o Override) Resolve() (string, error) {
	if !o.hasEnv {
		return o.literal, nil
	}
	if v := os.Getenv(o.envVar); v != "" {
		return v, nil
	}
	if o.fallback != "" {
		return o.fallback, nil
	}
	return "", fmt.Errorf("model: override references unset environment variable %q with no fallback", o.envVar)
}

// Registry resolves a tier (plus optional per-step override) to an
// ordered list of candidate model identifiers, filtered by provider
// availability, and owns the process-level `_TIER_N` defaults. It is
// created once by the runner and is safe for concurrent read access;
// RegisterChain should only be called during setup.
type Registry struct {
	chains map[Tier]Chain
	// availability overrides providerEnvVar for tests and for providers
	// that were health-checked rather than merely env-probed.
	availability map[string]bool
}

// NewRegistry constructs a Registry seeded with the built-in default
// chains. Callers may override a tier's chain with RegisterChain before
// first use.
func NewRegistry() *Registry {
	chains := make(map[Tier]Chain, len(defaultChains))
	for t, c := range defaultChains {
		chains[t] = c
	}
	return &Registry{chains: chains, availability: map[string]bool{}}
}

// RegisterChain overrides the fallback chain used for tier.
func (r *Registry) RegisterChain(tier Tier, chain Chain) {
	r.chains[tier] = chain
}

// MarkAvailable force-marks a provider tag as available, bypassing the
// environment-variable probe. Tests use this to simulate credentials
// without setting process environment.
func (r *Registry) MarkAvailable(provider string, available bool) {
	r.availability[provider] = available
}

func (r *Registry) isAvailable(candidate string) bool {
	provider, _, _ := strings.Cut(candidate, ":")
	if v, ok := r.availability[provider]; ok {
		return v
	}
	envVar, known := providerEnvVar[provider]
	if !known {
		return true
	}
	return os.Getenv(envVar) != ""
}

// Candidates implements the precedence chain from spec §4.2:
//  1. stepOverride, if non-empty, resolved via ParseOverride/Resolve.
//  2. process-level override keyed by tier ("…_TIER_{N}").
//  3. the tier's static fallback chain, filtered to available
//     providers, preserving chain order.
//
// The step override is never filtered by availability: an explicit
// override is an instruction to use that exact model, not a preference
// among alternatives.
func (r *Registry) Candidates(tier Tier, stepOverride string) ([]string, error) {
	var out []string
	if stepOverride != "" {
		resolved, err := ParseOverride(stepOverride).Resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	if v := os.Getenv(fmt.Sprintf("MODEL_TIER_%d", int(tier))); v != "" {
		out = append(out, v)
	}
	chain := r.chains[tier]
	for _, candidate := range chain.Models {
		if r.isAvailable(candidate) {
			out = append(out, candidate)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("model: no available candidates for tier %d", int(tier))
	}
	return dedupe(out), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ParseTier converts a step's agent identifier (`tier{N}_{role}`) into a
// Tier and the role suffix. Role is informational: it selects the
// prompt file (internal/promptfile) but does not affect candidate
// resolution.
func ParseTier(agent string) (Tier, string, error) {
	if !strings.HasPrefix(agent, "tier") {
		return 0, "", fmt.Errorf("model: agent identifier %q does not start with \"tier\"", agent)
	}
	rest := strings.TrimPrefix(agent, "tier")
	numStr, role, _ := strings.Cut(rest, "_")
	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 || n > 5 {
		return 0, "", fmt.Errorf("model: agent identifier %q has an invalid tier number", agent)
	}
	return Tier(n), role, nil
}
