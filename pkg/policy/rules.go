package policy

import (
	"regexp"

	"github.com/darianrosebrook/agent-agency/pkg/policy/status"
)

// Action tells the gate what to do with a rule match
type Action uint

const (
	// ActionRedact replaces the matched span with the redaction marker
	ActionRedact Action = iota
	// ActionBlock aborts the whole write
	ActionBlock
)

// Rule matches secret material in candidate content
type Rule struct {
	// Name identifies the rule in redaction markers and rejection reasons
	Name string `json:"name" yaml:"name"`
	// Pattern is an RE2 regular expression applied to the raw bytes
	Pattern string `json:"pattern" yaml:"pattern"`
	// Action on match
	Action Action `json:"action" yaml:"action"`

	re *regexp.Regexp
}

func (r *Rule) compile() error {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return status.ErrBadRule.WrapMessage(r.Name).Wrap(err)
	}
	r.re = re
	return nil
}

// DefaultRules returns the curated secret patterns the gate ships with.
//
// Hard blocks cover material that must never enter the store in any form.
// Redactions cover credential assignments that commonly show up in config
// files touched during task execution.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "private-key-block",
			Pattern: `-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----`,
			Action:  ActionBlock,
		},
		{
			Name:    "aws-access-key-id",
			Pattern: `\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`,
			Action:  ActionRedact,
		},
		{
			Name:    "aws-secret-access-key",
			Pattern: `(?i)aws(?:.{0,20})?(?:secret|private).{0,20}?['"][0-9a-zA-Z/+]{40}['"]`,
			Action:  ActionRedact,
		},
		{
			Name:    "bearer-token",
			Pattern: `(?i)\bbearer\s+[a-z0-9\-._~+/]{20,}=*`,
			Action:  ActionRedact,
		},
		{
			Name:    "github-token",
			Pattern: `\bgh[pousr]_[A-Za-z0-9]{36,}\b`,
			Action:  ActionRedact,
		},
		{
			Name:    "generic-credential-assignment",
			Pattern: `(?i)\b(?:api_?key|auth_?token|password|passwd|secret)\b\s*[:=]\s*['"][^'"\s]{8,}['"]`,
			Action:  ActionRedact,
		},
	}
}
