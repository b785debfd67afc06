// Package policy evaluates resume admission rules with OPA.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// ResumeInput is the document the policy is evaluated against.
type ResumeInput struct {
	RunID        string `json:"run_id"`
	AgentName    string `json:"agent_name"`
	AwaitID      string `json:"await_id"`
	SubmittedBy  string `json:"submitted_by"`
	Text         string `json:"text"`
	Parts        int    `json:"parts"`
	NonTextParts int    `json:"non_text_parts"`
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Decision string
	Reason   string
}

// Allowed reports whether the resume may proceed.
func (d Decision) Allowed() bool {
	return d.Decision != DecisionDeny
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.resume_policy"),
		rego.Module("resume_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy from path, or DefaultPolicy when path
// is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks a resume signal against the policy.
func (e *Engine) Evaluate(ctx context.Context, input ResumeInput) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Decision: DecisionAllow, Reason: "default"}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{Decision: DecisionAllow, Reason: "unexpected return type"}, nil
	}

	d := Decision{Decision: DecisionAllow}
	if s, ok := doc["decision"].(string); ok {
		d.Decision = s
	}
	if s, ok := doc["reason"].(string); ok {
		d.Reason = s
	}
	return d, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package resume_policy

default decision = "allow"

blank {
	trim_space(input.text) == ""
	input.non_text_parts == 0
}

# Reject resumes that carry no usable content
decision = "deny" {
	blank
}

reason = "resume message is blank" {
	blank
}
`
