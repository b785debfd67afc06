package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	d, err := engine.Evaluate(ctx, ResumeInput{RunID: "run_1", Text: "yes", Parts: 1})
	require.NoError(t, err)
	assert.True(t, d.Allowed())
	assert.Equal(t, DecisionAllow, d.Decision)

	d, err = engine.Evaluate(ctx, ResumeInput{RunID: "run_1", Text: "   ", Parts: 1})
	require.NoError(t, err)
	assert.False(t, d.Allowed())
	assert.Equal(t, "resume message is blank", d.Reason)

	d, err = engine.Evaluate(ctx, ResumeInput{RunID: "run_1", Parts: 1, NonTextParts: 1})
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestCustomPolicyFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "policy.rego")
	content := `
package resume_policy

default decision = "allow"

decision = "deny" {
	input.submitted_by != "alice"
}

reason = "only alice may resume" {
	input.submitted_by != "alice"
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	engine, err := NewEngineFromFile(ctx, path)
	require.NoError(t, err)

	d, err := engine.Evaluate(ctx, ResumeInput{Text: "yes", SubmittedBy: "alice"})
	require.NoError(t, err)
	assert.True(t, d.Allowed())

	d, err = engine.Evaluate(ctx, ResumeInput{Text: "yes", SubmittedBy: "bob"})
	require.NoError(t, err)
	assert.False(t, d.Allowed())
	assert.Equal(t, "only alice may resume", d.Reason)
}

func TestNewEngineErrors(t *testing.T) {
	ctx := context.Background()
	_, err := NewEngine(ctx, "package broken\n\ndecision = {")
	assert.Error(t, err)

	_, err = NewEngineFromFile(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)

	engine, err := NewEngineFromFile(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, engine)
}
