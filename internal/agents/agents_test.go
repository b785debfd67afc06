package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/runtime"
)

func newController(t *testing.T) *runtime.Controller {
	t.Helper()
	reg := runtime.NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	return runtime.NewController(reg)
}

func runPassword(t *testing.T, answer string) *runtime.Yield {
	t.Helper()
	ctx := context.Background()
	c := newController(t)

	run, err := c.StartRun(ctx, PasswordGeneratorName, domain.NewTextMessage(domain.RoleUser, "Generate a password"))
	require.NoError(t, err)

	y, err := c.Advance(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, y.Await)
	assert.Equal(t, PasswordPrompt, y.Await.Message.Text())

	_, err = c.SubmitResume(ctx, run.RunID, domain.ResumeSignal{
		AwaitID: y.Await.AwaitID,
		Message: domain.NewTextMessage(domain.RoleUser, answer),
	})
	require.NoError(t, err)

	y, err = c.Advance(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, y.Final)
	return y
}

func TestPasswordGeneratorYes(t *testing.T) {
	for _, answer := range []string{"yes", " YES ", "Yes"} {
		y := runPassword(t, answer)
		password := y.Final.Text()
		assert.Len(t, password, PasswordLength)
		for _, ch := range password {
			assert.True(t, strings.ContainsRune(passwordAlphabet, ch), "unexpected char %q", ch)
		}
	}
}

func TestPasswordGeneratorDeclined(t *testing.T) {
	for _, answer := range []string{"no", "nope", "yes please"} {
		y := runPassword(t, answer)
		assert.Equal(t, PasswordDeclined, y.Final.Text())
	}
}

func TestGeneratePasswordIsRandom(t *testing.T) {
	a, err := generatePassword(PasswordLength)
	require.NoError(t, err)
	b, err := generatePassword(PasswordLength)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEcho(t *testing.T) {
	ctx := context.Background()
	c := newController(t)

	run, err := c.StartRun(ctx, EchoName, domain.NewTextMessage(domain.RoleUser, "hello"))
	require.NoError(t, err)
	y, err := c.Advance(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, y.Final)
	assert.Equal(t, "hello", y.Final.Text())
	assert.Equal(t, domain.RoleAgent, y.Final.Role)
}

func TestRegisterBuiltinsTwiceFails(t *testing.T) {
	reg := runtime.NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	assert.Error(t, RegisterBuiltins(reg))
	assert.Len(t, reg.List(), 2)
}
