package agents

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/runtime"
)

const (
	PasswordGeneratorName = "password_generator"
	PasswordPrompt        = "I can generate a password for you. Do you want me to do that?"
	PasswordDeclined      = "Password generation declined."
	PasswordLength        = 16

	passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

// NewPasswordGenerator returns an agent that asks for confirmation before
// generating a random password.
func NewPasswordGenerator() runtime.Agent {
	return runtime.AgentFunc{
		AgentName:        PasswordGeneratorName,
		AgentDescription: "Generates a random password after the user confirms.",
		Fn:               runPasswordGenerator,
	}
}

func runPasswordGenerator(ac *runtime.Context, input domain.Message) (domain.Message, error) {
	answer, err := ac.Await(domain.NewTextMessage(domain.RoleAgent, PasswordPrompt))
	if err != nil {
		return domain.Message{}, err
	}

	if !strings.EqualFold(strings.TrimSpace(answer.Text()), "yes") {
		return domain.NewTextMessage(domain.RoleAgent, PasswordDeclined), nil
	}

	password, err := generatePassword(PasswordLength)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to generate password: %w", err)
	}
	return domain.NewTextMessage(domain.RoleAgent, password), nil
}

func generatePassword(n int) (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(passwordAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
