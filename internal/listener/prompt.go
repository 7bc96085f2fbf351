package listener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"

	"github.com/memohai/tglistener/internal/platform"
)

// ConsolePrompter asks the operator for login codes on the terminal. Prompts
// from concurrent session starts are serialized.
type ConsolePrompter struct {
	mu sync.Mutex
}

// NewConsolePrompter creates a terminal prompter.
func NewConsolePrompter() *ConsolePrompter {
	return &ConsolePrompter{}
}

func (p *ConsolePrompter) Code(ctx context.Context, phone string) (string, error) {
	return p.ask(ctx, fmt.Sprintf("Login code for %s", phone), "Sent by Telegram to your other devices", huh.EchoModeNormal)
}

func (p *ConsolePrompter) Password(ctx context.Context, phone string) (string, error) {
	return p.ask(ctx, fmt.Sprintf("Two-step password for %s", phone), "", huh.EchoModePassword)
}

func (p *ConsolePrompter) ask(ctx context.Context, title, description string, mode huh.EchoMode) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description(description).
				EchoMode(mode).
				Value(&value).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("value is required")
					}
					return nil
				}),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// passwordPrompter answers the two-step challenge with a known password and
// leaves the login code to next. A login code cannot be supplied up front:
// every start requests a fresh one.
type passwordPrompter struct {
	next     platform.Prompter
	password string
}

func (p passwordPrompter) Code(ctx context.Context, phone string) (string, error) {
	if p.next == nil {
		return "", fmt.Errorf("login code required for %s but no prompter is configured", phone)
	}
	return p.next.Code(ctx, phone)
}

func (p passwordPrompter) Password(context.Context, string) (string, error) {
	return p.password, nil
}
