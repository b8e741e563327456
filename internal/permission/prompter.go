package permission

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
)

// StaticPrompter answers every prompt with the same state.
type StaticPrompter struct {
	Answer State
	Calls  int
}

func (p *StaticPrompter) Prompt(context.Context) (State, error) {
	p.Calls++
	return p.Answer, nil
}

// TerminalPrompter asks on an interactive terminal. It must only be used
// from a user-initiated command.
type TerminalPrompter struct {
	Question string
}

func (p *TerminalPrompter) Prompt(ctx context.Context) (State, error) {
	question := p.Question
	if question == "" {
		question = "Cho phép gửi thông báo nhắc nhở? [y/N] "
	}

	rl, err := readline.NewEx(&readline.Config{Prompt: question})
	if err != nil {
		return "", fmt.Errorf("failed to open terminal: %w", err)
	}
	defer rl.Close()

	type answer struct {
		line string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		line, err := rl.Readline()
		done <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-done:
		if a.err != nil {
			// Ctrl-C / Ctrl-D dismiss the prompt like closing the browser dialog
			return StateDefault, nil
		}
		return parseAnswer(a.line), nil
	}
}

func parseAnswer(line string) State {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "co", "có":
		return StateGranted
	case "n", "no", "khong", "không":
		return StateDenied
	default:
		return StateDefault
	}
}
