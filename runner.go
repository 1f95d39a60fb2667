package dialogtree

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/session"
)

// Console messages.
const (
	InvalidChoiceMessage = "Неверный вариант ответа"
	ChatIntroMessage     = "Вы можете задать дополнительные вопросы. Введите 'exit' для выхода."
	ChatExitMessage      = "Диалог завершен."
	ExitCommand          = "exit"
)

// Runner drives an Engine from line-oriented IO.
// The guided flow reads one reply per line (or Script entries first); once it
// finishes, the runner switches to free chat until ExitCommand or EOF.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Renderer ContentRenderer
	// Script holds replies consumed before Input is read; each is echoed.
	Script []string
	// SavePath, when set, receives the history once the guided flow is over
	// and again when the runner exits.
	SavePath string
	// NoChat stops the runner when the guided flow finishes.
	NoChat bool
}

// ContentRenderer transforms generated text before it is written.
type ContentRenderer func(string) (string, error)

// Run starts the engine and loops until the conversation ends.
func (r *Runner) Run(ctx context.Context, engine *Engine) error {
	if r.Output == nil {
		return errors.New("output writer must be set (use os.Stdout)")
	}
	lines := r.lines()

	turn, err := engine.Start(ctx)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	r.printTurn(turn)

	for engine.Status() == domain.StatusAwaitingInput {
		input, ok, err := lines(false)
		if err != nil {
			return err
		}
		if !ok {
			return r.save(engine)
		}

		turn, err = engine.Respond(ctx, input)
		if errors.Is(err, domain.ErrService) {
			fmt.Fprintf(r.Output, "Ошибка: %v\n", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("respond: %w", err)
		}
		if turn.InvalidChoice {
			fmt.Fprintln(r.Output, InvalidChoiceMessage)
			continue
		}
		r.printTurn(turn)
	}

	if err := r.save(engine); err != nil {
		return err
	}
	if r.NoChat {
		return nil
	}

	fmt.Fprintln(r.Output, ChatIntroMessage)
	for {
		fmt.Fprint(r.Output, "Вы: ")
		input, ok, err := lines(true)
		if err != nil {
			return err
		}
		if !ok || strings.EqualFold(strings.TrimSpace(input), ExitCommand) {
			fmt.Fprintln(r.Output, ChatExitMessage)
			return r.save(engine)
		}

		turn, err := engine.Respond(ctx, input)
		if err != nil {
			if errors.Is(err, domain.ErrService) {
				fmt.Fprintf(r.Output, "Ошибка: %v\n", err)
				continue
			}
			return fmt.Errorf("chat: %w", err)
		}
		fmt.Fprintf(r.Output, "Система: %s\n", r.render(turn.Utterance))
	}
}

// lines returns a reader yielding script entries first, then Input lines.
// Replies that fail session.SanitizeInput are reported and skipped.
func (r *Runner) lines() func(chat bool) (string, bool, error) {
	script := r.Script
	var reader *bufio.Reader
	if r.Input != nil {
		reader = bufio.NewReader(r.Input)
	}

	next := func(chat bool) (string, bool, error) {
		if len(script) > 0 {
			next := script[0]
			script = script[1:]
			if !chat {
				fmt.Fprintf(r.Output, "Пользователь: %s\n", next)
			} else {
				fmt.Fprintln(r.Output, next)
			}
			return next, true, nil
		}
		if reader == nil {
			return "", false, nil
		}
		if !chat {
			fmt.Fprint(r.Output, "> ")
		}
		text, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", false, fmt.Errorf("input error: %w", err)
		}
		if errors.Is(err, io.EOF) && text == "" {
			return "", false, nil
		}
		return strings.TrimRight(text, "\r\n"), true, nil
	}

	return func(chat bool) (string, bool, error) {
		for {
			text, ok, err := next(chat)
			if !ok || err != nil {
				return text, ok, err
			}
			clean, err := session.SanitizeInput(text)
			if err != nil {
				fmt.Fprintf(r.Output, "Ошибка: %v\n", err)
				if chat {
					fmt.Fprint(r.Output, "Вы: ")
				}
				continue
			}
			return clean, true, nil
		}
	}
}

func (r *Runner) printTurn(turn *Turn) {
	fmt.Fprintf(r.Output, "Система: %s\n", r.render(turn.Utterance))
	for _, o := range turn.Options {
		text := o.Text
		if text == "" {
			text = o.Prompt
		}
		fmt.Fprintf(r.Output, "  %s: %s\n", o.Key, r.render(text))
	}
}

func (r *Runner) render(text string) string {
	if r.Renderer == nil {
		return text
	}
	out, err := r.Renderer(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

func (r *Runner) save(engine *Engine) error {
	if r.SavePath == "" {
		return nil
	}
	if err := engine.SaveHistory(r.SavePath); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
