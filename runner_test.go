package dialogtree_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aretw0/dialogtree"
	"github.com/aretw0/dialogtree/pkg/adapters/file"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/history"
	"github.com/aretw0/dialogtree/pkg/ports"
	"github.com/aretw0/dialogtree/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_ScriptedScenario(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "dialog_history.json")
	r := &dialogtree.Runner{
		Input:    strings.NewReader("какой заряд нужен?\nEXIT\n"),
		Output:   &out,
		Script:   []string{"temp", "22", "24", "день", "1.5", "yes"},
		SavePath: path,
	}

	eng := dialogtree.New(bracket)
	require.NoError(t, r.Run(context.Background(), eng))

	text := out.String()
	assert.Contains(t, text, "Пользователь: temp\n")
	assert.Contains(t, text, "  temp: [Скажи: 'Термостат не поддерживает нужную температуру']\n")
	assert.Contains(t, text, "Заявка создана. Текущая температура: 22°C, желаемая: 24°C, время суток: день.")
	assert.Contains(t, text, dialogtree.ChatIntroMessage)
	assert.Contains(t, text, "Система: [какой заряд нужен?]\n")
	assert.True(t, strings.HasSuffix(text, dialogtree.ChatExitMessage+"\n"))

	tree, err := file.ReadHistoryFile(path)
	require.NoError(t, err)
	assert.Equal(t, 15, tree.Len())
}

func TestRunner_InvalidChoice(t *testing.T) {
	var out bytes.Buffer
	r := &dialogtree.Runner{
		Input:  strings.NewReader("maybe\nother\n"),
		Output: &out,
		NoChat: true,
	}

	eng := dialogtree.New(bracket)
	require.NoError(t, r.Run(context.Background(), eng))

	assert.Contains(t, out.String(), dialogtree.InvalidChoiceMessage+"\n")
	assert.Equal(t, domain.StatusFinished, eng.Status())
	assert.NotContains(t, out.String(), dialogtree.ChatIntroMessage)
}

func TestRunner_EOFDuringFlow(t *testing.T) {
	var out bytes.Buffer
	r := &dialogtree.Runner{Input: strings.NewReader("temp\n22"), Output: &out}

	eng := dialogtree.New(bracket)
	require.NoError(t, r.Run(context.Background(), eng))

	assert.Equal(t, domain.StatusAwaitingInput, eng.Status())
	assert.Equal(t, "22", eng.Context()[domain.VarCurrentTemp])
}

func TestRunner_ServiceErrorContinues(t *testing.T) {
	calls := 0
	gen := ports.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		calls++
		// Start renders the utterance and both options; the first reply fails once.
		if calls == 4 {
			return "", errors.New("rate limited")
		}
		return prompt, nil
	})

	var out bytes.Buffer
	r := &dialogtree.Runner{Input: strings.NewReader("other\nother\n"), Output: &out, NoChat: true}

	eng := dialogtree.New(gen)
	require.NoError(t, r.Run(context.Background(), eng))

	assert.Contains(t, out.String(), "Ошибка: ")
	assert.Equal(t, domain.StatusFinished, eng.Status())
}

func TestRunner_RejectsInvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialog_history.json")
	var out bytes.Buffer
	r := &dialogtree.Runner{
		Input:    strings.NewReader("temp\n2\xff2\n2\x002\nтёпло\xfe\nexit\n"),
		Output:   &out,
		SavePath: path,
	}

	eng := dialogtree.New(bracket)
	require.NoError(t, r.Run(context.Background(), eng))

	assert.Contains(t, out.String(), "Ошибка: "+session.ErrInvalidUTF8.Error())
	assert.Equal(t, "22", eng.Context()[domain.VarCurrentTemp], "control characters are stripped")

	saved, err := file.ReadHistoryFile(path)
	require.NoError(t, err)
	saved.Walk(func(_ int, m *history.Message) bool {
		assert.True(t, utf8.ValidString(m.Content()))
		return true
	})
}

func TestRunner_RequiresOutput(t *testing.T) {
	r := &dialogtree.Runner{}
	assert.Error(t, r.Run(context.Background(), dialogtree.New(bracket)))
}

func TestRunner_Renderer(t *testing.T) {
	var out bytes.Buffer
	r := &dialogtree.Runner{
		Output:   &out,
		Script:   []string{"other"},
		NoChat:   true,
		Renderer: func(s string) (string, error) { return "**" + s + "**\n", nil },
	}
	require.NoError(t, r.Run(context.Background(), dialogtree.New(bracket)))
	assert.Contains(t, out.String(), "Система: **[")
}
