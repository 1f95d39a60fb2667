package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/dialogtree/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "no escape codes for a non-terminal writer")
	assert.Equal(t, 8, strings.Count(out, "\n"))
}

func TestNewRenderer(t *testing.T) {
	render := tui.NewRenderer(80)
	out, err := render("Проверьте **батарейки**.")
	require.NoError(t, err)
	assert.Contains(t, out, "батарейки")
}
