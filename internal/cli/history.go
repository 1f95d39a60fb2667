package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/dialogtree/pkg/adapters/file"
	"github.com/aretw0/dialogtree/pkg/history"
)

// PrintHistory writes tree as an indented outline. Linear runs stay at the
// same indentation; each fork opens a numbered, indented branch.
func PrintHistory(w io.Writer, tree *history.Tree) {
	printBranches(w, tree.Roots(), 0)
}

func printBranches(w io.Writer, msgs []*history.Message, indent int) {
	if len(msgs) == 1 {
		printRun(w, msgs[0], indent)
		return
	}
	pad := strings.Repeat("  ", indent)
	for i, m := range msgs {
		fmt.Fprintf(w, "%s[branch %d]\n", pad, i+1)
		printRun(w, m, indent+1)
	}
}

func printRun(w io.Writer, m *history.Message, indent int) {
	pad := strings.Repeat("  ", indent)
	for {
		content := strings.ReplaceAll(m.Content(), "\n", "\n"+pad+"  ")
		fmt.Fprintf(w, "%s%s: %s\n", pad, m.Role(), content)
		children := m.Children()
		if len(children) != 1 {
			printBranches(w, children, indent)
			return
		}
		m = children[0]
	}
}

// ValidateHistory parses the history document at path strictly and
// summarizes it.
func ValidateHistory(path string) (string, error) {
	tree, err := file.ReadHistoryFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %d messages in %d root branch(es)", path, tree.Len(), len(tree.Roots())), nil
}
