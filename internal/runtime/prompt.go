package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/dialogtree/pkg/domain"
)

const (
	knowledgeHeader = "Контекстная информация о термостатах:"
	taskPrefix      = "На основе этой информации выполни следующую задачу: "

	// UnknownValue replaces readings missing from the context in composed instructions.
	UnknownValue = "неизвестно"

	ticketTemplate = "Заявка создана. Текущая температура: %s°C, желаемая: %s°C, время суток: %s."
)

// ComposePrompt prefixes instruction with the retrieved knowledge.
// Each snippet is written on its own line followed by its relevance.
func ComposePrompt(snippets []domain.Snippet, instruction string) string {
	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		parts = append(parts, fmt.Sprintf("%s (релевантность: %.2f)", s.Text, s.Relevance))
	}

	var b strings.Builder
	b.WriteString(knowledgeHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(parts, "\n"))
	b.WriteString("\n\n")
	b.WriteString(taskPrefix)
	b.WriteString(instruction)
	return b.String()
}

// ComposeTicket builds the ticket confirmation instruction from vars.
func ComposeTicket(vars *domain.Context) string {
	return fmt.Sprintf(ticketTemplate,
		vars.GetOr(domain.VarCurrentTemp, UnknownValue),
		vars.GetOr(domain.VarDesiredTemp, UnknownValue),
		vars.GetOr(domain.VarTimeOfDay, UnknownValue),
	)
}

// effectiveInstruction returns the instruction handed to generation for node.
func effectiveInstruction(node domain.Node, vars *domain.Context) string {
	switch n := node.(type) {
	case *domain.CaptureNode:
		return n.Instruction
	case *domain.OptionNode:
		return n.Instruction
	case *domain.TerminalNode:
		if n.Compose == domain.ComposeTicket {
			return ComposeTicket(vars)
		}
		return n.Instruction
	default:
		return ""
	}
}
