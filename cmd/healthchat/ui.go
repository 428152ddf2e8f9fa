package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/gateway"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)
)

// markdown renders assistant replies. Falls back to plain text when the
// renderer can't be built or fails.
type markdown struct {
	r *glamour.TermRenderer
}

func newMarkdown() markdown {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return markdown{}
	}
	return markdown{r: r}
}

func (m markdown) render(text string) string {
	if m.r == nil {
		return text + "\n"
	}
	out, err := m.r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func printMessage(w io.Writer, md markdown, msg chatlog.Message) {
	switch msg.Sender {
	case chatlog.SenderUser:
		fmt.Fprintf(w, "%s %s\n", userStyle.Render("You:"), msg.Text)
	default:
		fmt.Fprintf(w, "%s\n%s", assistantStyle.Render("AI:"), md.render(msg.Text))
	}
}

func printAssessment(w io.Writer, ra gateway.RiskAssessment) {
	fmt.Fprintf(w, "%s %s\n", assistantStyle.Render("Diabetes risk:"), ra.DiabetesRisk)
	fmt.Fprintf(w, "%s %s\n", assistantStyle.Render("Hypertension risk:"), ra.HypertensionRisk)
	fmt.Fprintf(w, "%s\n%s\n", assistantStyle.Render("Advice:"), strings.TrimSpace(ra.Advice))
}
