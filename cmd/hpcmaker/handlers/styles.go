package handlers

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorYellow = lipgloss.Color("#eab308")
	colorRed    = lipgloss.Color("#ef4444")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(14)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	successStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)

func printTitle(w io.Writer, format string, v ...any) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("  "+fmt.Sprintf(format, v...)))
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(label), value)
}

func printSuccess(w io.Writer, format string, v ...any) {
	fmt.Fprintln(w, successStyle.Render("  ✓ "+fmt.Sprintf(format, v...)))
}

func printWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, warnStyle.Render("  ! "+msg))
}
