package main

import "github.com/fatih/color"

// Styling, grounded on cmd/cobra_cli.go's DeepCoding* helpers — kept to
// what the run subcommand actually prints: a red fatal-error line, the
// green/red final status line, and bold command descriptions.
var (
	red   = color.New(color.FgRed).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

func DeepCodingError(msg string) string {
	return red("✗ " + msg)
}
