package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"skelgen/internal/diag"
)

var (
	sevErrorColor   = color.New(color.FgRed, color.Bold)
	sevWarningColor = color.New(color.FgYellow, color.Bold)
	sevInfoColor    = color.New(color.FgCyan)
	codeColor       = color.New(color.Faint)
)

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return sevErrorColor
	case diag.SevWarning:
		return sevWarningColor
	default:
		return sevInfoColor
	}
}

// printBag renders the diagnostics of one object. With quiet set, only
// errors are shown.
func printBag(w io.Writer, object string, bag *diag.Bag, quiet bool) {
	for _, d := range bag.Items() {
		if quiet && d.Severity < diag.SevError {
			continue
		}
		fmt.Fprintf(w, "%s: %s %s %s: %s\n",
			object,
			severityColor(d.Severity).Sprint(d.Severity.String()),
			codeColor.Sprint(d.Code.String()),
			d.Primary, d.Message)
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  note: %s: %s\n", n.Loc, n.Msg)
		}
	}
}
