package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

type colorMode string

const (
	colorModeAuto colorMode = "auto"
	colorModeOn   colorMode = "on"
	colorModeOff  colorMode = "off"
)

func readColorMode(value string) (colorMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return colorModeAuto, nil
	case "on":
		return colorModeOn, nil
	case "off":
		return colorModeOff, nil
	default:
		return "", fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

// applyColorMode resolves the flag against the output terminal and
// flips the global color switch accordingly.
func applyColorMode(mode colorMode) {
	switch mode {
	case colorModeOn:
		color.NoColor = false
	case colorModeOff:
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stderr)
	}
}
