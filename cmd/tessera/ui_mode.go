package main

import (
	"fmt"
	"os"
	"strings"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", errInvalidFlag("ui", value, "auto|on|off")
	}
}

// shouldUseTUI decides whether the progress view runs. Auto needs stderr to
// be a terminal and stdout to be redirected, so translations never mix with
// the view.
func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stderr) && !isTerminal(os.Stdout)
	}
}

func errInvalidFlag(name, value, allowed string) error {
	return fmt.Errorf("invalid --%s value %q (expected %s)", name, value, allowed)
}
