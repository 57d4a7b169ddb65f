package main

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var titleCaser = cases.Title(language.English)

// titleLabel turns a snake_case identifier such as "already_claimed" into
// "Already Claimed".
func titleLabel(value string) string {
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

func renderCheckLine(label string, passed bool, message string, colorize bool) string {
	status := "OK"
	color := ansiGreen
	if !passed {
		status = "FAIL"
		color = ansiRed
	}
	statusText := fmt.Sprintf("[%s]", status)
	if message != "" {
		statusText += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		return color + line + ansiReset
	}
	return line
}
