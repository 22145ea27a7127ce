package main

import (
	"github.com/logrusorgru/aurora/v4"
)

func colorizeResult(message string) string {
	return aurora.Colorize(message, aurora.YellowFg|aurora.BrightFg).String()
}

func colorizeError(message string) string {
	return aurora.Colorize(message, aurora.RedFg|aurora.BrightFg|aurora.BoldFm).String()
}
