package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/pipforge/pipcore/pkg/platform/terminal"
)

// Warning prints a warning message to standard error. The message is
// terminal-neutralized since it may echo a path or override string supplied
// on the command line.
func Warning(message string) {
	fmt.Fprintln(color.Error, color.YellowString("Warning:"), terminal.NeutralizeControlCharacters(message))
}

// Error prints an error message to standard error.
func Error(err error) {
	fmt.Fprintln(os.Stderr, "Error:", terminal.NeutralizeControlCharacters(err.Error()))
}

// Fatal prints an error message to standard error and then terminates the
// process with an error exit code.
func Fatal(err error) {
	Error(err)
	os.Exit(1)
}
