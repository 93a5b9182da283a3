package dashboard

import (
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TerminalHeight returns the row count of stdout, or 0 when unknown.
func TerminalHeight() int {
	_, h, err := term.GetSize(os.Stdout.Fd())
	if err != nil {
		return 0
	}
	return h
}
