package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/postphotos/purrfectcopy/internal/dashboard"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// promptDefault asks for a value and returns def on an empty answer.
func promptDefault(in *bufio.Reader, out io.Writer, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	line, err := readLine(in)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return def, nil
	}
	return value, nil
}

// promptConfirm reads a yes/no answer. End of input counts as an interrupt.
func promptConfirm(in *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := readLine(in)
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return "", errInterrupted
		}
		if !errors.Is(err, io.EOF) {
			return "", err
		}
	}
	return line, nil
}

// lineReader buffers stdin once so consecutive prompts do not lose input.
func (a *app) lineReader() *bufio.Reader {
	if a.lines == nil {
		a.lines = bufio.NewReader(a.streams.in)
	}
	return a.lines
}

func stdinIsTTY() bool {
	return dashboard.IsInteractive(os.Stdin)
}

func stdoutIsTTY() bool {
	return dashboard.IsInteractive(os.Stdout)
}
