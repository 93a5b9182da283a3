package rsync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const DefaultBinary = "rsync"

var ErrNotFound = errors.New("rsync executable not found")

type Options struct {
	Binary string
	Source string
	Dest   string
	DryRun bool
	Extra  []string
	// Line is called for every line of merged stdout/stderr, in order.
	Line func(line string)
}

type Result struct {
	Command  []string
	ExitCode int
	// ScanErr is set when reading output failed and the process was killed.
	ScanErr error
	// Output keeps the first part of the combined output for error reports.
	Output string
}

type DependencyReport struct {
	RsyncFound  bool   `json:"rsync_found"`
	RsyncPath   string `json:"rsync_path,omitempty"`
	CowsayFound bool   `json:"cowsay_found"`
	CowsayPath  string `json:"cowsay_path,omitempty"`
}

// BuildArgs returns the rsync argument list, without the binary.
func BuildArgs(src, dst string, dryRun bool, extra []string) []string {
	args := []string{"-a", "--info=progress2"}
	if dryRun {
		args = append(args, "--dry-run")
	}
	args = append(args, extra...)
	return append(args, src, dst)
}

// CommandLine renders the full command for previews.
func CommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binaryOrDefault(binary))
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

func LookPath(binary string) (string, error) {
	bin := binaryOrDefault(binary)
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, bin)
	}
	return path, nil
}

func DependencyStatus(binary string) DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(binaryOrDefault(binary)); err == nil {
		report.RsyncFound = true
		report.RsyncPath = path
	}
	if path, err := exec.LookPath("cowsay"); err == nil {
		report.CowsayFound = true
		report.CowsayPath = path
	}
	return report
}

// Run starts rsync and blocks until it exits. A non-zero exit status is not
// an error; it is reported in Result.ExitCode. Errors are returned only when
// rsync could not be found or started.
func Run(ctx context.Context, opts Options) (Result, error) {
	if strings.TrimSpace(opts.Source) == "" {
		return Result{}, fmt.Errorf("source is required")
	}
	if strings.TrimSpace(opts.Dest) == "" {
		return Result{}, fmt.Errorf("dest is required")
	}
	path, err := LookPath(opts.Binary)
	if err != nil {
		return Result{}, err
	}

	args := BuildArgs(opts.Source, opts.Dest, opts.DryRun, opts.Extra)
	res := Result{Command: append([]string{binaryOrDefault(opts.Binary)}, args...)}

	cmd := exec.CommandContext(ctx, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return res, fmt.Errorf("setup output pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return res, fmt.Errorf("start rsync: %w", err)
	}

	var out strings.Builder
	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	scanner.Split(splitByNewlineOrCR)
	for scanner.Scan() {
		line := scanner.Text()
		appendLimited(&out, line)
		if opts.Line != nil {
			opts.Line(line)
		}
	}
	if err := scanner.Err(); err != nil {
		res.ScanErr = fmt.Errorf("read rsync output: %w", err)
		_ = cmd.Process.Kill()
	}

	waitErr := cmd.Wait()
	res.Output = out.String()
	res.ExitCode = exitCode(cmd, waitErr)
	if res.ScanErr != nil && res.ExitCode == 0 {
		res.ExitCode = 1
	}
	return res, nil
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
		return 1
	}
	if cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code > 0 {
			return code
		}
	}
	return 1
}

func binaryOrDefault(binary string) string {
	if b := strings.TrimSpace(binary); b != "" {
		return b
	}
	return DefaultBinary
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(b *strings.Builder, line string) {
	const maxKeep = 8192
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}
