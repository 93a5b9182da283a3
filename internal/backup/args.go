package backup

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/postphotos/purrfectcopy/internal/settings"
)

const versionStampLayout = "20060102_150405"

// JobArgs returns the rsync arguments that go between the fixed flags and
// the source/dest pair: global options, the job's own args, its exclude
// file, then the versioned-backup flags.
func JobArgs(job settings.Job, global []string, globalVersionsDir string, now time.Time) []string {
	args := make([]string, 0, len(global)+len(job.Args)+4)
	args = append(args, global...)
	args = append(args, job.Args...)
	if f := strings.TrimSpace(job.ExcludeFrom); f != "" {
		args = append(args, "--exclude-from", f)
	}
	if job.Versions {
		dir := filepath.Join(job.VersionsDir(globalVersionsDir), now.Format(versionStampLayout))
		args = append(args, "--backup", "--backup-dir", dir)
	}
	return args
}
