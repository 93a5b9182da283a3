package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postphotos/purrfectcopy/internal/model"
	"github.com/postphotos/purrfectcopy/internal/settings"
)

const testSettingsPath = "/home/cat/.pcopy-main-backup.yml"

type harness struct {
	fs  afero.Fs
	out *bytes.Buffer
	err *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("PCOPY_SETTINGS_PATH", testSettingsPath)
	t.Setenv("PCOPY_TEST_MODE", "0")
	t.Setenv("PCOPY_RSYNC", "")
	return &harness{fs: afero.NewMemMapFs(), out: &bytes.Buffer{}, err: &bytes.Buffer{}}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.out.Reset()
	h.err.Reset()
	return execute(&app{streams: streams{in: strings.NewReader(""), out: h.out, err: h.err}, fs: h.fs}, args)
}

// openFiles lists the paths this process currently holds open.
func openFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd on this platform")
	}
	var paths []string
	for _, e := range entries {
		if target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name())); err == nil {
			paths = append(paths, target)
		}
	}
	return paths
}

func (h *harness) seed(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(h.fs, testSettingsPath, []byte(body), 0o644))
}

func (h *harness) job(t *testing.T, name string) settings.Job {
	t.Helper()
	doc, err := settings.NewStore(h.fs, testSettingsPath).Load()
	require.NoError(t, err)
	job, err := doc.FindJob(name)
	require.NoError(t, err)
	return job
}

func writeFakeRsync(t *testing.T, script string) string {
	t.Helper()
	fakeBin := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.MkdirAll(fakeBin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fakeBin, "rsync"), []byte(script), 0o755))
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	return fakeBin
}

const okRsync = `#!/usr/bin/env bash
echo '>f+++++++++ whiskers.jpg'
printf ' 4,096 100%%  1.00MB/s  0:00:01\r'
echo 'Total transferred file size: 4,096 bytes'
`

const photosSeed = `# keep me
rsync_options: []
photos:
  source: /data/photos/
  dest: /backup/photos
`

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 23, ExitCode(&ExitError{Code: 23}))
	assert.Equal(t, 1, ExitCode(assert.AnError))
	assert.Equal(t, 130, ExitCode(errInterrupted))
}

func TestRootWithoutTTYPrintsHelp(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t))
	assert.Contains(t, h.out.String(), "pcopy")
	assert.Contains(t, h.out.String(), "setup")
}

func TestListWithoutSettings(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "list"))
	assert.Contains(t, h.out.String(), "no backups configured")
	assert.Contains(t, h.out.String(), "next: pcopy setup")
}

func TestSetupCreatesMainBackup(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "setup", "--source", "/data/pics/", "--dest", "/backup/pics", "--yes"))
	assert.Contains(t, h.out.String(), "Added main-backup")
	assert.Contains(t, h.out.String(), "next: pcopy do main-backup --dry-run")

	job := h.job(t, settings.DefaultJobName)
	assert.Equal(t, "/data/pics/", job.Source)
	assert.Equal(t, "/backup/pics", job.Dest)

	exists, err := afero.DirExists(h.fs, "/backup/pics")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, h.run(t, "setup", "--source", "/data/other", "--dest", "/backup/pics"))
	assert.Contains(t, h.out.String(), "Updated main-backup")
	assert.Contains(t, h.out.String(), "Backed up existing settings to "+testSettingsPath+".bak")
	assert.Equal(t, "/data/other", h.job(t, settings.DefaultJobName).Source)
}

func TestListJSONIncludesLastRun(t *testing.T) {
	h := newHarness(t)
	h.seed(t, photosSeed+`  last_run:
    timestamp: "2026-10-01T10:00:00"
    status: 0
    status_str: PASS
    transferred_bytes: 2048
`)
	require.NoError(t, h.run(t, "list", "--json"))

	var jobs []settings.Job
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "photos", jobs[0].Name)
	require.NotNil(t, jobs[0].LastRun)
	assert.Equal(t, model.StatusPass, jobs[0].LastRun.StatusStr)

	require.NoError(t, h.run(t, "list"))
	assert.Contains(t, h.out.String(), "2.0KB")
	assert.Contains(t, h.out.String(), "PASS")
}

func TestDoRunsNamedBackup(t *testing.T) {
	h := newHarness(t)
	writeFakeRsync(t, okRsync)
	h.seed(t, photosSeed)

	require.NoError(t, h.run(t, "do", "photos", "--quiet"))
	assert.Contains(t, h.out.String(), "Purrfect Success!")

	job := h.job(t, "photos")
	require.NotNil(t, job.LastRun)
	assert.Equal(t, model.StatusPass, job.LastRun.StatusStr)
	require.NotNil(t, job.LastRun.TransferredBytes)
	assert.EqualValues(t, 4096, *job.LastRun.TransferredBytes)

	data, err := afero.ReadFile(h.fs, testSettingsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# keep me")
}

func TestDoReportsRsyncFailure(t *testing.T) {
	h := newHarness(t)
	writeFakeRsync(t, `#!/usr/bin/env bash
echo 'rsync: send_files failed to open "/data/photos/x": Permission denied (13)'
exit 23
`)
	h.seed(t, photosSeed)

	err := h.run(t, "do", "photos")
	assert.Equal(t, 23, ExitCode(err))
	assert.Contains(t, h.out.String(), "Oh no! Rsync finished with exit code 23 and 1 errors.")
	assert.Equal(t, model.StatusFailed, h.job(t, "photos").LastRun.StatusStr)
}

func TestDoDryRunAlwaysExitsZero(t *testing.T) {
	h := newHarness(t)
	writeFakeRsync(t, "#!/usr/bin/env bash\nexit 23\n")
	h.seed(t, photosSeed)

	require.NoError(t, h.run(t, "do", "photos", "--dry-run"))
	lr := h.job(t, "photos").LastRun
	require.NotNil(t, lr)
	assert.True(t, lr.DryRun)
	assert.Equal(t, model.StatusFailed, lr.StatusStr)
}

func TestDoUnknownJobContinues(t *testing.T) {
	h := newHarness(t)
	writeFakeRsync(t, okRsync)
	h.seed(t, photosSeed)

	err := h.run(t, "do", "ghost", "photos")
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, h.out.String(), "Named backup 'ghost' not found in settings")
	assert.Equal(t, model.StatusPass, h.job(t, "photos").LastRun.StatusStr)
}

func TestAdHocRunInTestMode(t *testing.T) {
	h := newHarness(t)
	t.Setenv("PCOPY_TEST_MODE", "1")

	require.NoError(t, h.run(t, "--source", "/data", "--dest", "/backup"))
	assert.Contains(t, h.out.String(), "Purrfect Success!")

	exists, err := afero.Exists(h.fs, testSettingsPath)
	require.NoError(t, err)
	assert.False(t, exists, "ad hoc runs are not recorded")
}

func TestMissingRsyncExitsTwo(t *testing.T) {
	h := newHarness(t)
	h.seed(t, photosSeed)

	err := h.run(t, "do", "photos", "--rsync", "pcopy-no-such-rsync")
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, h.out.String(), "pcopy-no-such-rsync was not found on PATH")

	data, err := afero.ReadFile(h.fs, testSettingsPath)
	require.NoError(t, err)
	assert.Equal(t, photosSeed, string(data))
}

func TestDemoInTestMode(t *testing.T) {
	h := newHarness(t)
	t.Setenv("PCOPY_TEST_MODE", "1")

	require.NoError(t, h.run(t, "demo"))
	assert.Contains(t, h.out.String(), "Purrfect Success!")
}

func TestDoctorJSON(t *testing.T) {
	h := newHarness(t)
	writeFakeRsync(t, okRsync)
	h.seed(t, photosSeed)

	require.NoError(t, h.run(t, "doctor", "--json"))
	var res settings.DoctorResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	assert.True(t, res.OK)

	names := make([]string, 0, len(res.Checks))
	for _, c := range res.Checks {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "dependency:rsync")
	assert.Contains(t, names, "settings:parse")
}

func TestDoctorFailsWithoutRsync(t *testing.T) {
	h := newHarness(t)
	err := h.run(t, "doctor", "--rsync", "pcopy-no-such-rsync")
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, h.out.String(), "dependency:rsync: fail")
}

func TestFailedRunClosesLogFile(t *testing.T) {
	h := newHarness(t)
	writeFakeRsync(t, "#!/usr/bin/env bash\nexit 23\n")
	h.seed(t, photosSeed)
	logDir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	logPath := filepath.Join(logDir, "pcopy.log")

	err = h.run(t, "do", "photos", "--log", "--log-path", logPath)
	assert.Equal(t, 23, ExitCode(err))

	data, readErr := os.ReadFile(logPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "rsync failed")
	assert.NotContains(t, openFiles(t), logPath)
}
