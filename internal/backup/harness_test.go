package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/postphotos/purrfectcopy/internal/config"
	"github.com/postphotos/purrfectcopy/internal/model"
	"github.com/postphotos/purrfectcopy/internal/settings"
)

const settingsPath = "/home/cat/.pcopy-main-backup.yml"

func writeFakeRsync(t *testing.T, script string) string {
	t.Helper()
	fakeBin := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fakeBin, "rsync"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	return fakeBin
}

func newTestRunner(t *testing.T, fs afero.Fs, cfg *config.Config) (*Runner, *bytes.Buffer) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	store := settings.NewStore(fs, settingsPath)
	r := NewRunner(cfg, store, nil)
	var out bytes.Buffer
	r.Out = &out
	r.NewRunID = func() string { return "run-test" }
	r.SimulateDelay = 0
	return r, &out
}

func seedSettings(t *testing.T, fs afero.Fs, body string) {
	t.Helper()
	if err := afero.WriteFile(fs, settingsPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func loadJob(t *testing.T, fs afero.Fs, name string) settings.Job {
	t.Helper()
	doc, err := settings.NewStore(fs, settingsPath).Load()
	if err != nil {
		t.Fatal(err)
	}
	job, err := doc.FindJob(name)
	if err != nil {
		t.Fatal(err)
	}
	return job
}

const seed = `# my backups
rsync_options: []
photos:
  source: /src/photos/
  dest: /mnt/backup/photos
`

func TestHarnessSuccessfulRunPersistsPass(t *testing.T) {
	writeFakeRsync(t, `#!/usr/bin/env bash
printf ' 1,024  10%%  1.00MB/s  0:00:01\r'
echo '>f+++++++++ a.jpg'
echo '>f+++++++++ b.jpg'
echo 'Total transferred file size: 2,048 bytes'
printf ' 2,048 100%%  2.00MB/s  0:00:02\n'
exit 0
`)
	fs := afero.NewMemMapFs()
	seedSettings(t, fs, seed)
	r, _ := newTestRunner(t, fs, nil)

	results, code, err := r.RunNamed(context.Background(), []string{"photos"}, false)
	if err != nil {
		t.Fatalf("run failed unexpectedly: %v", err)
	}
	if code != 0 || len(results) != 1 {
		t.Fatalf("expected one successful run, got code=%d results=%d", code, len(results))
	}
	res := results[0]
	if res.Summary.Snapshot.FilesMoved != 2 || res.Summary.Snapshot.Progress != 100 {
		t.Fatalf("unexpected snapshot: %+v", res.Summary.Snapshot)
	}

	job := loadJob(t, fs, "photos")
	rec := job.LastRun
	if rec == nil {
		t.Fatal("expected last_run to be written")
	}
	if rec.StatusStr != model.StatusPass || rec.Status == nil || *rec.Status != 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.TransferredBytes == nil || *rec.TransferredBytes != 2048 {
		t.Fatalf("unexpected transferred bytes: %v", rec.TransferredBytes)
	}
	if rec.RunID != "run-test" || rec.DryRun {
		t.Fatalf("unexpected run id / dry run: %+v", rec)
	}

	data, _ := afero.ReadFile(fs, settingsPath)
	if !strings.Contains(string(data), "# my backups") || !strings.Contains(string(data), "rsync_options") {
		t.Fatalf("unrelated content was lost:\n%s", data)
	}
}

func TestHarnessFailureSurfacesExitCode(t *testing.T) {
	writeFakeRsync(t, `#!/usr/bin/env bash
echo 'rsync: send_files failed to open "/src/photos/locked": Permission denied (13)'
echo 'rsync error: some files/attrs were not transferred (code 23)'
exit 23
`)
	fs := afero.NewMemMapFs()
	seedSettings(t, fs, seed)
	r, _ := newTestRunner(t, fs, nil)

	_, code, err := r.RunNamed(context.Background(), []string{"photos"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if code != 23 {
		t.Fatalf("expected exit 23, got %d", code)
	}
	rec := loadJob(t, fs, "photos").LastRun
	if rec == nil || rec.StatusStr != model.StatusFailed || *rec.Status != 23 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.ErrorsCount != 2 {
		t.Fatalf("expected 2 captured diagnostics, got %d", rec.ErrorsCount)
	}
}

func TestHarnessDryRunAlwaysReportsZero(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("FAKE_RSYNC_ARGS", argsFile)
	writeFakeRsync(t, `#!/usr/bin/env bash
echo "$@" > "$FAKE_RSYNC_ARGS"
exit 23
`)
	fs := afero.NewMemMapFs()
	seedSettings(t, fs, seed)
	r, _ := newTestRunner(t, fs, nil)

	res, err := r.Run(context.Background(), Options{Name: "photos", Source: "/src/photos/", Dest: "/mnt/backup/photos", DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 || res.RsyncExitCode != 23 {
		t.Fatalf("expected reported 0 / real 23, got %d / %d", res.ExitCode, res.RsyncExitCode)
	}
	args, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(args), "--dry-run") {
		t.Fatalf("expected --dry-run in args, got %q", args)
	}
	rec := loadJob(t, fs, "photos").LastRun
	if rec == nil || !rec.DryRun || *rec.Status != 23 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestHarnessMissingRsyncLeavesSettingsAlone(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSettings(t, fs, seed)
	r, out := newTestRunner(t, fs, &config.Config{RsyncBinary: "pcopy-no-such-rsync"})

	res, err := r.Run(context.Background(), Options{Name: "photos", Source: "/src", Dest: "/dst"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Missing || res.ExitCode != ExitNotFound {
		t.Fatalf("expected missing rsync with exit 2, got %+v", res)
	}
	if !strings.Contains(out.String(), "pcopy-no-such-rsync was not found") {
		t.Fatalf("missing message not shown: %q", out.String())
	}
	data, _ := afero.ReadFile(fs, settingsPath)
	if string(data) != seed {
		t.Fatalf("settings should be untouched, got:\n%s", data)
	}
}

func TestHarnessPersistenceFailureKeepsExitCode(t *testing.T) {
	writeFakeRsync(t, `#!/usr/bin/env bash
echo '>f+++++++++ a.jpg'
exit 0
`)
	base := afero.NewMemMapFs()
	seedSettings(t, base, seed)
	r, _ := newTestRunner(t, afero.NewReadOnlyFs(base), nil)

	res, err := r.Run(context.Background(), Options{Name: "photos", Source: "/src", Dest: "/dst"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0 despite read-only settings, got %d", res.ExitCode)
	}
}

func TestHarnessTestModeSimulates(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	fs := afero.NewMemMapFs()
	seedSettings(t, fs, seed)
	r, _ := newTestRunner(t, fs, &config.Config{TestMode: true})

	res, err := r.Run(context.Background(), Options{Name: "photos", Source: "/src", Dest: "/dst"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 || res.Summary.Snapshot.FilesMoved != 2 {
		t.Fatalf("unexpected simulated result: %+v", res)
	}
	rec := loadJob(t, fs, "photos").LastRun
	if rec == nil || rec.StatusStr != model.StatusPass {
		t.Fatalf("expected PASS record, got %+v", rec)
	}
	if rec.TransferredBytes == nil || *rec.TransferredBytes != 12345 {
		t.Fatalf("unexpected transferred bytes: %v", rec.TransferredBytes)
	}
}

func TestHarnessAdHocRunIsNotRecorded(t *testing.T) {
	writeFakeRsync(t, "#!/usr/bin/env bash\nexit 0\n")
	fs := afero.NewMemMapFs()
	r, _ := newTestRunner(t, fs, nil)

	res, err := r.Run(context.Background(), Options{Source: ".", Dest: "./backup"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("unexpected exit %d", res.ExitCode)
	}
	if ok, _ := afero.Exists(fs, settingsPath); ok {
		t.Fatal("ad hoc run must not create the settings file")
	}
}

func TestRunNamedUnknownJobContinues(t *testing.T) {
	writeFakeRsync(t, "#!/usr/bin/env bash\nexit 0\n")
	fs := afero.NewMemMapFs()
	seedSettings(t, fs, seed)
	r, out := newTestRunner(t, fs, nil)

	results, code, err := r.RunNamed(context.Background(), []string{"nope", "photos"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if code != ExitUnknownJob {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if len(results) != 1 || results[0].Name != "photos" {
		t.Fatalf("expected photos to still run, got %+v", results)
	}
	if !strings.Contains(out.String(), "Named backup 'nope' not found in settings") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestJobArgs(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)
	job := settings.Job{
		Name:        "photos",
		Dest:        "/mnt/backup/photos",
		Args:        settings.ArgList{"--delete"},
		ExcludeFrom: "/home/cat/.pcopy-exclude",
		Versions:    true,
	}
	got := strings.Join(JobArgs(job, []string{"--human-readable"}, "", now), " ")
	want := "--human-readable --delete --exclude-from /home/cat/.pcopy-exclude --backup --backup-dir /mnt/backup/photos/versions/20260301_093000"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}

	job.Versions = false
	job.ExcludeFrom = ""
	if got := JobArgs(job, nil, "", now); len(got) != 1 || got[0] != "--delete" {
		t.Fatalf("unexpected args %q", got)
	}
}

func TestPreview(t *testing.T) {
	r, _ := newTestRunner(t, afero.NewMemMapFs(), nil)
	got := r.Preview(Options{Source: "/My Photos/", Dest: "/dst", DryRun: true})
	if got != "rsync -a --info=progress2 --dry-run '/My Photos/' /dst" {
		t.Fatalf("unexpected preview %q", got)
	}
}
