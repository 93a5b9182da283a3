package settings

import (
	"path/filepath"
	"strconv"

	"github.com/postphotos/purrfectcopy/internal/rsync"
	"github.com/postphotos/purrfectcopy/internal/runstore"
)

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	// Optional checks are reported but do not fail the result.
	Optional bool `json:"optional,omitempty"`
}

// Doctor checks the environment a backup needs: rsync, cowsay, a writable
// settings directory and a settings file that parses.
func Doctor(store *Store, rsyncBinary string) DoctorResult {
	checks := make([]DoctorCheck, 0, 5)
	dep := rsync.DependencyStatus(rsyncBinary)
	checks = append(checks, DoctorCheck{
		Name:    "dependency:rsync",
		OK:      dep.RsyncFound,
		Message: dependencyMessage(dep.RsyncFound, dep.RsyncPath, "rsync"),
	})
	checks = append(checks, DoctorCheck{
		Name:     "dependency:cowsay",
		OK:       dep.CowsayFound,
		Message:  dependencyMessage(dep.CowsayFound, dep.CowsayPath, "cowsay"),
		Optional: true,
	})

	dirOK, dirMessage := runstore.WritableDir(store.Fs(), filepath.Dir(store.Path()))
	checks = append(checks, DoctorCheck{
		Name:    "directory:settings",
		OK:      dirOK,
		Message: dirMessage,
	})

	doc, err := store.Load()
	if err != nil {
		checks = append(checks, DoctorCheck{Name: "settings:parse", OK: false, Message: err.Error()})
	} else {
		msg := "ok"
		if !runstore.Exists(store.Fs(), store.Path()) {
			msg = "not created yet (run pcopy setup)"
		}
		checks = append(checks, DoctorCheck{Name: "settings:parse", OK: true, Message: msg})
		jobs := doc.Jobs()
		checks = append(checks, DoctorCheck{
			Name:     "settings:jobs",
			OK:       len(jobs) > 0,
			Message:  strconv.Itoa(len(jobs)) + " job(s) configured",
			Optional: true,
		})
	}

	ok := true
	for _, c := range checks {
		if !c.OK && !c.Optional {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}
