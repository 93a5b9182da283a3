package settings

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/postphotos/purrfectcopy/internal/model"
)

const (
	KeyRsyncOptions      = "rsync_options"
	KeyBackupVersionsDir = "backup_versions_dir"
	KeyLastRun           = "last_run"
	DefaultJobName       = "main-backup"
)

var ErrJobNotFound = errors.New("backup job not found")

// Top-level keys that configure the program rather than name a job.
var reservedKeys = map[string]bool{
	KeyRsyncOptions:      true,
	KeyBackupVersionsDir: true,
	"quote_pool":         true,
	"cow_hold_seconds":   true,
	"cow_path":           true,
	"rsync_binary":       true,
	"slogans":            true,
	"cat_facts":          true,
	"quotes":             true,
	"goodbyes":           true,
	"stages":             true,
	"log":                true,
}

func IsReservedKey(key string) bool {
	return reservedKeys[key]
}

// Job is one named backup.
type Job struct {
	Name              string           `yaml:"-" json:"name"`
	Source            string           `yaml:"source" json:"source"`
	Dest              string           `yaml:"dest" json:"dest"`
	Args              ArgList          `yaml:"args,omitempty" json:"args,omitempty"`
	ExcludeFrom       string           `yaml:"exclude_from,omitempty" json:"exclude_from,omitempty"`
	Versions          bool             `yaml:"versions,omitempty" json:"versions,omitempty"`
	BackupVersionsDir string           `yaml:"backup_versions_dir,omitempty" json:"backup_versions_dir,omitempty"`
	LastRun           *model.RunRecord `yaml:"-" json:"last_run,omitempty"`
}

// VersionsDir is where rsync --backup-dir snapshots for this job live.
func (j Job) VersionsDir(global string) string {
	if v := strings.TrimSpace(j.BackupVersionsDir); v != "" {
		return v
	}
	if v := strings.TrimSpace(global); v != "" {
		return v
	}
	return filepath.Join(j.Dest, "versions")
}

// Jobs returns every job in file order. Entries that are not mappings or do
// not decode are skipped.
func (d *Document) Jobs() []Job {
	jobs := make([]Job, 0, len(d.root.Content)/2)
	for i := 0; i+1 < len(d.root.Content); i += 2 {
		name := d.root.Content[i].Value
		if IsReservedKey(name) {
			continue
		}
		job, ok := decodeJob(name, d.root.Content[i+1])
		if !ok {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func (d *Document) FindJob(name string) (Job, error) {
	target := strings.TrimSpace(name)
	if target == "" {
		return Job{}, fmt.Errorf("job name is required")
	}
	if !IsReservedKey(target) {
		if job, ok := decodeJob(target, mappingValue(d.root, target)); ok {
			return job, nil
		}
	}
	for _, job := range d.Jobs() {
		if strings.EqualFold(job.Name, target) {
			return job, nil
		}
	}
	return Job{}, fmt.Errorf("%w: %q", ErrJobNotFound, target)
}

// UpsertJob writes the job's own fields, keeping last_run and any keys this
// program does not manage. It reports whether the job was created.
func (d *Document) UpsertJob(job Job) (bool, error) {
	name := strings.TrimSpace(job.Name)
	if existing, err := d.FindJob(name); err == nil {
		name = existing.Name
	} else {
		name = canonicalJobName(name)
	}
	if name == "" {
		return false, fmt.Errorf("job name is required")
	}
	if IsReservedKey(name) {
		return false, fmt.Errorf("%q is a reserved settings key", name)
	}
	if strings.TrimSpace(job.Source) == "" {
		return false, fmt.Errorf("source is required")
	}
	if strings.TrimSpace(job.Dest) == "" {
		return false, fmt.Errorf("dest is required")
	}

	existing := mappingValue(d.root, name)
	created := existing == nil || existing.Kind != yaml.MappingNode
	jn := d.jobMapping(name)

	if err := setJobString(jn, "source", job.Source); err != nil {
		return false, err
	}
	if err := setJobString(jn, "dest", job.Dest); err != nil {
		return false, err
	}
	if len(job.Args) > 0 {
		n, err := encodeNode([]string(job.Args))
		if err != nil {
			return false, err
		}
		setMappingValue(jn, "args", n)
	} else {
		deleteMappingKey(jn, "args")
	}
	if err := setJobString(jn, "exclude_from", job.ExcludeFrom); err != nil {
		return false, err
	}
	if job.Versions {
		n, err := encodeNode(true)
		if err != nil {
			return false, err
		}
		setMappingValue(jn, "versions", n)
	} else {
		deleteMappingKey(jn, "versions")
	}
	if err := setJobString(jn, "backup_versions_dir", job.BackupVersionsDir); err != nil {
		return false, err
	}
	return created, nil
}

func (d *Document) RemoveJob(name string) (Job, error) {
	job, err := d.FindJob(name)
	if err != nil {
		return Job{}, err
	}
	d.Delete(job.Name)
	return job, nil
}

func (d *Document) SetLastRun(job string, record any) error {
	return d.SetJobField(job, KeyLastRun, record)
}

// RsyncOptions are prepended to every job's own arguments.
func (d *Document) RsyncOptions() []string {
	var opts ArgList
	if _, err := d.Decode(KeyRsyncOptions, &opts); err != nil {
		return nil
	}
	return opts
}

func (d *Document) EnsureRsyncOptions() error {
	if d.Has(KeyRsyncOptions) {
		return nil
	}
	return d.Set(KeyRsyncOptions, []string{})
}

func (d *Document) BackupVersionsDir() string {
	var v string
	if _, err := d.Decode(KeyBackupVersionsDir, &v); err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func decodeJob(name string, n *yaml.Node) (Job, bool) {
	if n == nil || n.Kind != yaml.MappingNode {
		return Job{}, false
	}
	var job Job
	if err := n.Decode(&job); err != nil {
		return Job{}, false
	}
	job.Name = name
	if lr := mappingValue(n, KeyLastRun); lr != nil && lr.Kind == yaml.MappingNode {
		var rec model.RunRecord
		if err := lr.Decode(&rec); err == nil {
			job.LastRun = &rec
		}
	}
	return job, true
}

func setJobString(jn *yaml.Node, key, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		deleteMappingKey(jn, key)
		return nil
	}
	n, err := encodeNode(v)
	if err != nil {
		return err
	}
	setMappingValue(jn, key, n)
	return nil
}

func canonicalJobName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		isWord := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if isWord {
			b.WriteRune(r)
			prevDash = false
			continue
		}
		if !prevDash {
			b.WriteRune('-')
			prevDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
