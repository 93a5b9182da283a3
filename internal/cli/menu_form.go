package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/postphotos/purrfectcopy/internal/backup"
	"github.com/postphotos/purrfectcopy/internal/settings"
)

type menuFormKind int

const (
	menuFormKindJob menuFormKind = iota
	menuFormKindCustom
)

type menuFieldKind int

const (
	menuFieldString menuFieldKind = iota
	menuFieldBool
)

type menuFormField struct {
	Key      string
	Label    string
	Help     string
	Kind     menuFieldKind
	Value    string
	Required bool
}

type menuForm struct {
	Kind    menuFormKind
	Title   string
	IsEdit  bool
	JobName string
	Fields  []menuFormField
	Index   int
	Input   textinput.Model
	Error   string
	Saving  bool
}

func newJobForm(existing *settings.Job, width int) *menuForm {
	f := &menuForm{Kind: menuFormKindJob}
	if existing == nil {
		f.Title = "New Backup Wizard"
		f.Fields = []menuFormField{
			{Key: "name", Label: "Backup Name", Help: "Used with 'pcopy do <name>'", Kind: menuFieldString, Required: true},
			{Key: "source", Label: "Source", Help: "Folder to back up; a trailing / copies its contents", Kind: menuFieldString, Required: true},
			{Key: "dest", Label: "Destination", Help: "Where the copy goes", Kind: menuFieldString, Required: true},
			{Key: "args", Label: "Extra rsync Args", Help: "Space separated, e.g. --delete --exclude .cache", Kind: menuFieldString},
			{Key: "exclude_from", Label: "Exclude File", Help: "Optional path passed as --exclude-from", Kind: menuFieldString},
			{Key: "versions", Label: "Keep Versions", Help: "Move replaced files into a timestamped folder", Kind: menuFieldBool, Value: "n"},
			{Key: "backup_versions_dir", Label: "Versions Dir", Help: "Optional; defaults to <dest>/.versions", Kind: menuFieldString},
		}
	} else {
		f.Title = "Edit Backup: " + existing.Name
		f.IsEdit = true
		f.JobName = existing.Name
		f.Fields = []menuFormField{
			{Key: "source", Label: "Source", Help: "Folder to back up; a trailing / copies its contents", Kind: menuFieldString, Required: true, Value: existing.Source},
			{Key: "dest", Label: "Destination", Help: "Where the copy goes", Kind: menuFieldString, Required: true, Value: existing.Dest},
			{Key: "args", Label: "Extra rsync Args", Help: "Space separated, e.g. --delete --exclude .cache", Kind: menuFieldString, Value: strings.Join(existing.Args, " ")},
			{Key: "exclude_from", Label: "Exclude File", Help: "Optional path passed as --exclude-from", Kind: menuFieldString, Value: existing.ExcludeFrom},
			{Key: "versions", Label: "Keep Versions", Help: "Move replaced files into a timestamped folder", Kind: menuFieldBool, Value: boolToYN(existing.Versions)},
			{Key: "backup_versions_dir", Label: "Versions Dir", Help: "Optional; defaults to <dest>/.versions", Kind: menuFieldString, Value: existing.BackupVersionsDir},
		}
	}
	return finishForm(f, width)
}

func newCustomForm(width int) *menuForm {
	f := &menuForm{
		Kind:  menuFormKindCustom,
		Title: "Custom Run",
		Fields: []menuFormField{
			{Key: "source", Label: "Source", Help: "Folder to back up", Kind: menuFieldString, Required: true, Value: "."},
			{Key: "dest", Label: "Destination", Help: "Where the copy goes", Kind: menuFieldString, Required: true, Value: "./backup"},
			{Key: "dry_run", Label: "Dry Run", Help: "Show what would change without copying", Kind: menuFieldBool, Value: "y"},
		},
	}
	return finishForm(f, width)
}

func finishForm(f *menuForm, width int) *menuForm {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 1024
	input.Width = clampInt(width-8, 20, 120)
	f.Input = input
	f.loadFieldIntoInput()
	f.Input.Focus()
	return f
}

func (m menuModel) viewForm() string {
	if m.form == nil {
		return ""
	}
	header := menuTitleStyle.Render(m.form.Title)
	hints := menuMutedStyle.Render("tab/shift+tab or up/down: move | left/right/space: toggle | y/n: set yes/no | enter: next/save | ctrl+s: save | esc: cancel")

	lines := make([]string, 0, len(m.form.Fields)+6)
	for i, f := range m.form.Fields {
		prefix := "  "
		if i == m.form.Index {
			prefix = "> "
		}
		display := strings.TrimSpace(f.Value)
		if f.Kind == menuFieldBool {
			v, _ := parseBool(display)
			display = yesNo(v)
		}
		if display == "" {
			display = menuMutedStyle.Render("(empty)")
		}
		line := fmt.Sprintf("%s%s: %s", prefix, f.Label, display)
		lines = append(lines, wrapOrTrim(line, maxInt(m.width-6, 20)))
	}

	curr := m.form.currentField()
	inputLabel := fmt.Sprintf("\n%s\n", curr.Label)
	inputHelp := ""
	if strings.TrimSpace(curr.Help) != "" {
		inputHelp = menuMutedStyle.Render(curr.Help) + "\n"
	}
	input := m.form.Input.View()
	status := ""
	if m.form.Saving {
		status = menuMutedStyle.Render("\nSaving...")
	}
	if strings.TrimSpace(m.form.Error) != "" {
		status = "\n" + menuErrorStyle.Render(m.form.Error)
	}

	panel := menuPanelStyle.Width(maxInt(m.width, 40)).Render(strings.Join(lines, "\n") + inputLabel + inputHelp + input + status)
	return lipgloss.JoinVertical(lipgloss.Left, header, hints, panel)
}

func (f *menuForm) currentField() menuFormField {
	if len(f.Fields) == 0 {
		return menuFormField{}
	}
	if f.Index < 0 {
		f.Index = 0
	}
	if f.Index >= len(f.Fields) {
		f.Index = len(f.Fields) - 1
	}
	return f.Fields[f.Index]
}

func (f *menuForm) commitInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	f.Fields[f.Index].Value = strings.TrimSpace(f.Input.Value())
}

func (f *menuForm) loadFieldIntoInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	f.Input.SetValue(f.Fields[f.Index].Value)
	f.Input.CursorEnd()
}

func (f *menuForm) toggleBoolField() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	curr := f.Fields[f.Index]
	if curr.Kind != menuFieldBool {
		return
	}
	v, _ := parseBool(curr.Value)
	f.setBoolField(!v)
}

func (f *menuForm) setBoolField(v bool) {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	curr := f.Fields[f.Index]
	if curr.Kind != menuFieldBool {
		return
	}
	curr.Value = boolToYN(v)
	f.Fields[f.Index] = curr
	f.loadFieldIntoInput()
}

// values validates every field and returns them keyed by field key.
func (f *menuForm) values() (map[string]string, error) {
	if f == nil {
		return nil, errors.New("internal form error")
	}
	vals := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		v := strings.TrimSpace(field.Value)
		if field.Required && v == "" {
			return nil, fmt.Errorf("%s is required", strings.ToLower(field.Label))
		}
		if field.Kind == menuFieldBool {
			if _, ok := parseBool(v); !ok {
				return nil, fmt.Errorf("%s must be y or n", strings.ToLower(field.Label))
			}
		}
		vals[field.Key] = v
	}
	return vals, nil
}

func (f *menuForm) toJob() (settings.Job, error) {
	vals, err := f.values()
	if err != nil {
		return settings.Job{}, err
	}
	name := vals["name"]
	if f.IsEdit {
		name = f.JobName
	}
	versions, _ := parseBool(defaultIfEmpty(vals["versions"], "n"))
	job := settings.Job{
		Name:              name,
		Source:            vals["source"],
		Dest:              vals["dest"],
		ExcludeFrom:       vals["exclude_from"],
		Versions:          versions,
		BackupVersionsDir: vals["backup_versions_dir"],
	}
	if args := strings.Fields(vals["args"]); len(args) > 0 {
		job.Args = settings.ArgList(args)
	}
	return job, nil
}

func (f *menuForm) toCustomOptions() (backup.Options, error) {
	vals, err := f.values()
	if err != nil {
		return backup.Options{}, err
	}
	dryRun, _ := parseBool(defaultIfEmpty(vals["dry_run"], "y"))
	return backup.Options{
		Source: vals["source"],
		Dest:   vals["dest"],
		DryRun: dryRun,
	}, nil
}
