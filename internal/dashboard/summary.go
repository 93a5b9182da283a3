package dashboard

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/postphotos/purrfectcopy/internal/humanize"
	"github.com/postphotos/purrfectcopy/internal/mascot"
)

const summaryErrorLimit = 5

// Headline is the first line of the finish panel.
func (s Summary) Headline() string {
	if s.Success() {
		if s.DryRun {
			return "✅ Purrfect Success! (dry run) " + s.Goodbye
		}
		return "✅ Purrfect Success! " + s.Goodbye
	}
	return fmt.Sprintf("😿 Oh no! Rsync finished with exit code %d and %d errors.", s.ExitCode, len(s.Snapshot.Errors))
}

// FirstErrors returns at most the first five captured errors.
func (s Summary) FirstErrors() []string {
	if len(s.Snapshot.Errors) <= summaryErrorLimit {
		return s.Snapshot.Errors
	}
	return s.Snapshot.Errors[:summaryErrorLimit]
}

// Table renders the stats grid shown under the headline.
func (s Summary) Table() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Row = text.Colors{text.Reset}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})
	t.AppendHeader(table.Row{text.Bold.Sprint("Stat"), text.Bold.Sprint("Value")})
	t.AppendRows([]table.Row{
		{"Files moved", s.Snapshot.FilesMoved},
		{"Total files", s.Snapshot.UniqueFiles},
		{"Elapsed", humanize.OptionalDuration(s.Elapsed)},
		{"Transferred", humanize.OptionalBytes(s.TransferredBytes)},
		{"Errors", len(s.Snapshot.Errors)},
		{"Duplicate transfers", s.Snapshot.Duplicates},
	})
	return t.Render()
}

// Render is the plain text finish panel.
func (s Summary) Render() string {
	var b strings.Builder
	if s.Title != "" {
		b.WriteString(s.Title + "\n")
	}
	b.WriteString(s.Headline() + "\n")
	if !s.Success() {
		if errs := s.FirstErrors(); len(errs) > 0 {
			b.WriteString("First 5 errors:\n")
			for _, e := range errs {
				b.WriteString("  - " + e + "\n")
			}
		}
	}
	b.WriteString(s.Table() + "\n")
	if s.Art != "" {
		b.WriteString(s.Art)
		if !strings.HasSuffix(s.Art, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderMissing tells the user rsync could not be found.
func RenderMissing(w io.Writer, m *mascot.Mascot, binary string) {
	if m == nil {
		m = mascot.New("")
	}
	fmt.Fprintf(w, "😿 %s was not found on PATH. Install rsync and try again.\n", binary)
	fmt.Fprint(w, m.Art("rsync missing", "rsyncat"))
}
