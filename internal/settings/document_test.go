package settings

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# pcopy settings
rsync_options:
  - --delete
main-backup:
  source: /home/cat
  dest: /mnt/backup
  custom: keep
photos:
  source: /pics
  dest: /mnt/pics
  args: --exclude=*.tmp --checksum
  versions: true
slogans: [Hi]
stray: 3
`

func TestParseDocumentRoundTripKeepsOrderAndComments(t *testing.T) {
	doc, err := ParseDocument([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"rsync_options", "main-backup", "photos", "slogans", "stray"}, doc.Keys())

	require.NoError(t, doc.SetLastRun("main-backup", map[string]any{"status_str": "PASS"}))
	out, err := doc.Marshal()
	require.NoError(t, err)
	text := string(out)
	assert.True(t, strings.HasPrefix(text, "# pcopy settings\n"), text)
	assert.Contains(t, text, "custom: keep")
	assert.Less(t, strings.Index(text, "main-backup:"), strings.Index(text, "photos:"))
	assert.Contains(t, text, "last_run:\n    status_str: PASS")
}

func TestParseDocumentEmptyAndNull(t *testing.T) {
	for _, in := range []string{"", "   \n", "~\n", "# only a comment\n"} {
		doc, err := ParseDocument([]byte(in))
		require.NoError(t, err, "input %q", in)
		assert.Empty(t, doc.Keys())
	}
}

func TestParseDocumentRejectsNonMapping(t *testing.T) {
	_, err := ParseDocument([]byte("- a\n- b\n"))
	assert.Error(t, err)
	_, err = ParseDocument([]byte("a: [unclosed\n"))
	assert.Error(t, err)
}

func TestSetJobFieldReplacesScalarJob(t *testing.T) {
	doc, err := ParseDocument([]byte("job: nothing-here\n"))
	require.NoError(t, err)
	require.NoError(t, doc.SetJobField("job", "last_run", map[string]int{"errors_count": 0}))
	var got map[string]map[string]int
	found, err := doc.Decode("job", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, got["last_run"]["errors_count"])
}

func TestStoreLoadMissingAndSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/cfg/s.yml")
	doc, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Keys())

	_, created, err := store.Backup()
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, doc.Set("rsync_options", []string{}))
	require.NoError(t, store.Save(doc))
	data, err := afero.ReadFile(fs, "/cfg/s.yml")
	require.NoError(t, err)
	assert.Equal(t, "rsync_options: []\n", string(data))

	bak, created, err := store.Backup()
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "/cfg/s.yml.bak", bak)
}

func TestStoreUpdate(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/s.yml")
	err := store.Update(func(d *Document) error {
		_, err := d.UpsertJob(Job{Name: "main-backup", Source: "/a", Dest: "/b"})
		return err
	})
	require.NoError(t, err)
	doc, err := store.Load()
	require.NoError(t, err)
	job, err := doc.FindJob("main-backup")
	require.NoError(t, err)
	assert.Equal(t, "/a", job.Source)
}
