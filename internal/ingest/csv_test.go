package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/attachments"
)

const csvExport = "\xEF\xBB\xBF" + `Date,Phone Number,Name,Message
"Nov 6, 2012, 12:42:24 PM",+1 (555) 123-4567,Alice,"look at this"
"Nov 6, 2012, 12:43:00 PM",5551234567,Me,"nice, thanks"
`

func attachmentsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	name := "November 6, 2012 at 12\uf02242\uf02224 PM.jpg"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.jpg"), []byte{0xFF}, 0o644))
	return dir
}

func TestImportCSV_WithAttachments(t *testing.T) {
	f := newFixture(t)
	idx, err := attachments.Build(attachmentsDir(t))
	require.NoError(t, err)

	stats, err := f.run(t, DefaultOptions()).ImportCSV(context.Background(), strings.NewReader(csvExport), idx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 2, Inserted: 2, MediaSaved: 1}, stats)

	msgs := f.messages(t)
	require.Len(t, msgs, 2)

	withFile := msgs[0]
	assert.Equal(t, archive.TypeMMS, withFile.Type)
	assert.Equal(t, archive.DirectionInbox, withFile.Direction)
	assert.Equal(t, "look at this", *withFile.Text)

	reply := msgs[1]
	assert.Equal(t, archive.TypeSMS, reply.Type)
	assert.Equal(t, archive.DirectionSent, reply.Direction)
	assert.Equal(t, withFile.ConversationID, reply.ConversationID)

	owner, err := f.repo.FindContactByAddress(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, reply.ContactID)

	media := f.media(t)
	require.Len(t, media, 1)
	assert.Equal(t, withFile.ID, media[0].MessageID)
	assert.Equal(t, "image/jpeg", *media[0].ContentType)
	_, err = os.Stat(*media[0].FilePath)
	assert.NoError(t, err)
}

func TestImportCSV_RerunInsertsOnce(t *testing.T) {
	f := newFixture(t)
	for range 2 {
		_, err := f.run(t, DefaultOptions()).ImportCSV(context.Background(), strings.NewReader(csvExport), nil)
		require.NoError(t, err)
	}
	assert.Len(t, f.messages(t), 2)
}

func TestImportCSV_BadDate(t *testing.T) {
	doc := `Date,Phone Number,Name,Message
"sometime",5551234567,Alice,hello
"Nov 6, 2012, 12:42:24 PM",5551234567,Alice,hello
`
	f := newFixture(t)
	_, err := f.run(t, DefaultOptions()).ImportCSV(context.Background(), strings.NewReader(doc), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Empty(t, f.messages(t))

	opts := DefaultOptions()
	opts.SkipInvalid = true
	stats, err := f.run(t, opts).ImportCSV(context.Background(), strings.NewReader(doc), nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 2, Inserted: 1, Invalid: 1}, stats)
}

func TestImportCSV_MissingColumn(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, DefaultOptions()).ImportCSV(context.Background(), strings.NewReader("Date,Name,Message\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Phone Number")
}

func TestImportCSVFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvExport), 0o644))

	stats, err := f.run(t, DefaultOptions()).ImportCSVFile(context.Background(), path, attachmentsDir(t))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MediaSaved)

	_, err = f.run(t, DefaultOptions()).ImportCSVFile(context.Background(), path, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
