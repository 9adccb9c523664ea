package attachments

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sep is the private-use glyph exports put between time components.
const sep = "\uf022"

func TestNormalizeName(t *testing.T) {
	cases := []struct{ name, want string }{
		{"November 6, 2012 at 12" + sep + "42" + sep + "24 PM", "2012-11-06 12:42:24 PM"},
		{"March 3, 2014 at 9" + sep + "05" + sep + "07 AM EST", "2014-03-03 09:05:07 AM"},
		{"Photo - July 14, 2015 at 11" + sep + "59" + sep + "01 PM", "2015-07-14 11:59:01 PM"},
		{"November 6, 2012 at 12:42:24 PM", ""},
		{"IMG_0001", ""},
		{"Smarch 6, 2012 at 12" + sep + "42" + sep + "24 PM", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.name), "name %q", tc.name)
	}
}

func TestKeyForTime_MatchesNormalizedName(t *testing.T) {
	ts := time.Date(2012, 11, 6, 12, 42, 24, 0, time.Local)
	assert.Equal(t, NormalizeName("November 6, 2012 at 12"+sep+"42"+sep+"24 PM"), KeyForTime(ts))
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"November 6, 2012 at 12" + sep + "42" + sep + "24 PM.jpg",
		"November 6, 2012 at 12" + sep + "42" + sep + "24 PM_2.png",
		"notes.txt",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "March 3, 2014 at 9"+sep+"05"+sep+"07 AM"), 0o755))

	idx, err := Build(dir)
	require.NoError(t, err)
	assert.Len(t, idx, 1, "directories and unmatched names are excluded")

	files := idx.Lookup("2012-11-06 12:42:24 PM")
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, names[0]), files[0])
	assert.Equal(t, filepath.Join(dir, names[1]), files[1])

	assert.Nil(t, idx.Lookup("2014-03-03 09:05:07 AM"))

	var empty Index
	assert.Nil(t, empty.Lookup("2012-11-06 12:42:24 PM"))
}

func TestBuild_MissingDir(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
