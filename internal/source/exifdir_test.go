package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinbook/internal/indexer"
)

func writeFile(t *testing.T, root, rel string, content []byte) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0750))
	require.NoError(t, os.WriteFile(p, content, 0640))
	return p
}

func TestEnumerateFiltersByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", []byte("not a real jpeg"))
	writeFile(t, root, "b.JPEG", []byte("case insensitive"))
	writeFile(t, root, "notes.txt", []byte("ignored"))
	writeFile(t, root, "raw.dng", []byte("ignored"))
	writeFile(t, root, "trip/c.tiff", []byte("nested"))

	assets, err := NewExifDirSource(root).Enumerate(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, assets, 3)

	ids := map[string]bool{}
	for _, a := range assets {
		ids[a.ID] = true
	}
	assert.True(t, ids["a.jpg"])
	assert.True(t, ids["b.JPEG"])
	assert.True(t, ids[filepath.Join("trip", "c.tiff")], "ids are paths relative to the root")
}

func TestEnumerateToleratesMissingExif(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "plain.jpg", []byte("no exif block here"))

	assets, err := NewExifDirSource(root).Enumerate(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, assets, 1)

	a := assets[0]
	assert.Nil(t, a.TakenAt, "unreadable metadata yields no creation time")
	assert.Nil(t, a.Coord)
	require.NotNil(t, a.ModifiedAt, "the file mtime is always known")
	assert.InDelta(t, time.Now().Unix(), *a.ModifiedAt, 60)
}

func TestEnumerateSinceFilterUsesMtime(t *testing.T) {
	root := t.TempDir()
	oldPath := writeFile(t, root, "old.jpg", []byte("x"))
	writeFile(t, root, "new.jpg", []byte("y"))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	since := time.Now().Add(-time.Hour).Unix()
	assets, err := NewExifDirSource(root).Enumerate(context.Background(), &since)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "new.jpg", assets[0].ID)
}

func TestEnumerateMissingRoot(t *testing.T) {
	_, err := NewExifDirSource(filepath.Join(t.TempDir(), "nope")).Enumerate(context.Background(), nil)
	assert.Error(t, err)
}

func TestEnumerateCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExifDirSource(root).Enumerate(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChangedAfter(t *testing.T) {
	taken := int64(100)
	modified := int64(200)

	a := indexer.Asset{TakenAt: &taken, ModifiedAt: &modified}
	assert.True(t, changedAfter(a, 150), "a later modification alone is enough")
	assert.False(t, changedAfter(a, 200), "the comparison is strict")
	assert.True(t, changedAfter(a, 50))

	assert.False(t, changedAfter(indexer.Asset{}, 0), "no timestamps means never changed")
}
