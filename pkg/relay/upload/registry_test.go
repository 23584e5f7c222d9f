package upload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(t.TempDir(), nil)
	require.NoError(t, err)
	return r
}

func TestAddListDelete(t *testing.T) {
	r := newRegistry(t)

	f, err := r.Add("doc.txt", []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.ID)
	assert.Equal(t, "doc.txt", f.Name)
	assert.Equal(t, int64(4), f.Size)

	// The on-disk file exists with matching size.
	info, err := os.Stat(f.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())

	files, err := r.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, f, files[0])

	deleted, err := r.Delete(0)
	require.NoError(t, err)
	assert.Equal(t, f.ID, deleted.ID)
	_, err = os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))

	files, err = r.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCollisionNaming(t *testing.T) {
	r := newRegistry(t)

	a, err := r.Add("doc.txt", []byte("one"))
	require.NoError(t, err)
	b, err := r.Add("doc.txt", []byte("two"))
	require.NoError(t, err)
	c, err := r.Add("doc.txt", []byte("three"))
	require.NoError(t, err)

	assert.Equal(t, "doc.txt", filepath.Base(a.Path))
	assert.Equal(t, "doc_1.txt", filepath.Base(b.Path))
	assert.Equal(t, "doc_2.txt", filepath.Base(c.Path))
}

func TestQuotedFilenameCleaned(t *testing.T) {
	r := newRegistry(t)
	f, err := r.Add(`"notes.txt"`, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", f.Name)
}

func TestStartupScanIndexesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pre.txt"), []byte("12345"), 0o644))

	r, err := NewRegistry(dir, nil)
	require.NoError(t, err)
	files, err := r.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pre.txt", files[0].Name)
	assert.Equal(t, int64(5), files[0].Size)
}

func TestSyncDropsVanishedFiles(t *testing.T) {
	r := newRegistry(t)
	f, err := r.Add("gone.txt", []byte("x"))
	require.NoError(t, err)

	// Removed out of band: the next list drops the record.
	require.NoError(t, os.Remove(f.Path))
	files, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSyncPicksUpForeignFiles(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(), "dropped.bin"), []byte("abc"), 0o644))

	files, err := r.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "dropped.bin", files[0].Name)
}

func TestDeleteUnknownID(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Delete(42)
	var notFound *FileNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 42, notFound.ID)
}

func TestValidate(t *testing.T) {
	r := newRegistry(t)

	assert.NoError(t, r.Validate("text/plain", []byte("hello")))
	assert.NoError(t, r.Validate("text/plain; charset=utf-8", []byte("hello")))

	var unsupported *UnsupportedFileTypeError
	err := r.Validate("application/x-msdownload", []byte("MZ\x90\x00"))
	assert.ErrorAs(t, err, &unsupported)

	r.maxSize = 4
	var tooLarge *FileTooLargeError
	err = r.Validate("text/plain", []byte("hello"))
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(5), tooLarge.Size)
	assert.Equal(t, int64(4), tooLarge.Max)
}

func TestAllowedMIME(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"text/plain", true},
		{"image/png", true},
		{"audio/mpeg", true},
		{"video/mp4", true},
		{"application/pdf", true},
		{"application/json", true},
		{"application/msword", true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"application/octet-stream", false},
		{"application/x-sh", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AllowedMIME(tt.mime), tt.mime)
	}
}

func TestWatcherResync(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Watch())
	defer r.CloseWatcher()

	// Without waiting on fsnotify delivery timing, DrainEvents after a
	// manual dirty mark must resync.
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(), "side.txt"), []byte("x"), 0o644))
	select {
	case r.watcher.dirty <- struct{}{}:
	default: // fsnotify already marked it dirty
	}
	r.DrainEvents()

	require.Len(t, r.files, 1)
	assert.Equal(t, "side.txt", r.files[0].Name)
}
