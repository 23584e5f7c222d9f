// Package upload maintains the in-memory index of files in an upload
// directory: create, delete, list, and reconciliation against the disk.
package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// DefaultMaxFileSize caps one uploaded file at 10 MiB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// allowedMIMEPrefixes is the upload allow-list. A declared type passes
// when it starts with any entry.
var allowedMIMEPrefixes = []string{
	"text/",
	"image/",
	"application/pdf",
	"application/json",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"audio/",
	"video/",
}

// File is one registry record. The registry is not persisted; it is
// rebuilt from a directory scan on startup and refreshed on list.
type File struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Registry indexes the files of one upload directory. The directory is
// assumed to be exclusively owned by this server process; the watcher
// only covers the server's own out-of-band tooling, not concurrent
// writers.
type Registry struct {
	dir     string
	files   []File
	maxSize int64
	log     *zap.Logger

	watcher *watcher
}

// NewRegistry scans dir (creating it if missing) and builds the index.
func NewRegistry(dir string, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &SyncError{Err: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &SyncError{Err: err}
	}
	r := &Registry{dir: abs, maxSize: DefaultMaxFileSize, log: log}
	if err := r.Sync(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the absolute upload directory.
func (r *Registry) Dir() string { return r.dir }

// MaxFileSize returns the per-file size cap.
func (r *Registry) MaxFileSize() int64 { return r.maxSize }

// List refreshes the index against the disk and returns the records.
func (r *Registry) List() ([]File, error) {
	if err := r.Sync(); err != nil {
		return nil, err
	}
	out := make([]File, len(r.files))
	copy(out, r.files)
	return out, nil
}

// Get returns the record for id.
func (r *Registry) Get(id int) (File, error) {
	for _, f := range r.files {
		if f.ID == id {
			return f, nil
		}
	}
	return File{}, &FileNotFoundError{ID: id}
}

// Add validates nothing (callers validate first), writes data under a
// collision-free name derived from name, and registers the record.
func (r *Registry) Add(name string, data []byte) (File, error) {
	if err := r.Sync(); err != nil {
		return File{}, err
	}
	clean := strings.Trim(filepath.Base(name), `"`)
	if clean == "" || clean == "." || clean == string(filepath.Separator) {
		clean = "file"
	}
	path := r.uniquePath(clean)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return File{}, &ProcessingError{Err: err}
	}

	f := File{
		ID:   r.nextID(),
		Name: clean,
		Path: path,
		Size: int64(len(data)),
	}
	r.files = append(r.files, f)
	r.log.Info("file uploaded",
		zap.Int("id", f.ID), zap.String("name", f.Name), zap.Int64("size", f.Size))
	return f, nil
}

// Delete removes the record and its on-disk file.
func (r *Registry) Delete(id int) (File, error) {
	if err := r.Sync(); err != nil {
		return File{}, err
	}
	idx := -1
	for i, f := range r.files {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return File{}, &FileNotFoundError{ID: id}
	}
	f := r.files[idx]
	if err := os.Remove(f.Path); err != nil {
		return File{}, &DeleteError{ID: id, Err: err}
	}
	r.files = append(r.files[:idx], r.files[idx+1:]...)
	r.log.Info("file deleted", zap.Int("id", f.ID), zap.String("name", f.Name))
	return f, nil
}

// Sync reconciles the index with the directory: records whose file
// vanished are dropped, unknown files gain records.
func (r *Registry) Sync() error {
	kept := r.files[:0]
	for _, f := range r.files {
		if info, err := os.Stat(f.Path); err == nil && info.Mode().IsRegular() {
			f.Size = info.Size()
			kept = append(kept, f)
		}
	}
	r.files = kept

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return &SyncError{Err: err}
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		if r.hasPath(path) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return &SyncError{Err: err}
		}
		r.files = append(r.files, File{
			ID:   r.nextID(),
			Name: entry.Name(),
			Path: path,
			Size: info.Size(),
		})
	}
	return nil
}

// Validate checks a prospective upload: declared MIME against the
// allow-list, sniffed content type against the allow-list, size against
// the cap.
func (r *Registry) Validate(declaredMIME string, data []byte) error {
	if !AllowedMIME(declaredMIME) {
		return &UnsupportedFileTypeError{MIME: declaredMIME}
	}
	// The declared type is client-supplied; sniff the bytes as well so a
	// disallowed payload cannot ride in under a friendly label.
	if detected := mimetype.Detect(data); !AllowedMIME(detected.String()) {
		return &UnsupportedFileTypeError{MIME: detected.String()}
	}
	if int64(len(data)) > r.maxSize {
		return &FileTooLargeError{Size: int64(len(data)), Max: r.maxSize}
	}
	return nil
}

// AllowedMIME reports whether a media type passes the upload allow-list.
func AllowedMIME(mime string) bool {
	// Strip parameters: "text/plain; charset=utf-8" → "text/plain".
	if idx := strings.IndexByte(mime, ';'); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	for _, prefix := range allowedMIMEPrefixes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}

func (r *Registry) hasPath(path string) bool {
	for _, f := range r.files {
		if f.Path == path {
			return true
		}
	}
	return false
}

// nextID hands out max+1, so ids restart densely after a rescan but
// never collide within one registry lifetime.
func (r *Registry) nextID() int {
	next := 0
	for _, f := range r.files {
		if f.ID >= next {
			next = f.ID + 1
		}
	}
	return next
}

// uniquePath uniquifies name inside the upload dir by appending _N
// before the extension on collision: doc.txt, doc_1.txt, doc_2.txt, ...
func (r *Registry) uniquePath(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 0; ; counter++ {
		candidate := name
		if counter > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, counter, ext)
		}
		full := filepath.Join(r.dir, candidate)
		if _, err := os.Stat(full); os.IsNotExist(err) {
			return full
		}
	}
}
