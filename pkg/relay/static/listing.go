package static

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// ListingDataFile is the auxiliary JSON file the listing template reads.
// It is rewritten in the site root on every listing request; the listing
// is never cached.
const ListingDataFile = ".relay-listing.json"

// ListingEntry is one child of a listed directory.
type ListingEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "directory"
	Size int64  `json:"size"`
	Path string `json:"path"` // relative to the site root
}

// renderListing scans dir, writes the JSON data file into the site root
// and returns the listing page.
func (s *ServerStaticFiles) renderListing(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("directory listing: %w", err)
	}

	rel, err := filepath.Rel(s.root, dir)
	if err != nil {
		rel = "."
	}

	listing := make([]ListingEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() == ListingDataFile {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		kind := "file"
		var size int64
		if entry.IsDir() {
			kind = "directory"
		} else {
			size = info.Size()
		}
		listing = append(listing, ListingEntry{
			Name: entry.Name(),
			Type: kind,
			Size: size,
			Path: filepath.ToSlash(filepath.Join(rel, entry.Name())),
		})
	}

	data, err := json.Marshal(listing)
	if err != nil {
		return nil, fmt.Errorf("directory listing: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, ListingDataFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("directory listing: %w", err)
	}
	return []byte(listingTemplate), nil
}
