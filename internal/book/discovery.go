package book

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/lmorel/tome/internal/tags"
)

// ErrNoSegments is returned when a scanned folder contains no audio files.
var ErrNoSegments = errors.New("book: no audio files found")

// idNamespace salts the uuid v5 derivation of book ids.
const idNamespace = "tome://book/"

// Scan walks dir and builds a Book from the audio files found.
// Segments are ordered by full path, so numbered files and numbered
// subfolders ("Book 1/", "Book 2/") keep their natural order. A folder
// whose audio files span more than one immediate subdirectory is treated
// as a series named after the folder.
func Scan(dir string) (*Book, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		// Skip unreadable entries and keep scanning.
		if walkErr != nil {
			return nil //nolint:nilerr // intentionally skipping errors
		}
		if d.IsDir() || !tags.IsAudioFile(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if len(paths) == 0 {
		return nil, ErrNoSegments
	}
	sort.Strings(paths)

	b := &Book{
		ID:       StableID(root),
		Title:    filepath.Base(root),
		Path:     root,
		Segments: make([]Segment, 0, len(paths)),
	}

	parents := make(map[string]struct{})
	for _, p := range paths {
		seg := Segment{Path: p, Name: segmentName(p)}
		if info, err := tags.ReadAudioInfo(p); err == nil {
			seg.Duration = info.Duration
		}
		b.Segments = append(b.Segments, seg)
		b.TotalDuration += seg.Duration
		parents[filepath.Dir(p)] = struct{}{}
	}

	if len(parents) > 1 {
		b.IsSeries = true
		b.SeriesName = b.Title
	}

	// Prefer the tagged album name over the folder name for the title.
	if t, err := tags.Read(b.Segments[0].Path); err == nil && t.Album != "" {
		b.Title = t.Album
	}

	return b, nil
}

// StableID derives a book id from its folder path. The same folder maps
// to the same id across rescans, so stored progress survives re-discovery.
func StableID(absPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(idNamespace+filepath.Clean(absPath))).String()
}

// segmentName returns the display name for a segment, preferring the
// tagged title over the file name.
func segmentName(path string) string {
	if t, err := tags.Read(path); err == nil && t.Title != "" {
		return t.Title
	}
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))]
}
