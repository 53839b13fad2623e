package tags

import (
	"os"
	"path/filepath"

	"github.com/dhowden/tag"
)

// Read reads tag metadata from an audio file.
// Files without usable tags fall back to the file name as title.
func Read(path string) (*Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged files are common in audiobook rips; the name is enough.
		return &Tag{Path: path, Title: baseName(path)}, nil
	}

	title := m.Title()
	if title == "" {
		title = baseName(path)
	}

	return &Tag{
		Path:   path,
		Title:  title,
		Artist: m.Artist(),
		Album:  m.Album(),
	}, nil
}

// baseName returns the file name without its extension.
func baseName(path string) string {
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))]
}
