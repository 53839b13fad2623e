// Package tags provides metadata and audio-stream probing for audiobook files.
package tags

import (
	"path/filepath"
	"strings"
	"time"
)

// File extensions supported by the tags package.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtOGG  = ".ogg"
	ExtWAV  = ".wav"
)

// Tag contains the metadata relevant to an audiobook segment.
type Tag struct {
	Path   string
	Title  string
	Artist string
	Album  string
}

// AudioInfo describes audio stream properties.
type AudioInfo struct {
	Duration   time.Duration
	SampleRate int
}

// IsAudioFile returns true if the path has a supported audio file extension.
func IsAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ExtMP3 || ext == ExtFLAC || ext == ExtOGG || ext == ExtWAV
}
