package tags

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsAudioFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/books/chapter01.mp3", true},
		{"/books/chapter01.MP3", true},
		{"/books/chapter01.flac", true},
		{"/books/chapter01.ogg", true},
		{"/books/chapter01.wav", true},
		{"/books/cover.jpg", false},
		{"/books/notes.txt", false},
		{"/books/chapter01", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsAudioFile(tt.path); got != tt.want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRead_UntaggedFallsBackToFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "03 - The Long Road.mp3")
	if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	tg, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if tg.Title != "03 - The Long Road" {
		t.Errorf("Title = %q, want file name fallback", tg.Title)
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, err := Read("/nonexistent/chapter.mp3"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadAudioInfo_UnsupportedFormat(t *testing.T) {
	if _, err := ReadAudioInfo("/books/cover.png"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestReadAudioInfo_UnknownDurationFormats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chapter.ogg")
	if err := os.WriteFile(path, []byte("ogg"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := ReadAudioInfo(path)
	if err != nil {
		t.Fatalf("ReadAudioInfo failed: %v", err)
	}
	if info.Duration != 0 {
		t.Errorf("Duration = %v, want 0 for unprobed format", info.Duration)
	}
}
