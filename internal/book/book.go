// Package book defines the audiobook data model and folder discovery.
package book

import "time"

// Segment is one playable audio file belonging to a Book.
// Immutable once discovered. Duration may be zero until the engine
// loads the file.
type Segment struct {
	Path     string
	Name     string
	Duration time.Duration
}

// Book is an ordered collection of segments treated as one logical
// playback unit. SegmentIndex and Position carry its resume state.
type Book struct {
	ID            string
	Title         string
	Path          string
	Segments      []Segment
	TotalDuration time.Duration
	IsSeries      bool
	SeriesName    string

	SegmentIndex int
	Position     time.Duration
}

// SegmentCount returns the number of segments.
func (b *Book) SegmentCount() int { return len(b.Segments) }

// ValidIndex reports whether i indexes a segment of the book.
func (b *Book) ValidIndex(i int) bool {
	return i >= 0 && i < len(b.Segments)
}
