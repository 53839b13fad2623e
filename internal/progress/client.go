package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lmorel/tome/internal/book"
)

// ErrNotFound is returned when the backend has no record for a book.
var ErrNotFound = errors.New("progress: not found")

const clientTimeout = 10 * time.Second

// Client talks to the audiobook backend's /api surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// progressPayload is the wire form of a progress update.
// Positions and durations travel as seconds.
type progressPayload struct {
	BookID           string  `json:"book_id"`
	Position         float64 `json:"position"`
	Duration         float64 `json:"duration"`
	CurrentFileIndex int     `json:"current_file_index"`
}

// progressBody is the wire form of a stored progress record.
type progressBody struct {
	BookID           string  `json:"book_id"`
	Position         float64 `json:"position"`
	Duration         float64 `json:"duration"`
	CurrentFileIndex int     `json:"current_file_index"`
	LastPlayed       string  `json:"last_played"`
	Completed        bool    `json:"completed"`
}

// bookPayload is the wire form of a book registration.
type bookPayload struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Path       string  `json:"path"`
	Duration   float64 `json:"duration"`
	IsSeries   bool    `json:"is_series"`
	SeriesName string  `json:"series_name,omitempty"`
	FileCount  int     `json:"file_count"`
}

// BookInfo is a book as listed by the backend.
type BookInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Path       string  `json:"path"`
	Duration   float64 `json:"duration"`
	IsSeries   bool    `json:"is_series"`
	SeriesName string  `json:"series_name"`
	FileCount  int     `json:"file_count"`
}

// SaveProgress stores rec as the authoritative position for its book.
func (c *Client) SaveProgress(ctx context.Context, rec Record) error {
	payload := progressPayload{
		BookID:           rec.BookID,
		Position:         rec.Position.Seconds(),
		Duration:         rec.Duration.Seconds(),
		CurrentFileIndex: rec.SegmentIndex,
	}
	return c.post(ctx, "/api/progress", payload)
}

// GetProgress fetches the stored position for bookID. Both a 404 and the
// backend's zero-value default body map to ErrNotFound, so callers resume
// from the beginning either way.
func (c *Client) GetProgress(ctx context.Context, bookID string) (*Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/progress/"+bookID, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var body progressBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if body.Position == 0 && body.CurrentFileIndex == 0 && body.Duration == 0 {
		return nil, ErrNotFound
	}

	rec := &Record{
		BookID:       bookID,
		Position:     secondsToDuration(body.Position),
		SegmentIndex: body.CurrentFileIndex,
		Duration:     secondsToDuration(body.Duration),
	}
	if t, err := time.Parse(time.RFC3339, body.LastPlayed); err == nil {
		rec.SavedAt = t
	}
	rec.normalize()
	return rec, nil
}

// ResetProgress deletes the stored position for bookID.
// An already-absent record is success.
func (c *Client) ResetProgress(ctx context.Context, bookID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/progress/"+bookID, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

// MarkComplete flags the book as finished on the backend.
func (c *Client) MarkComplete(ctx context.Context, bookID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/progress/complete/"+bookID, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

// ListProgress fetches the stored positions for all books.
func (c *Client) ListProgress(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/progress", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var bodies []progressBody
	if err := json.NewDecoder(resp.Body).Decode(&bodies); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records := make([]Record, 0, len(bodies))
	for _, body := range bodies {
		rec := Record{
			BookID:       body.BookID,
			Position:     secondsToDuration(body.Position),
			SegmentIndex: body.CurrentFileIndex,
			Duration:     secondsToDuration(body.Duration),
		}
		rec.normalize()
		records = append(records, rec)
	}
	return records, nil
}

// CreateBook registers (or updates) a discovered book with the backend.
func (c *Client) CreateBook(ctx context.Context, b *book.Book) error {
	payload := bookPayload{
		ID:         b.ID,
		Title:      b.Title,
		Path:       b.Path,
		Duration:   b.TotalDuration.Seconds(),
		IsSeries:   b.IsSeries,
		SeriesName: b.SeriesName,
		FileCount:  len(b.Segments),
	}
	return c.post(ctx, "/api/books", payload)
}

// ListBooks fetches all books known to the backend.
func (c *Client) ListBooks(ctx context.Context) ([]BookInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/books", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var books []BookInfo
	if err := json.NewDecoder(resp.Body).Decode(&books); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return books, nil
}

// GetBook fetches one book by id.
func (c *Client) GetBook(ctx context.Context, bookID string) (*BookInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/books/"+bookID, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var info BookInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &info, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
