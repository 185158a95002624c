package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ShowLookup finds the favorite show attached to new students.
type ShowLookup interface {
	FavoriteShow(ctx context.Context) (*TvShow, error)
}

// NoShow attaches nothing.
type NoShow struct{}

func (NoShow) FavoriteShow(context.Context) (*TvShow, error) { return &TvShow{}, nil }

// DefaultShowID is the TVMaze show looked up by TVMazeClient.
const DefaultShowID = 2

// TVMazeClient fetches a show from the TVMaze API.
type TVMazeClient struct {
	baseURL string
	showID  int
	http    *http.Client
}

// NewTVMazeClient creates a client for baseURL, e.g. https://api.tvmaze.com.
func NewTVMazeClient(baseURL string, showID int, timeout time.Duration) *TVMazeClient {
	if showID <= 0 {
		showID = DefaultShowID
	}
	return &TVMazeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		showID:  showID,
		http:    &http.Client{Timeout: timeout},
	}
}

type tvmazeShow struct {
	ID     int64    `json:"id"`
	URL    string   `json:"url"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

func (c *TVMazeClient) FavoriteShow(ctx context.Context) (*TvShow, error) {
	url := fmt.Sprintf("%s/shows/%d", c.baseURL, c.showID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("records: build show request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("records: fetch show: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("records: fetch show: unexpected status %s", resp.Status)
	}

	var s tvmazeShow
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&s); err != nil {
		return nil, fmt.Errorf("records: decode show: %w", err)
	}
	return &TvShow{ID: s.ID, URL: s.URL, Name: s.Name, Genres: s.Genres}, nil
}
