// Package bkk reads the BKK FUTÁR bicycle-rental feed.
package bkk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samirrijal/molbubble/internal/core/domain"
)

// Client implements ports.StationFeed over HTTP.
type Client struct {
	http *http.Client
	url  string
}

// NewClient creates a feed client for url.
func NewClient(url string) *Client {
	return &Client{http: &http.Client{Timeout: 30 * time.Second}, url: url}
}

type feedResponse struct {
	Code int `json:"code"`
	Data struct {
		List []feedStation `json:"list"`
	} `json:"data"`
}

type feedStation struct {
	ID     json.RawMessage `json:"id"`
	Name   string          `json:"name"`
	Lat    float64         `json:"lat"`
	Lon    float64         `json:"lon"`
	Spaces int             `json:"spaces"`
	Bikes  int             `json:"bikes"`
}

// FetchStations downloads and decodes the current station list.
func (c *Client) FetchStations(ctx context.Context) ([]domain.BikeStation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, c.url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return Parse(body)
}

// Parse decodes a feed document. Station ids may be JSON strings or numbers.
func Parse(body []byte) ([]domain.BikeStation, error) {
	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("unmarshal feed: %w", err)
	}
	if feed.Code != 0 && feed.Code != http.StatusOK {
		return nil, fmt.Errorf("feed returned code %d", feed.Code)
	}

	stations := make([]domain.BikeStation, 0, len(feed.Data.List))
	for _, s := range feed.Data.List {
		stations = append(stations, domain.BikeStation{
			ID:     strings.Trim(string(s.ID), `"`),
			Name:   s.Name,
			Lat:    s.Lat,
			Lon:    s.Lon,
			Spaces: s.Spaces,
			Bikes:  s.Bikes,
		})
	}
	return stations, nil
}
