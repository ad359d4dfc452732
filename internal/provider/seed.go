package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/serroba/online-canvas/internal/element"
)

var ErrNoSeed = errors.New("no stored contents for canvas")

const defaultSeedTimeout = 10 * time.Second

// SeedClient loads the last saved contents of a canvas from the relay's
// shapes endpoint.
type SeedClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// SeedConfig configures a SeedClient.
type SeedConfig struct {
	// BaseURL is the relay's HTTP root, e.g. http://host:8080.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewSeedClient creates a SeedClient.
func NewSeedClient(cfg SeedConfig) *SeedClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultSeedTimeout}
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &SeedClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
	}
}

type seedResponse struct {
	Paths  []element.Stroke  `json:"paths"`
	Shapes []element.Shape   `json:"shapes"`
	Texts  []element.TextBox `json:"texts"`
}

// Load fetches GET /canvas/{id}/shapes. A missing canvas returns ErrNoSeed.
func (c *SeedClient) Load(ctx context.Context, canvasID string) (element.Set, error) {
	endpoint := c.baseURL + "/canvas/" + url.PathEscape(canvasID) + "/shapes"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return element.Set{}, fmt.Errorf("build seed request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return element.Set{}, fmt.Errorf("fetch seed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return element.Set{}, ErrNoSeed
	case resp.StatusCode != http.StatusOK:
		return element.Set{}, fmt.Errorf("fetch seed: unexpected status %d", resp.StatusCode)
	}

	var body seedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return element.Set{}, fmt.Errorf("decode seed: %w", err)
	}

	c.logger.Debug("seed loaded", "canvas", canvasID,
		"paths", len(body.Paths), "shapes", len(body.Shapes), "texts", len(body.Texts))

	return element.Set{Strokes: body.Paths, Shapes: body.Shapes, Texts: body.Texts}, nil
}
