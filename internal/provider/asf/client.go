// Package asf implements the catalog and orbit providers against the Alaska
// Satellite Facility search API.
package asf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/venicegeo/geojson-go/geojson"
	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/auth"
	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/metrics"
	"github.com/geoflux/insarpipe/internal/provider"
)

// startTimeLayouts covers the timestamp shapes the API emits.
var startTimeLayouts = []string{
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
}

const dateLayout = "2006-01-02"

// Client queries the ASF search API and downloads granules.
type Client struct {
	endpoint   string
	platform   string
	beamMode   string
	product    string
	creds      *auth.Provider
	httpClient *http.Client
	logger     *zap.Logger
}

var _ provider.CatalogClient = (*Client)(nil)

// NewClient creates an ASF search client.
func NewClient(endpoint, platform, beamMode, product string, creds *auth.Provider, logger *zap.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		platform:   platform,
		beamMode:   beamMode,
		product:    product,
		creds:      creds,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
}

// Search queries for scenes intersecting the ROI in the date window.
func (c *Client) Search(ctx context.Context, q provider.SearchQuery) ([]*domain.Scene, error) {
	params := url.Values{}
	params.Set("platform", c.platform)
	params.Set("processingLevel", c.product)
	params.Set("beamMode", c.beamMode)
	params.Set("bbox", q.ROI.String())
	params.Set("start", q.Start.Format(dateLayout))
	params.Set("end", q.End.Format(dateLayout))
	params.Set("output", "geojson")
	if q.FlightDirection != "" {
		params.Set("flightDirection", q.FlightDirection)
	}

	fc, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	scenes := make([]*domain.Scene, 0, len(fc.Features))
	for _, f := range fc.Features {
		scene, err := sceneFromFeature(f)
		if err != nil {
			c.logger.Warn("Skipping malformed search result", zap.Error(err))
			continue
		}
		scenes = append(scenes, scene)
	}

	c.logger.Info("Catalog search completed",
		zap.Int("results", len(scenes)),
		zap.String("bbox", q.ROI.String()),
	)
	return scenes, nil
}

// Download fetches the scene archive into destDir. An existing non-empty file
// is trusted and not re-fetched; a partial download is removed on failure.
func (c *Client) Download(ctx context.Context, scene *domain.Scene, destDir string) (string, error) {
	dest := filepath.Join(destDir, scene.FileName)
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		c.logger.Debug("Scene archive already present", zap.String("file", scene.FileName))
		metrics.DownloadsTotal.WithLabelValues("scene", "cached").Inc()
		return dest, nil
	}

	creds, err := c.creds.Credentials()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scene.DownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("scene", "error").Inc()
		return "", fmt.Errorf("download %s: %w", scene.FileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		metrics.DownloadsTotal.WithLabelValues("scene", "error").Inc()
		return "", &domain.AuthenticationError{
			Reason: fmt.Sprintf("archive rejected credentials for %s (status %d)", scene.FileName, resp.StatusCode),
		}
	}
	if resp.StatusCode != http.StatusOK {
		metrics.DownloadsTotal.WithLabelValues("scene", "error").Inc()
		return "", fmt.Errorf("download %s: unexpected status %d", scene.FileName, resp.StatusCode)
	}

	if err := writeAtomic(dest, resp.Body); err != nil {
		metrics.DownloadsTotal.WithLabelValues("scene", "error").Inc()
		return "", fmt.Errorf("download %s: %w", scene.FileName, err)
	}

	metrics.DownloadsTotal.WithLabelValues("scene", "fetched").Inc()
	c.logger.Info("Scene archive downloaded", zap.String("file", scene.FileName))
	return dest, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*featureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog query: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	return &fc, nil
}

func sceneFromFeature(f feature) (*domain.Scene, error) {
	p := f.Properties
	if p.FileID == "" {
		return nil, fmt.Errorf("feature without fileID")
	}

	acquired, err := parseAPITime(p.StartTime)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", p.FileID, err)
	}

	var footprint *geojson.Polygon
	if len(f.Geometry) > 0 {
		footprint = &geojson.Polygon{}
		if err := json.Unmarshal(f.Geometry, footprint); err != nil {
			return nil, fmt.Errorf("scene %s: bad footprint geometry: %w", p.FileID, err)
		}
	}

	fileName := p.FileName
	if fileName == "" {
		fileName = p.SceneName + ".zip"
	}

	return &domain.Scene{
		ID:              p.FileID,
		AcquiredAt:      acquired,
		Footprint:       footprint,
		FlightDirection: p.FlightDirection,
		Platform:        shortPlatform(p.Platform),
		Path:            p.PathNumber,
		Frame:           p.FrameNumber,
		AbsoluteOrbit:   p.Orbit,
		DownloadURL:     p.URL,
		FileName:        fileName,
	}, nil
}

func parseAPITime(s string) (time.Time, error) {
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// shortPlatform normalizes "Sentinel-1A" style names to the mission code used
// in product identifiers.
func shortPlatform(platform string) string {
	return strings.Replace(platform, "Sentinel-1", "S1", 1)
}

// writeAtomic streams r to path via a .part file so an interrupted download
// never leaves a truncated archive behind under the final name.
func writeAtomic(path string, r io.Reader) error {
	part := path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(part)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return err
	}
	return os.Rename(part, path)
}
