package asf

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/auth"
	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/metrics"
	"github.com/geoflux/insarpipe/internal/provider"
)

// OrbitClient fetches POEORB/RESORB products from the ASF archive.
type OrbitClient struct {
	endpoint   string
	creds      *auth.Provider
	httpClient *http.Client
	logger     *zap.Logger
}

var _ provider.OrbitSource = (*OrbitClient)(nil)

// NewOrbitClient creates an orbit-file source.
func NewOrbitClient(endpoint string, creds *auth.Provider, logger *zap.Logger) *OrbitClient {
	return &OrbitClient{
		endpoint:   endpoint,
		creds:      creds,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
}

// Fetch queries the archive for an orbit product of the requested tier whose
// validity window covers the scene's acquisition, and downloads it under a
// scene-scoped directory. Returns provider.ErrOrbitUnavailable on a tier miss.
func (c *OrbitClient) Fetch(ctx context.Context, scene *domain.Scene, typ domain.OrbitType, destDir string) (*domain.OrbitFile, error) {
	mission, acquired, err := domain.ParseSceneID(scene.ID)
	if err != nil {
		return nil, err
	}

	// Orbit products are published per mission day; a one-day pad on each
	// side is enough to catch the file spanning the acquisition.
	params := url.Values{}
	params.Set("platform", longPlatform(mission))
	params.Set("processingLevel", string(typ))
	params.Set("start", acquired.AddDate(0, 0, -1).Format(dateLayout))
	params.Set("end", acquired.AddDate(0, 0, 1).Format(dateLayout))
	params.Set("output", "geojson")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build orbit query: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("orbit query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("orbit query: status %d", resp.StatusCode)
	}

	var fc featureCollection
	if err := decodeJSON(resp, &fc); err != nil {
		return nil, fmt.Errorf("decode orbit response: %w", err)
	}

	var pick *properties
	var validFrom, validTo time.Time
	for i := range fc.Features {
		p := fc.Features[i].Properties
		from, to, err := domain.ParseOrbitValidity(p.FileName)
		if err != nil {
			continue
		}
		if !acquired.Before(from) && !acquired.After(to) {
			pick = &fc.Features[i].Properties
			validFrom, validTo = from, to
			break
		}
	}
	if pick == nil {
		metrics.DownloadsTotal.WithLabelValues("orbit", "miss").Inc()
		return nil, fmt.Errorf("%s for %s: %w", typ, scene.ID, provider.ErrOrbitUnavailable)
	}

	dest, err := c.download(ctx, pick.URL, destDir, pick.FileName)
	if err != nil {
		return nil, err
	}

	metrics.DownloadsTotal.WithLabelValues("orbit", "fetched").Inc()
	c.logger.Info("Orbit file downloaded",
		zap.String("scene_id", scene.ID),
		zap.String("type", string(typ)),
		zap.String("file", pick.FileName),
	)

	return &domain.OrbitFile{
		Type:      typ,
		SceneID:   scene.ID,
		ValidFrom: validFrom,
		ValidTo:   validTo,
		Path:      dest,
	}, nil
}

func (c *OrbitClient) download(ctx context.Context, srcURL, destDir, fileName string) (string, error) {
	creds, err := c.creds.Credentials()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create orbit dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("build orbit download: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download orbit %s: %w", fileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &domain.AuthenticationError{
			Reason: fmt.Sprintf("archive rejected credentials for %s (status %d)", fileName, resp.StatusCode),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download orbit %s: unexpected status %d", fileName, resp.StatusCode)
	}

	dest := filepath.Join(destDir, fileName)
	if err := writeAtomic(dest, resp.Body); err != nil {
		return "", fmt.Errorf("download orbit %s: %w", fileName, err)
	}
	return dest, nil
}

// longPlatform maps a mission code back to the catalog's platform name.
func longPlatform(mission string) string {
	switch mission {
	case "S1A":
		return "Sentinel-1A"
	case "S1B":
		return "Sentinel-1B"
	case "S1C":
		return "Sentinel-1C"
	}
	return mission
}
