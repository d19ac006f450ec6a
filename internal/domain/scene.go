package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/venicegeo/geojson-go/geojson"
)

// sceneTimeLayout is the compact timestamp embedded in Sentinel-1 identifiers
// and orbit filenames (e.g. 20251220T061244).
const sceneTimeLayout = "20060102T150405"

// Scene is a single SLC acquisition discovered by the catalog.
// Immutable once discovered.
type Scene struct {
	ID              string
	AcquiredAt      time.Time
	Footprint       *geojson.Polygon
	FlightDirection string
	Platform        string
	Path            int
	Frame           int
	AbsoluteOrbit   int
	DownloadURL     string
	FileName        string
	LocalPath       string
}

// DedupKey identifies the physical acquisition. The catalog can list the same
// take under multiple processing versions; platform + absolute orbit + frame
// collapses them.
func (s *Scene) DedupKey() string {
	return fmt.Sprintf("%s/%d/%d", s.Platform, s.AbsoluteOrbit, s.Frame)
}

// FootprintBounds returns the bounding box of the scene footprint polygon.
func (s *Scene) FootprintBounds() (Bounds, error) {
	if s.Footprint == nil {
		return Bounds{}, fmt.Errorf("scene %s: no footprint geometry", s.ID)
	}
	bbox := s.Footprint.ForceBbox()
	if len(bbox) < 4 {
		return Bounds{}, fmt.Errorf("scene %s: degenerate footprint bbox", s.ID)
	}
	return Bounds{MinLon: bbox[0], MinLat: bbox[1], MaxLon: bbox[2], MaxLat: bbox[3]}, nil
}

// Timestamp returns the acquisition start in the compact form orbit requests
// are keyed by.
func (s *Scene) Timestamp() string {
	return s.AcquiredAt.UTC().Format(sceneTimeLayout)
}

// ParseSceneID extracts the mission and acquisition start time from a
// standard Sentinel-1 product identifier
// (S1A_IW_SLC__1SDV_20251220T061244_20251220T061311_051234_062E15_ABCD).
func ParseSceneID(id string) (mission string, acquired time.Time, err error) {
	name := strings.TrimSuffix(id, ".zip")
	parts := strings.Split(name, "_")
	if len(parts) < 6 {
		return "", time.Time{}, fmt.Errorf("scene id %q: unrecognized format", id)
	}
	mission = parts[0]
	if mission != "S1A" && mission != "S1B" && mission != "S1C" {
		return "", time.Time{}, fmt.Errorf("scene id %q: unknown mission %q", id, mission)
	}
	acquired, err = time.Parse(sceneTimeLayout, parts[5])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("scene id %q: bad start timestamp: %w", id, err)
	}
	return mission, acquired, nil
}
