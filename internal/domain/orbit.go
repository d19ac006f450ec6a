package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrbitType is the orbit product tier.
type OrbitType string

const (
	// OrbitPrecise (POEORB) files are published roughly three weeks after
	// acquisition with centimetre-level accuracy.
	OrbitPrecise OrbitType = "POEORB"

	// OrbitRestituted (RESORB) files are published within hours of
	// acquisition with lower accuracy.
	OrbitRestituted OrbitType = "RESORB"
)

// OrbitFile is a navigation solution covering one scene.
type OrbitFile struct {
	Type      OrbitType
	SceneID   string
	ValidFrom time.Time
	ValidTo   time.Time
	Path      string
}

// Covers reports whether the validity window contains t.
func (o *OrbitFile) Covers(t time.Time) bool {
	return !t.Before(o.ValidFrom) && !t.After(o.ValidTo)
}

// OrbitTypeFromFilename determines the product tier encoded in an orbit
// filename, or "" if neither tag is present.
func OrbitTypeFromFilename(name string) OrbitType {
	switch {
	case strings.Contains(name, string(OrbitPrecise)):
		return OrbitPrecise
	case strings.Contains(name, string(OrbitRestituted)):
		return OrbitRestituted
	}
	return ""
}

// ParseOrbitValidity extracts the validity window from a standard orbit
// filename (…_V20251219T225942_20251221T005942.EOF).
func ParseOrbitValidity(name string) (from, to time.Time, err error) {
	base := strings.TrimSuffix(name, ".EOF")
	parts := strings.Split(base, "_")
	for i, p := range parts {
		if len(p) == 16 && p[0] == 'V' && i+1 < len(parts) {
			from, err = time.Parse(sceneTimeLayout, p[1:])
			if err != nil {
				break
			}
			to, err = time.Parse(sceneTimeLayout, parts[i+1])
			if err != nil {
				break
			}
			return from, to, nil
		}
	}
	return time.Time{}, time.Time{}, fmt.Errorf("orbit file %q: no validity window in name", name)
}
