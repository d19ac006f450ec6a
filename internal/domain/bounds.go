package domain

import "fmt"

// Bounds is a geographic bounding box in degrees (WGS84 lon/lat).
type Bounds struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// WellFormed returns true if min < max on both axes.
func (b Bounds) WellFormed() bool {
	return b.MinLon < b.MaxLon && b.MinLat < b.MaxLat
}

// Contains reports whether b covers other on all four edges.
func (b Bounds) Contains(other Bounds) bool {
	return b.MinLon <= other.MinLon && b.MinLat <= other.MinLat &&
		b.MaxLon >= other.MaxLon && b.MaxLat >= other.MaxLat
}

// StrictlyContains reports whether b covers other with surplus on every edge.
func (b Bounds) StrictlyContains(other Bounds) bool {
	return b.MinLon < other.MinLon && b.MinLat < other.MinLat &&
		b.MaxLon > other.MaxLon && b.MaxLat > other.MaxLat
}

// Union returns the smallest box enclosing both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	u := b
	if other.MinLon < u.MinLon {
		u.MinLon = other.MinLon
	}
	if other.MinLat < u.MinLat {
		u.MinLat = other.MinLat
	}
	if other.MaxLon > u.MaxLon {
		u.MaxLon = other.MaxLon
	}
	if other.MaxLat > u.MaxLat {
		u.MaxLat = other.MaxLat
	}
	return u
}

// Buffer returns b expanded symmetrically by deg on every side.
func (b Bounds) Buffer(deg float64) Bounds {
	return Bounds{
		MinLon: b.MinLon - deg,
		MinLat: b.MinLat - deg,
		MaxLon: b.MaxLon + deg,
		MaxLat: b.MaxLat + deg,
	}
}

// String renders the box as "minLon,minLat,maxLon,maxLat", the order used by
// search APIs and the stitcher contract.
func (b Bounds) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// SNWE returns the box in [south, north, west, east] order, the convention the
// processing-engine configuration expects for its region of interest.
func (b Bounds) SNWE() [4]float64 {
	return [4]float64{b.MinLat, b.MaxLat, b.MinLon, b.MaxLon}
}
