// Package engine builds the declarative job configuration for the external
// interferometry processing engine and runs it as a blocking subprocess.
package engine

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/geoflux/insarpipe/internal/domain"
)

// ConfigFileName is the engine job description written into the work
// directory before invocation.
const ConfigFileName = "insarApp.xml"

// geocodeList names the radar-coordinate products the engine geocodes into
// the merged output directory.
var geocodeList = []string{
	"merged/filt_topophase.unw",
	"merged/topophase.cor",
	"merged/phsig.cor",
}

type xmlProperty struct {
	XMLName xml.Name `xml:"property"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value"`
}

type xmlComponent struct {
	XMLName    xml.Name       `xml:"component"`
	Name       string         `xml:"name,attr"`
	Components []xmlComponent `xml:"component,omitempty"`
	Properties []xmlProperty  `xml:"property,omitempty"`
}

type xmlApp struct {
	XMLName   xml.Name     `xml:"insarApp"`
	Component xmlComponent `xml:"component"`
}

// ConfigBuilder renders ProcessingJob aggregates into engine configurations.
type ConfigBuilder struct {
	azimuthLooks int
	rangeLooks   int
	unwrapper    string
}

// NewConfigBuilder creates a config builder with the given multi-look factors
// and unwrapper selection.
func NewConfigBuilder(azimuthLooks, rangeLooks int, unwrapper string) *ConfigBuilder {
	return &ConfigBuilder{
		azimuthLooks: azimuthLooks,
		rangeLooks:   rangeLooks,
		unwrapper:    unwrapper,
	}
}

// Build renders the configuration document for a job. The job must carry a
// validated scene pair, a resolved orbit per scene, and a covering mosaic.
func (b *ConfigBuilder) Build(job *domain.ProcessingJob) ([]byte, error) {
	if len(job.Scenes) < 2 || job.Reference == nil {
		return nil, fmt.Errorf("build config: job has no validated scene pair")
	}
	if job.Mosaic == nil || job.Plan == nil {
		return nil, fmt.Errorf("build config: job has no elevation mosaic")
	}
	secondary := job.Scenes[1]

	refComp, err := sceneComponent("reference", job.Reference, job.Orbits)
	if err != nil {
		return nil, err
	}
	secComp, err := sceneComponent("secondary", secondary, job.Orbits)
	if err != nil {
		return nil, err
	}

	snwe := job.Plan.ROI.SNWE()
	root := xmlComponent{
		Name:       "insar",
		Components: []xmlComponent{refComp, secComp},
		Properties: []xmlProperty{
			{Name: "dem filename", Value: job.Mosaic.Path},
			{Name: "region of interest", Value: fmt.Sprintf("[%g, %g, %g, %g]", snwe[0], snwe[1], snwe[2], snwe[3])},
			{Name: "dem buffer degrees", Value: fmt.Sprintf("%g", job.Plan.BufferDeg)},
			{Name: "swaths", Value: "[1, 2, 3]"},
			{Name: "azimuth looks", Value: fmt.Sprintf("%d", b.azimuthLooks)},
			{Name: "range looks", Value: fmt.Sprintf("%d", b.rangeLooks)},
			{Name: "do unwrap", Value: "True"},
			{Name: "unwrapper name", Value: b.unwrapper},
			{Name: "geocode list", Value: formatList(geocodeList)},
		},
	}

	doc, err := xml.MarshalIndent(xmlApp{Component: root}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return append([]byte(xml.Header), append(doc, '\n')...), nil
}

// Write renders and persists the configuration into the job's work directory,
// recording the path on the job. The file is fully written before the engine
// is invoked and stays on disk regardless of the run's outcome.
func (b *ConfigBuilder) Write(job *domain.ProcessingJob) error {
	doc, err := b.Build(job)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(job.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	path := filepath.Join(job.WorkDir, ConfigFileName)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	job.ConfigPath = path
	return nil
}

// formatList renders entries in the engine's python-style list syntax.
func formatList(entries []string) string {
	quoted := make([]string, len(entries))
	for i, e := range entries {
		quoted[i] = "'" + e + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func sceneComponent(name string, scene *domain.Scene, orbits map[string]*domain.OrbitFile) (xmlComponent, error) {
	if scene.LocalPath == "" {
		return xmlComponent{}, fmt.Errorf("build config: scene %s has no local archive", scene.ID)
	}
	orbitFile, ok := orbits[scene.ID]
	if !ok {
		return xmlComponent{}, fmt.Errorf("build config: scene %s has no resolved orbit", scene.ID)
	}
	return xmlComponent{
		Name: name,
		Properties: []xmlProperty{
			{Name: "safe", Value: fmt.Sprintf("['%s']", scene.LocalPath)},
			{Name: "output directory", Value: name},
			{Name: "orbit directory", Value: filepath.Dir(orbitFile.Path)},
			{Name: "orbit type", Value: string(orbitFile.Type)},
		},
	}, nil
}
