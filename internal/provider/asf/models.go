package asf

import (
	"encoding/json"
	"net/http"
)

// featureCollection is the top-level GeoJSON response from the search API.
type featureCollection struct {
	Features []feature `json:"features"`
}

// feature is a single search result.
type feature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties properties      `json:"properties"`
}

// properties is the granule metadata attached to a feature. Timestamps are
// kept as strings because the API emits fractional seconds without a zone.
type properties struct {
	FileID          string `json:"fileID"`
	SceneName       string `json:"sceneName"`
	FileName        string `json:"fileName"`
	URL             string `json:"url"`
	Platform        string `json:"platform"`
	FlightDirection string `json:"flightDirection"`
	StartTime       string `json:"startTime"`
	StopTime        string `json:"stopTime"`
	PathNumber      int    `json:"pathNumber"`
	FrameNumber     int    `json:"frameNumber"`
	Orbit           int    `json:"orbit"`
	ProcessingLevel string `json:"processingLevel"`
	BeamModeType    string `json:"beamModeType"`
	Bytes           int64  `json:"bytes"`
}

func decodeJSON(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}
