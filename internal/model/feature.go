package model

import (
	"strings"
	"time"
)

// FeatureCollection is the top-level GeoJSON document returned by the feed
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one event marker from the feed. Immutable once fetched;
// the pipeline filters features but never mutates them.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is the GeoJSON geometry of a feature. Only Point geometries
// are processed; coordinates are [longitude, latitude] in WGS84 degrees.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Properties carries the event metadata published by the feed
type Properties struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	VerifiedDate  string   `json:"verifiedDate"` // ISO 8601, may carry a time component
	URL           string   `json:"url"`
	GeolocURL     string   `json:"geolocUrl"`
	Status        string   `json:"status"`
	Country       string   `json:"country"`
	Province      string   `json:"province"`
	City          string   `json:"city"`
	Categories    []string `json:"categories"`
	ViolenceLevel string   `json:"violenceLevel"`
	CivCas        bool     `json:"civCas"`
}

// VerifiedDay parses the date portion of VerifiedDate, ignoring any time
// component. Returns false when the property is absent or unparsable.
func (p Properties) VerifiedDay() (time.Time, bool) {
	if p.VerifiedDate == "" {
		return time.Time{}, false
	}
	day, _, _ := strings.Cut(p.VerifiedDate, "T")
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HasCategory reports whether the feature's category list contains name,
// compared case-insensitively.
func (p Properties) HasCategory(name string) bool {
	for _, cat := range p.Categories {
		if strings.EqualFold(cat, name) {
			return true
		}
	}
	return false
}
