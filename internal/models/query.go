package models

import (
	"fmt"
	"math"
)

// QueryPoint is a WGS84 position supplied by the user or the geocoder
type QueryPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the point lies within WGS84 bounds
func (p QueryPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return fmt.Errorf("coordinates must be numbers")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %.6f out of range [-90, 90]", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %.6f out of range [-180, 180]", p.Lon)
	}
	return nil
}

func (p QueryPoint) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lon)
}

// MatchResult is the outcome of one containment query
type MatchResult struct {
	Matched    bool        `json:"matched"`
	Attributes *Attributes `json:"attributes,omitempty"` // nil when not matched
}

// NoMatch is the result reported when no zone contains the point
var NoMatch = MatchResult{}

// Match builds a positive result carrying the zone's attributes
func Match(attrs Attributes) MatchResult {
	return MatchResult{Matched: true, Attributes: &attrs}
}

// RegionMode selects how a region narrows a collection
type RegionMode string

const (
	RegionModeNone      RegionMode = "none"
	RegionModeAttribute RegionMode = "attribute"
	RegionModeBBox      RegionMode = "bbox"
)

// RegionSelector names the administrative region a dataset is narrowed to
type RegionSelector struct {
	Name string
	Mode RegionMode
}
