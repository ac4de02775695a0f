package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Style is a polygon style in the property names Leaflet and folium use
type Style struct {
	FillColor   string  `json:"fillColor"`
	Color       string  `json:"color"`
	FillOpacity float64 `json:"fillOpacity"`
	Weight      float64 `json:"weight"`
}

var (
	BaseStyle      = Style{FillColor: "#81C6E8", Color: "#1F75C4", FillOpacity: 0.4, Weight: 1.5}
	HighlightStyle = Style{FillColor: "#4CAF50", Color: "#2E7D32", FillOpacity: 0.6, Weight: 2.5}
)

const (
	MarkerInZone    = "green"
	MarkerOutOfZone = "red"
)

// MapFeature is one zone as the renderer draws it, in WGS84
type MapFeature struct {
	Geometry    orb.Geometry
	Attributes  models.Attributes
	Highlighted bool
}

// Rings returns every ring of the zone, exteriors and holes
func (f MapFeature) Rings() []orb.Ring {
	var rings []orb.Ring
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		rings = append(rings, g...)
	case orb.MultiPolygon:
		for _, p := range g {
			rings = append(rings, p...)
		}
	}
	return rings
}

// Style returns the style the zone is drawn with
func (f MapFeature) Style() Style {
	if f.Highlighted {
		return HighlightStyle
	}
	return BaseStyle
}

// Marker is the queried point
type Marker struct {
	Point models.QueryPoint
	Color string
	Label string
}

// MapView is everything a map renderer needs for one query
type MapView struct {
	Features  []MapFeature
	Marker    Marker
	Bounds    orb.Bound // Extent of all zones in WGS84
	FitBounds bool      // Zoom to Bounds instead of centring on the marker
}

// BuildMapView prepares the display of fc for a query at point. Zones
// matching result are highlighted. The view fits the whole dataset only when
// the point is outside every zone.
func BuildMapView(fc *models.FeatureCollection, result models.MatchResult, point models.QueryPoint, opts SimplifyOptions) (MapView, error) {
	display, err := ForDisplay(fc, opts)
	if err != nil {
		return MapView{}, err
	}

	highlight := Highlighter(result)
	view := MapView{Features: make([]MapFeature, 0, display.Len())}
	for _, f := range display.Features {
		view.Features = append(view.Features, MapFeature{
			Geometry:    f.Geometry,
			Attributes:  f.Attributes,
			Highlighted: highlight(f.Attributes),
		})
	}

	view.Marker = Marker{Point: point, Color: MarkerOutOfZone, Label: "Point hors zone AAC"}
	if result.Matched {
		view.Marker.Color = MarkerInZone
		view.Marker.Label = "Point dans une zone AAC"
	}

	if b, ok := display.Bound(); ok {
		view.Bounds = b
		view.FitBounds = !result.Matched
	}
	return view, nil
}

// WriteGeoJSON writes the view as a FeatureCollection: one styled feature per
// zone followed by the marker point
func WriteGeoJSON(w io.Writer, view MapView) error {
	out := geojson.NewFeatureCollection()

	for _, f := range view.Features {
		gf := geojson.NewFeature(f.Geometry)
		for k, v := range f.Attributes.Map() {
			gf.Properties[k] = v
		}
		style := f.Style()
		gf.Properties["fillColor"] = style.FillColor
		gf.Properties["color"] = style.Color
		gf.Properties["fillOpacity"] = style.FillOpacity
		gf.Properties["weight"] = style.Weight
		gf.Properties["highlighted"] = f.Highlighted
		out.Append(gf)
	}

	marker := geojson.NewFeature(orb.Point{view.Marker.Point.Lon, view.Marker.Point.Lat})
	marker.Properties["role"] = "marker"
	marker.Properties["marker-color"] = view.Marker.Color
	marker.Properties["title"] = view.Marker.Label
	out.Append(marker)

	if view.FitBounds {
		out.BBox = geojson.NewBBox(view.Bounds)
	}
	out.ExtraMembers = geojson.Properties{"fitBounds": view.FitBounds}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding map view: %w", err)
	}
	return nil
}
