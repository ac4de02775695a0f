package render

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/ngmaloney/aac-checker/internal/crs"
	"github.com/ngmaloney/aac-checker/internal/geometry"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrs(pairs ...any) models.Attributes {
	var out []models.Attribute
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Attribute{Key: pairs[i].(string), Value: models.ValueOf(pairs[i+1])})
	}
	return models.NewAttributes(out...)
}

// wobbly returns a square whose edges carry small bumps of the given height
func wobbly(x0, y0, size, bump float64) orb.Polygon {
	var ring orb.Ring
	steps := 20
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps)
		ring = append(ring, orb.Point{x0 + t*size, y0 + bump*math.Mod(float64(i), 2)})
	}
	ring = append(ring, orb.Point{x0 + size, y0}, orb.Point{x0 + size, y0 + size}, orb.Point{x0, y0 + size}, orb.Point{x0, y0})
	return orb.Polygon{ring}
}

func TestTolerance(t *testing.T) {
	opts := DefaultSimplifyOptions()
	assert.Equal(t, 0.001, opts.Tolerance(10))
	assert.Equal(t, 0.001, opts.Tolerance(500))
	assert.Equal(t, 0.003, opts.Tolerance(501))
}

func TestSimplify(t *testing.T) {
	original := wobbly(0, 0, 1, 0.0005)
	fc := &models.FeatureCollection{
		CRS:      crs.WGS84,
		Features: []models.Feature{{Index: 0, Geometry: original, Attributes: attrs("code", "Z1")}},
	}
	before := len(original[0])

	out := Simplify(fc, DefaultSimplifyOptions())
	simplified := out.Features[0].Geometry.(orb.Polygon)

	assert.Less(t, len(simplified[0]), before, "bumps under the tolerance are removed")
	assert.Len(t, original[0], before, "input untouched")
	assert.Equal(t, fc.Features[0].Attributes, out.Features[0].Attributes)
	assert.Equal(t, crs.WGS84, out.CRS)
}

func TestSimplifyKeepsCollapsedShapes(t *testing.T) {
	tiny := orb.Polygon{{{0, 0}, {0.0001, 0}, {0.0001, 0.0001}, {0, 0.0001}, {0, 0}}}
	fc := &models.FeatureCollection{CRS: crs.WGS84, Features: []models.Feature{{Geometry: tiny}}}

	out := Simplify(fc, DefaultSimplifyOptions())
	assert.Equal(t, tiny, out.Features[0].Geometry)
}

func TestForDisplayReprojects(t *testing.T) {
	toL93, err := crs.EPSG(2154).FromWGS84()
	require.NoError(t, err)

	wgs := orb.Polygon{{{3.8, 43.5}, {3.9, 43.5}, {3.9, 43.6}, {3.8, 43.6}, {3.8, 43.5}}}
	fc := &models.FeatureCollection{
		CRS:      crs.EPSG(2154),
		Features: []models.Feature{{Geometry: geometry.Reproject(wgs, toL93)}},
	}

	out, err := ForDisplay(fc, DefaultSimplifyOptions())
	require.NoError(t, err)
	assert.Equal(t, crs.WGS84, out.CRS)
	assert.Equal(t, crs.EPSG(2154), fc.CRS)

	b := out.Features[0].Geometry.Bound()
	assert.InDelta(t, 3.8, b.Min[0], 1e-6)
	assert.InDelta(t, 43.6, b.Max[1], 1e-6)
}

func TestIsSame(t *testing.T) {
	matched := attrs("code", "AAC-1", "surface", 12.0, "geometry", "ignored")

	tests := []struct {
		name      string
		candidate models.Attributes
		want      bool
	}{
		{"identical", attrs("code", "AAC-1", "surface", 12.0), true},
		{"number compared as text", attrs("code", "AAC-1", "surface", "12"), true},
		{"different value", attrs("code", "AAC-2", "surface", 12.0), false},
		{"disjoint keys", attrs("nom", "autre"), true},
		{"empty candidate", models.Attributes{}, true},
		{"geometry key ignored", attrs("code", "AAC-1", "geometry", "other"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSame(tt.candidate, matched))
		})
	}
}

func TestHighlighter(t *testing.T) {
	matchedAttrs := attrs("code", "AAC-1")

	hl := Highlighter(models.Match(matchedAttrs))
	assert.True(t, hl(attrs("code", "AAC-1")))
	assert.False(t, hl(attrs("code", "AAC-2")))

	none := Highlighter(models.NoMatch)
	assert.False(t, none(attrs("code", "AAC-1")))
	assert.False(t, none(models.Attributes{}))
}

func viewCollection() *models.FeatureCollection {
	return &models.FeatureCollection{
		CRS: crs.WGS84,
		Features: []models.Feature{
			{Index: 0, Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}, Attributes: attrs("code", "Z1")},
			{Index: 1, Geometry: orb.Polygon{{{2, 2}, {3, 2}, {3, 3}, {2, 3}, {2, 2}}}, Attributes: attrs("code", "Z2")},
		},
	}
}

func TestBuildMapViewMatched(t *testing.T) {
	fc := viewCollection()
	view, err := BuildMapView(fc, models.Match(fc.Features[0].Attributes), models.QueryPoint{Lat: 0.5, Lon: 0.5}, DefaultSimplifyOptions())
	require.NoError(t, err)

	require.Len(t, view.Features, 2)
	assert.True(t, view.Features[0].Highlighted)
	assert.False(t, view.Features[1].Highlighted)
	assert.Equal(t, HighlightStyle, view.Features[0].Style())
	assert.Equal(t, BaseStyle, view.Features[1].Style())
	assert.Equal(t, MarkerInZone, view.Marker.Color)
	assert.False(t, view.FitBounds, "a matched point is centred on")
	assert.Len(t, view.Features[0].Rings(), 1)
}

func TestBuildMapViewNotMatched(t *testing.T) {
	view, err := BuildMapView(viewCollection(), models.NoMatch, models.QueryPoint{Lat: 5, Lon: 5}, DefaultSimplifyOptions())
	require.NoError(t, err)

	for _, f := range view.Features {
		assert.False(t, f.Highlighted)
	}
	assert.Equal(t, MarkerOutOfZone, view.Marker.Color)
	assert.True(t, view.FitBounds)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3, 3}}, view.Bounds)
}

func TestWriteGeoJSON(t *testing.T) {
	fc := viewCollection()
	view, err := BuildMapView(fc, models.NoMatch, models.QueryPoint{Lat: 5, Lon: 6}, DefaultSimplifyOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, view))

	var doc struct {
		Type      string    `json:"type"`
		BBox      []float64 `json:"bbox"`
		FitBounds bool      `json:"fitBounds"`
		Features  []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.True(t, doc.FitBounds)
	assert.Equal(t, []float64{0, 0, 3, 3}, doc.BBox)
	require.Len(t, doc.Features, 3)

	zone := doc.Features[0]
	assert.Equal(t, "Polygon", zone.Geometry.Type)
	assert.Equal(t, "Z1", zone.Properties["code"])
	assert.Equal(t, "#81C6E8", zone.Properties["fillColor"])
	assert.Equal(t, "#1F75C4", zone.Properties["color"])
	assert.Equal(t, 0.4, zone.Properties["fillOpacity"])
	assert.Equal(t, 1.5, zone.Properties["weight"])

	marker := doc.Features[2]
	assert.Equal(t, "Point", marker.Geometry.Type)
	assert.JSONEq(t, `[6,5]`, string(marker.Geometry.Coordinates))
	assert.Equal(t, "red", marker.Properties["marker-color"])
}
