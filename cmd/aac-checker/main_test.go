package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/ngmaloney/aac-checker/internal/checker"
	"github.com/ngmaloney/aac-checker/internal/config"
	"github.com/ngmaloney/aac-checker/internal/geostore"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zones = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{"code_aac":"AAC-34-001","nom":"Lez"},
   "geometry":{"type":"Polygon","coordinates":[[[3.8,43.5],[3.9,43.5],[3.9,43.6],[3.8,43.6],[3.8,43.5]]]}}
]}`

func TestGeocoderConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Geocoder.CountryCodes = "fr"

	got := geocoderConfig(cfg.Geocoder)
	assert.Equal(t, cfg.Geocoder.URL, got.URL)
	assert.Equal(t, "aac_checker", got.UserAgent)
	assert.Equal(t, "fr", got.CountryCodes)
	assert.Equal(t, time.Second, got.Delay)
	assert.Equal(t, 10*time.Second, got.Timeout)
}

func checkFixture(t *testing.T) (*checker.Dataset, checker.Outcome) {
	t.Helper()
	svc := checker.New(nil, checker.DefaultOptions(), zerolog.Nop())
	ds, err := svc.LoadBytes("zones.geojson", []byte(zones), geostore.FormatGeoJSON, "")
	require.NoError(t, err)
	out, err := svc.CheckPoint(ds, models.QueryPoint{Lat: 43.55, Lon: 3.85})
	require.NoError(t, err)
	return ds, out
}

func TestPrintText(t *testing.T) {
	ds, out := checkFixture(t)

	var buf bytes.Buffer
	printText(&buf, ds, out)

	s := buf.String()
	assert.Contains(t, s, "1 zones détectées")
	assert.Contains(t, s, "Dans une AAC (méthode : direct)")
	assert.Contains(t, s, "AAC-34-001")
	assert.Contains(t, s, "Lez")
}

func TestPrintJSON(t *testing.T) {
	ds, out := checkFixture(t)

	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, ds, out))

	var report struct {
		Dataset string `json:"dataset"`
		Zones   int    `json:"zones"`
		Region  string `json:"region"`
		Outcome struct {
			Result struct {
				Matched    bool           `json:"matched"`
				Attributes map[string]any `json:"attributes"`
			} `json:"result"`
		} `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, "zones.geojson", report.Dataset)
	assert.Equal(t, 1, report.Zones)
	assert.Equal(t, "France entière", report.Region)
	assert.True(t, report.Outcome.Result.Matched)
	assert.Equal(t, "AAC-34-001", report.Outcome.Result.Attributes["code_aac"])
}
