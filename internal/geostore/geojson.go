package geostore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ngmaloney/aac-checker/internal/crs"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb/geojson"
)

type geojsonCollection struct {
	Type     string           `json:"type"`
	CRS      *geojsonCRS      `json:"crs"`
	Features []geojsonFeature `json:"features"`
}

// geojsonCRS is the pre-RFC 7946 "crs" member, still written by many tools
type geojsonCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string          `json:"name"`
		Code json.RawMessage `json:"code"`
	} `json:"properties"`
}

type geojsonFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

func readGeoJSON(raw []byte) (*reading, error) {
	var doc geojsonCollection
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &FormatError{Format: FormatGeoJSON, Err: fmt.Errorf("decoding json: %w", err)}
	}
	if doc.Type != "FeatureCollection" {
		return nil, formatErrorf(FormatGeoJSON, "expected a FeatureCollection, got type %q", doc.Type)
	}

	r := &reading{crsImplicit: true}
	if doc.CRS != nil {
		c, err := doc.CRS.resolve()
		if err != nil {
			return nil, &FormatError{Format: FormatGeoJSON, Err: err}
		}
		r.crs = c
	}

	for i, f := range doc.Features {
		label := fmt.Sprintf("feature %d", i)
		attrs, err := decodeProperties(f.Properties)
		if err != nil {
			r.skip(label, err)
			continue
		}
		if isNull(f.Geometry) {
			r.skip(label, errors.New("missing geometry"))
			continue
		}
		g, err := geojson.UnmarshalGeometry(f.Geometry)
		if err != nil {
			r.skip(label, fmt.Errorf("decoding geometry: %w", err))
			continue
		}
		r.add(label, g.Geometry(), attrs, nil)
	}
	return r, nil
}

func (c *geojsonCRS) resolve() (crs.CRS, error) {
	switch c.Type {
	case "name", "":
		return crs.Parse(c.Properties.Name)
	case "EPSG":
		code, err := strconv.Atoi(string(bytes.Trim(c.Properties.Code, `"`)))
		if err != nil {
			return crs.Undefined, fmt.Errorf("invalid EPSG code in crs member: %w", err)
		}
		return crs.EPSG(code), nil
	}
	return crs.Undefined, fmt.Errorf("%w: crs member of type %q", crs.ErrUnsupported, c.Type)
}

// decodeProperties reads a properties object keeping key order
func decodeProperties(raw json.RawMessage) (models.Attributes, error) {
	if isNull(raw) {
		return models.Attributes{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return models.Attributes{}, fmt.Errorf("decoding properties: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return models.Attributes{}, errors.New("properties is not an object")
	}

	var pairs []models.Attribute
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return models.Attributes{}, fmt.Errorf("decoding properties: %w", err)
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return models.Attributes{}, fmt.Errorf("decoding property %q: %w", key, err)
		}
		pairs = append(pairs, models.Attribute{Key: key, Value: models.ValueOf(v)})
	}
	return models.NewAttributes(pairs...), nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
