// Package crs identifies coordinate reference systems and reprojects points
// between WGS84 and the projected systems found in French AAC datasets.
package crs

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// ErrUnsupported is returned for CRS codes that cannot be reprojected
var ErrUnsupported = errors.New("unsupported coordinate reference system")

// CRS is a coordinate reference system identified by its EPSG code.
// The zero value is the undefined CRS.
type CRS struct {
	code int
}

// WGS84 is EPSG:4326, longitude/latitude in degrees
var WGS84 = EPSG(4326)

// Undefined is the CRS of a source that declared none
var Undefined = CRS{}

// EPSG returns the CRS with the given EPSG code
func EPSG(code int) CRS {
	if code == 900913 || code == 102100 || code == 102113 {
		code = 3857
	}
	return CRS{code: code}
}

// Code returns the EPSG code, 0 when undefined
func (c CRS) Code() int { return c.code }

// IsDefined reports whether the CRS carries a code
func (c CRS) IsDefined() bool { return c.code != 0 }

// String returns the "EPSG:<code>" form
func (c CRS) String() string {
	if !c.IsDefined() {
		return "undefined"
	}
	return fmt.Sprintf("EPSG:%d", c.code)
}

// IsGeographic reports whether coordinates are expressed in degrees
func (c CRS) IsGeographic() bool {
	_, ok := geographic[c.code]
	return ok
}

// Supported reports whether points can be reprojected to and from this CRS
func (c CRS) Supported() bool {
	if c.IsGeographic() || c.code == 3857 {
		return true
	}
	_, ok := conics[c.code]
	return ok
}

// geographic lists the lon/lat systems treated as coincident with WGS84
// (RGF93 and ETRS89 differ from it by well under a metre).
var geographic = map[int]struct{}{
	4326: {},
	4171: {},
	4258: {},
}

var (
	urnRe       = regexp.MustCompile(`(?i)^urn:ogc:def:crs:epsg:[0-9.]*:(\d+)$`)
	epsgRe      = regexp.MustCompile(`(?i)^epsg:(\d+)$`)
	authorityRe = regexp.MustCompile(`(?i)(?:AUTHORITY|ID)\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]\s*\]\s*$`)
)

// Parse reads a CRS name such as "EPSG:2154", "urn:ogc:def:crs:EPSG::2154",
// "urn:ogc:def:crs:OGC:1.3:CRS84" or a bare code.
func Parse(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Undefined, nil
	}
	if strings.HasSuffix(strings.ToUpper(s), "CRS84") {
		return WGS84, nil
	}
	for _, re := range []*regexp.Regexp{urnRe, epsgRe} {
		if m := re.FindStringSubmatch(s); m != nil {
			return parseCode(m[1])
		}
	}
	if _, err := strconv.Atoi(s); err == nil {
		return parseCode(s)
	}
	return Undefined, fmt.Errorf("unrecognized CRS name %q", s)
}

func parseCode(s string) (CRS, error) {
	code, err := strconv.Atoi(s)
	if err != nil || code <= 0 {
		return Undefined, fmt.Errorf("invalid EPSG code %q", s)
	}
	return EPSG(code), nil
}

// wktNames maps well-known WKT names (ESRI .prj files rarely carry an
// authority) to EPSG codes. Checked in order.
var wktNames = []struct {
	fragment string
	code     int
}{
	{"LAMBERT_93", 2154},
	{"LAMBERT-93", 2154},
	{"LAMBERT 93", 2154},
	{"PSEUDO-MERCATOR", 3857},
	{"PSEUDO_MERCATOR", 3857},
	{"WEB_MERCATOR", 3857},
	{"CC42", 3942}, {"CC43", 3943}, {"CC44", 3944}, {"CC45", 3945},
	{"CC46", 3946}, {"CC47", 3947}, {"CC48", 3948}, {"CC49", 3949}, {"CC50", 3950},
	{"GCS_RGF_1993", 4171},
	{"GCS_WGS_1984", 4326},
	{"WGS 84", 4326},
	{"WGS_1984", 4326},
}

// FromWKT identifies the CRS described by a WKT definition (GeoPackage
// spatial_ref_sys entries, Shapefile .prj files).
func FromWKT(wkt string) (CRS, error) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" || strings.EqualFold(wkt, "undefined") {
		return Undefined, nil
	}
	if m := authorityRe.FindStringSubmatch(wkt); m != nil {
		return parseCode(m[1])
	}
	upper := strings.ToUpper(wkt)
	projected := strings.HasPrefix(upper, "PROJCS") || strings.HasPrefix(upper, "PROJCRS")
	for _, n := range wktNames {
		if !strings.Contains(upper, n.fragment) {
			continue
		}
		if projected && geographicCode(n.code) {
			continue
		}
		return EPSG(n.code), nil
	}
	return Undefined, fmt.Errorf("%w: cannot identify WKT %.60q", ErrUnsupported, wkt)
}

func geographicCode(code int) bool {
	_, ok := geographic[code]
	return ok
}

// FromWGS84 returns the projection taking WGS84 lon/lat into c
func (c CRS) FromWGS84() (orb.Projection, error) {
	switch {
	case !c.IsDefined(), c.IsGeographic():
		return identity, nil
	case c.code == 3857:
		return project.WGS84.ToMercator, nil
	}
	if lcc, ok := conics[c.code]; ok {
		return lcc.forward, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, c)
}

// ToWGS84 returns the projection taking coordinates in c to WGS84 lon/lat
func (c CRS) ToWGS84() (orb.Projection, error) {
	switch {
	case !c.IsDefined(), c.IsGeographic():
		return identity, nil
	case c.code == 3857:
		return project.Mercator.ToWGS84, nil
	}
	if lcc, ok := conics[c.code]; ok {
		return lcc.inverse, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, c)
}

// Transform reprojects a single point from one CRS to another
func Transform(p orb.Point, from, to CRS) (orb.Point, error) {
	if from == to {
		return p, nil
	}
	toGeo, err := from.ToWGS84()
	if err != nil {
		return p, err
	}
	fromGeo, err := to.FromWGS84()
	if err != nil {
		return p, err
	}
	return fromGeo(toGeo(p)), nil
}

func identity(p orb.Point) orb.Point { return p }
