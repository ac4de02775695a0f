package geostore

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/ngmaloney/aac-checker/internal/crs"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"code_aac": "AAC-34-001", "nom": "Captage du Lez", "surface_ha": 12.5, "prioritaire": true, "commentaire": null},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature",
     "properties": {"code_aac": "AAC-34-002"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[2,2],[3,2],[3,3],[2,3],[2,2]]]]}}
  ]
}`

func kinds(notices []models.Notice) []models.NoticeKind {
	out := make([]models.NoticeKind, len(notices))
	for i, n := range notices {
		out[i] = n.Kind
	}
	return out
}

func TestIngestGeoJSON(t *testing.T) {
	fc, notices, err := Ingest([]byte(squareCollection), FormatGeoJSON)
	require.NoError(t, err)

	assert.Empty(t, notices, "GeoJSON implies WGS84 without a notice")
	assert.Equal(t, crs.WGS84, fc.CRS)
	assert.False(t, fc.CRSAssumed)
	assert.Equal(t, models.SourceGeoJSON, fc.Source)
	require.Equal(t, 2, fc.Len())

	first := fc.Features[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, []string{"code_aac", "nom", "surface_ha", "prioritaire", "commentaire"}, first.Attributes.Keys())
	v, _ := first.Attributes.Get("surface_ha")
	assert.Equal(t, "12.5", v.String())
	v, _ = first.Attributes.Get("prioritaire")
	assert.Equal(t, models.KindBool, v.Kind())
	v, _ = first.Attributes.Get("commentaire")
	assert.True(t, v.IsNull())

	assert.IsType(t, orb.Polygon{}, first.Geometry)
	assert.IsType(t, orb.MultiPolygon{}, fc.Features[1].Geometry)
	assert.Equal(t, 1, fc.Features[1].Index)
}

func TestIngestGeoJSONLegacyCRS(t *testing.T) {
	tests := []struct {
		name   string
		member string
		want   crs.CRS
	}{
		{"urn", `{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::2154"}}`, crs.EPSG(2154)},
		{"short name", `{"type":"name","properties":{"name":"EPSG:3857"}}`, crs.EPSG(3857)},
		{"crs84", `{"type":"name","properties":{"name":"urn:ogc:def:crs:OGC:1.3:CRS84"}}`, crs.WGS84},
		{"epsg type", `{"type":"EPSG","properties":{"code":2154}}`, crs.EPSG(2154)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"type":"FeatureCollection","crs":` + tt.member + `,"features":[]}`
			fc, notices, err := Ingest([]byte(doc), FormatGeoJSON)
			require.NoError(t, err)
			assert.Empty(t, notices)
			assert.Equal(t, tt.want, fc.CRS)
		})
	}
}

func TestIngestGeoJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{"type": "FeatureCollection", "features": [`},
		{"not a collection", `{"type": "Feature", "geometry": null, "properties": {}}`},
		{"unsupported crs", `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"EPSG:27572"}},"features":[]}`},
		{"unknown crs name", `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"lambert quelque chose"}},"features":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Ingest([]byte(tt.doc), FormatGeoJSON)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, FormatGeoJSON, fe.Format)
		})
	}
}

func TestIngestGeoJSONSkipsBadFeatures(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"id":1},"geometry":{"type":"Point","coordinates":[0,0]}},
	  {"type":"Feature","properties":{"id":2},"geometry":null},
	  {"type":"Feature","properties":{"id":3},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
	  {"type":"Feature","properties":[1,2],"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
	  {"type":"Feature","properties":{"id":5},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[0,0]]]}}
	]}`

	fc, notices, err := Ingest([]byte(doc), FormatGeoJSON)
	require.NoError(t, err)

	require.Equal(t, 1, fc.Len())
	v, _ := fc.Features[0].Attributes.Get("id")
	assert.Equal(t, "3", v.String())
	assert.Equal(t, 0, fc.Features[0].Index)
	assert.Equal(t, []models.NoticeKind{
		models.NoticeFeatureSkipped, models.NoticeFeatureSkipped, models.NoticeFeatureSkipped,
		models.NoticeFeatureSkipped,
	}, kinds(notices))
}

func TestIngestEmptyCollection(t *testing.T) {
	fc, notices, err := Ingest([]byte(`{"type":"FeatureCollection","features":[]}`), FormatGeoJSON)
	require.NoError(t, err)
	assert.Empty(t, notices)
	assert.Equal(t, 0, fc.Len())
}

// gpkg fixtures

type gpkgFixtureLayer struct {
	table string
	srsID int
	rows  []gpkgFixtureRow
}

type gpkgFixtureRow struct {
	geom []byte
	code string
	nom  string
}

func gpkgBlob(t *testing.T, srsID int32, g orb.Geometry) []byte {
	t.Helper()
	body, err := wkb.Marshal(g, binary.LittleEndian)
	require.NoError(t, err)
	h := []byte{'G', 'P', 0, 0x01, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(h[4:], uint32(srsID))
	return append(h, body...)
}

func buildGeoPackage(t *testing.T, layers ...gpkgFixtureLayer) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.gpkg")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT
		);
		CREATE TABLE gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			srs_id INTEGER
		);
		CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL
		);
		INSERT INTO gpkg_spatial_ref_sys VALUES
			('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', NULL),
			('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', NULL),
			('WGS 84 geodetic', 4326, 'EPSG', 4326, 'GEOGCS["WGS 84"]', NULL),
			('RGF93 / Lambert-93', 2154, 'EPSG', 2154, 'PROJCS["RGF93 / Lambert-93"]', NULL);
	`)
	require.NoError(t, err)

	for _, l := range layers {
		_, err = db.Exec(`CREATE TABLE "` + l.table + `" (
			fid INTEGER PRIMARY KEY AUTOINCREMENT,
			geom BLOB,
			code_aac TEXT,
			nom TEXT
		)`)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)`, l.table, l.table, l.srsID)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', 'MULTIPOLYGON', ?, 0, 0)`, l.table, l.srsID)
		require.NoError(t, err)
		for _, r := range l.rows {
			_, err = db.Exec(`INSERT INTO "`+l.table+`" (geom, code_aac, nom) VALUES (?, ?, ?)`, r.geom, r.code, r.nom)
			require.NoError(t, err)
		}
	}
	require.NoError(t, db.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}

func TestIngestGeoPackage(t *testing.T) {
	lambertSquare := orb.Polygon{{{700000, 6600000}, {701000, 6600000}, {701000, 6601000}, {700000, 6601000}, {700000, 6600000}}}
	raw := buildGeoPackage(t, gpkgFixtureLayer{
		table: "aac_zones",
		srsID: 2154,
		rows: []gpkgFixtureRow{
			{geom: gpkgBlob(t, 2154, lambertSquare), code: "AAC-34-001", nom: "Captage du Lez"},
			{geom: []byte("not a blob"), code: "AAC-34-002", nom: "Cassé"},
			{geom: gpkgBlob(t, 2154, orb.MultiPolygon{lambertSquare}), code: "AAC-34-003", nom: "Multi"},
		},
	})

	fc, notices, err := Ingest(raw, FormatGeoPackage)
	require.NoError(t, err)

	assert.Equal(t, crs.EPSG(2154), fc.CRS)
	assert.False(t, fc.CRSAssumed)
	assert.Equal(t, models.SourceGeoPackage, fc.Source)
	assert.Equal(t, "aac_zones", fc.Layer)
	assert.Equal(t, []models.NoticeKind{models.NoticeFeatureSkipped}, kinds(notices))

	require.Equal(t, 2, fc.Len())
	assert.Equal(t, []string{"code_aac", "nom"}, fc.Features[0].Attributes.Keys(), "primary key and geometry are not attributes")
	assert.Equal(t, lambertSquare, fc.Features[0].Geometry)
	v, _ := fc.Features[1].Attributes.Get("code_aac")
	assert.Equal(t, "AAC-34-003", v.String())
	assert.Equal(t, 1, fc.Features[1].Index)
}

func TestIngestGeoPackageUndefinedSRS(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

	for _, srsID := range []int{0, -1} {
		raw := buildGeoPackage(t, gpkgFixtureLayer{
			table: "zones",
			srsID: srsID,
			rows:  []gpkgFixtureRow{{geom: gpkgBlob(t, int32(srsID), square), code: "Z1"}},
		})

		fc, notices, err := Ingest(raw, FormatGeoPackage)
		require.NoError(t, err)
		assert.Equal(t, crs.WGS84, fc.CRS)
		assert.True(t, fc.CRSAssumed)
		assert.Equal(t, []models.NoticeKind{models.NoticeCRSAssumed}, kinds(notices))
	}
}

func TestIngestGeoPackageLayers(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	raw := buildGeoPackage(t,
		gpkgFixtureLayer{table: "first", srsID: 4326, rows: []gpkgFixtureRow{{geom: gpkgBlob(t, 4326, square), code: "A"}}},
		gpkgFixtureLayer{table: "second", srsID: 4326, rows: []gpkgFixtureRow{{geom: gpkgBlob(t, 4326, square), code: "B"}}},
	)

	fc, notices, err := Ingest(raw, FormatGeoPackage)
	require.NoError(t, err)
	assert.Equal(t, "first", fc.Layer)
	assert.Equal(t, []models.NoticeKind{models.NoticeLayerChoice}, kinds(notices))

	fc, notices, err = New(Options{Layer: "second"}, zerologNop()).Ingest(raw, FormatGeoPackage)
	require.NoError(t, err)
	assert.Equal(t, "second", fc.Layer)
	assert.Empty(t, notices)
	v, _ := fc.Features[0].Attributes.Get("code_aac")
	assert.Equal(t, "B", v.String())

	_, _, err = New(Options{Layer: "missing"}, zerologNop()).Ingest(raw, FormatGeoPackage)
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestIngestGeoPackageErrors(t *testing.T) {
	plain := filepath.Join(t.TempDir(), "plain.db")
	db, err := sql.Open("sqlite", plain)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE t (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	plainRaw, err := os.ReadFile(plain)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"not sqlite", []byte(squareCollection)},
		{"sqlite without gpkg tables", plainRaw},
		{"no feature layer", buildGeoPackage(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Ingest(tt.raw, FormatGeoPackage)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, FormatGeoPackage, fe.Format)
		})
	}
}

func TestDecodeGeoPackageBlob(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	body, err := wkb.Marshal(square, binary.LittleEndian)
	require.NoError(t, err)

	// xy envelope: indicator 1 in bits 1-3
	withEnvelope := append([]byte{'G', 'P', 0, 0x01 | 1<<1, 0xE6, 0x10, 0, 0}, make([]byte, 32)...)
	withEnvelope = append(withEnvelope, body...)

	g, err := decodeGeoPackageBlob(withEnvelope)
	require.NoError(t, err)
	assert.Equal(t, square, g)

	_, err = decodeGeoPackageBlob([]byte{'G', 'P', 0, 0x01 | 0x10, 0, 0, 0, 0})
	assert.Error(t, err, "empty flag")
	_, err = decodeGeoPackageBlob([]byte{'G', 'P', 0, 0x01 | 0x20, 0, 0, 0, 0})
	assert.Error(t, err, "extended geometry")
	_, err = decodeGeoPackageBlob([]byte{'X', 'X'})
	assert.Error(t, err)
}

// shapefile fixtures

const lambert93PRJ = `PROJCS["RGF_1993_Lambert_93",GEOGCS["GCS_RGF_1993",DATUM["D_RGF_1993",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",700000.0],PARAMETER["False_Northing",6600000.0],PARAMETER["Central_Meridian",3.0],PARAMETER["Standard_Parallel_1",49.0],PARAMETER["Standard_Parallel_2",44.0],PARAMETER["Latitude_Of_Origin",46.5],UNIT["Meter",1.0]]`

// buildShapefileZip writes a one-polygon shapefile and zips it. The exterior
// ring is clockwise as the format requires.
func buildShapefileZip(t *testing.T, prj string) []byte {
	t.Helper()
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "zones.shp")

	w, err := shp.Create(shpPath, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("CODE_AAC", 20),
		shp.NumberField("SURFACE", 10),
	}))

	outer := []shp.Point{{X: 700000, Y: 6600000}, {X: 700000, Y: 6601000}, {X: 701000, Y: 6601000}, {X: 701000, Y: 6600000}, {X: 700000, Y: 6600000}}
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{outer}))
	n := w.Write(&poly)
	require.NoError(t, w.WriteAttribute(int(n), 0, "AAC-34-001"))
	require.NoError(t, w.WriteAttribute(int(n), 1, 42))
	w.Close()

	if prj != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "zones.prj"), []byte(prj), 0o644))
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		data, err := os.ReadFile(filepath.Join(dir, "zones"+ext))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		require.NoError(t, err)
		f, err := zw.Create("data/zones" + ext)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestIngestShapefile(t *testing.T) {
	fc, notices, err := Ingest(buildShapefileZip(t, lambert93PRJ), FormatShapefile)
	require.NoError(t, err)

	assert.Empty(t, notices)
	assert.Equal(t, crs.EPSG(2154), fc.CRS)
	assert.Equal(t, models.SourceShapefile, fc.Source)
	assert.Equal(t, "zones", fc.Layer)
	require.Equal(t, 1, fc.Len())

	attrs := fc.Features[0].Attributes
	assert.Equal(t, []string{"CODE_AAC", "SURFACE"}, attrs.Keys())
	v, _ := attrs.Get("CODE_AAC")
	assert.Equal(t, "AAC-34-001", v.String())
	v, _ = attrs.Get("SURFACE")
	assert.Equal(t, "42", v.String())

	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, poly, 1)
	assert.Equal(t, orb.Bound{Min: orb.Point{700000, 6600000}, Max: orb.Point{701000, 6601000}}, poly.Bound())
}

func TestIngestShapefileWithoutPRJ(t *testing.T) {
	fc, notices, err := Ingest(buildShapefileZip(t, ""), FormatShapefile)
	require.NoError(t, err)
	assert.True(t, fc.CRSAssumed)
	assert.Equal(t, crs.WGS84, fc.CRS)
	assert.Equal(t, []models.NoticeKind{models.NoticeCRSAssumed}, kinds(notices))
}

func TestIngestShapefileErrors(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("no shapes here"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name string
		raw  []byte
	}{
		{"not a zip", []byte("plain text")},
		{"no shp member", buf.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Ingest(tt.raw, FormatShapefile)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
		})
	}
}

func TestAssemblePolygons(t *testing.T) {
	// Clockwise exterior, counter-clockwise hole, then a second exterior
	points := []shp.Point{
		{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0},
		{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 6, Y: 6}, {X: 4, Y: 6}, {X: 4, Y: 4},
		{X: 20, Y: 0}, {X: 20, Y: 1}, {X: 21, Y: 1}, {X: 21, Y: 0}, {X: 20, Y: 0},
	}

	g := assemblePolygons([]int32{0, 5, 10}, points)
	mp, ok := g.(orb.MultiPolygon)
	require.True(t, ok)
	require.Len(t, mp, 2)
	assert.Len(t, mp[0], 2, "hole attached to the enclosing exterior")
	assert.Len(t, mp[1], 1)

	single := assemblePolygons([]int32{0, 5}, points[:10])
	assert.IsType(t, orb.Polygon{}, single)
	assert.Nil(t, assemblePolygons(nil, nil))
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"zones.geojson", FormatGeoJSON, false},
		{"zones.JSON", FormatGeoJSON, false},
		{"zones.gpkg", FormatGeoPackage, false},
		{"zones.zip", FormatShapefile, false},
		{"zones.shp", FormatShapefile, false},
		{"zones.kml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIngestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.geojson")
	require.NoError(t, os.WriteFile(path, []byte(squareCollection), 0o644))

	fc, _, err := New(Options{}, zerologNop()).IngestFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, fc.Len())

	_, _, err = New(Options{}, zerologNop()).IngestFile(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}

func zerologNop() zerolog.Logger { return zerolog.Nop() }
