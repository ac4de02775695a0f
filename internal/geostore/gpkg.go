package geostore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ngmaloney/aac-checker/internal/crs"
	"github.com/ngmaloney/aac-checker/internal/database"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

type gpkgLayer struct {
	table  string
	column string
	srsID  int
}

func readGeoPackage(raw []byte, layerName string) (*reading, error) {
	if !database.IsSQLite(raw) {
		return nil, formatErrorf(FormatGeoPackage, "not a SQLite database")
	}

	// SQLite needs a file on disk
	tmp, err := os.CreateTemp("", "aac-*.gpkg")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("writing temp file: %w", err)
	}

	db, err := database.OpenReadOnly(tmp.Name())
	if err != nil {
		return nil, &FormatError{Format: FormatGeoPackage, Err: err}
	}
	defer db.Close()

	ok, err := database.TableExists(db, "gpkg_contents")
	if err != nil {
		return nil, &FormatError{Format: FormatGeoPackage, Err: err}
	}
	if !ok {
		return nil, formatErrorf(FormatGeoPackage, "gpkg_contents table missing")
	}

	layers, err := listLayers(db)
	if err != nil {
		return nil, &FormatError{Format: FormatGeoPackage, Err: err}
	}
	if len(layers) == 0 {
		return nil, &FormatError{Format: FormatGeoPackage, Err: errNoFeatures}
	}

	r := &reading{}
	layer := layers[0]
	if layerName != "" {
		found := false
		for _, l := range layers {
			if l.table == layerName {
				layer, found = l, true
				break
			}
		}
		if !found {
			return nil, formatErrorf(FormatGeoPackage, "layer %q not found", layerName)
		}
	} else if len(layers) > 1 {
		names := make([]string, len(layers))
		for i, l := range layers {
			names[i] = l.table
		}
		r.notices = append(r.notices, models.Noticef(models.NoticeLayerChoice,
			"%d feature layers found (%s), reading %q", len(layers), strings.Join(names, ", "), layer.table))
	}
	r.layer = layer.table

	r.crs, err = layerCRS(db, layer.srsID)
	if err != nil {
		return nil, &FormatError{Format: FormatGeoPackage, Err: err}
	}

	if err := readLayer(db, layer, r); err != nil {
		return nil, &FormatError{Format: FormatGeoPackage, Err: err}
	}
	return r, nil
}

func listLayers(db *sql.DB) ([]gpkgLayer, error) {
	rows, err := db.Query(`
		SELECT c.table_name, g.column_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("listing feature layers: %w", err)
	}
	defer rows.Close()

	var layers []gpkgLayer
	for rows.Next() {
		var l gpkgLayer
		if err := rows.Scan(&l.table, &l.column, &l.srsID); err != nil {
			return nil, fmt.Errorf("scanning layer: %w", err)
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

// layerCRS resolves a gpkg srs_id. The reserved ids 0 and -1 mean undefined.
func layerCRS(db *sql.DB, srsID int) (crs.CRS, error) {
	if srsID == 0 || srsID == -1 {
		return crs.Undefined, nil
	}

	var (
		org        string
		orgID      int
		definition string
	)
	err := db.QueryRow(
		"SELECT organization, organization_coordsys_id, definition FROM gpkg_spatial_ref_sys WHERE srs_id = ?",
		srsID,
	).Scan(&org, &orgID, &definition)
	if errors.Is(err, sql.ErrNoRows) {
		// Most writers use the EPSG code as srs_id
		return crs.EPSG(srsID), nil
	}
	if err != nil {
		return crs.Undefined, fmt.Errorf("querying spatial reference %d: %w", srsID, err)
	}

	if strings.EqualFold(org, "EPSG") && orgID > 0 {
		return crs.EPSG(orgID), nil
	}
	c, err := crs.FromWKT(definition)
	if err != nil {
		return crs.Undefined, fmt.Errorf("spatial reference %d: %w", srsID, err)
	}
	return c, nil
}

type gpkgColumn struct {
	name string
	pk   bool
}

func tableColumns(db *sql.DB, table string) ([]gpkgColumn, error) {
	rows, err := db.Query("PRAGMA table_info(" + quoteIdent(table) + ")")
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []gpkgColumn
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		cols = append(cols, gpkgColumn{name: name, pk: pk > 0})
	}
	return cols, rows.Err()
}

func readLayer(db *sql.DB, layer gpkgLayer, r *reading) error {
	cols, err := tableColumns(db, layer.table)
	if err != nil {
		return err
	}

	// Attribute columns in table order, geometry column last
	var names []string
	for _, c := range cols {
		if c.pk || c.name == layer.column {
			continue
		}
		names = append(names, c.name)
	}
	selected := make([]string, 0, len(names)+1)
	for _, n := range names {
		selected = append(selected, quoteIdent(n))
	}
	selected = append(selected, quoteIdent(layer.column))

	rows, err := db.Query("SELECT " + strings.Join(selected, ", ") + " FROM " + quoteIdent(layer.table))
	if err != nil {
		return fmt.Errorf("reading layer %s: %w", layer.table, err)
	}
	defer rows.Close()

	values := make([]any, len(selected))
	ptrs := make([]any, len(selected))
	for i := range values {
		ptrs[i] = &values[i]
	}

	row := 0
	for rows.Next() {
		label := fmt.Sprintf("row %d", row)
		row++
		if err := rows.Scan(ptrs...); err != nil {
			r.skip(label, err)
			continue
		}

		pairs := make([]models.Attribute, len(names))
		for i, n := range names {
			pairs[i] = models.Attribute{Key: n, Value: sqlValue(values[i])}
		}

		blob, _ := values[len(names)].([]byte)
		if blob == nil {
			r.skip(label, errors.New("missing geometry"))
			continue
		}
		g, err := decodeGeoPackageBlob(blob)
		r.add(label, g, models.NewAttributes(pairs...), err)
	}
	return rows.Err()
}

func sqlValue(v any) models.Value {
	switch x := v.(type) {
	case time.Time:
		return models.Text(x.Format(time.RFC3339))
	}
	return models.ValueOf(v)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// envelopeSizes maps the envelope contents indicator of a GeoPackage
// binary header to the envelope length in bytes
var envelopeSizes = [...]int{0, 32, 48, 48, 64}

// decodeGeoPackageBlob decodes a GeoPackage binary geometry: an 8 byte
// header ("GP", version, flags, srs_id), an optional envelope and WKB.
func decodeGeoPackageBlob(b []byte) (orb.Geometry, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, errors.New("not a GeoPackage geometry blob")
	}

	flags := b[3]
	if flags&0x20 != 0 {
		return nil, errors.New("extended GeoPackage geometries are not supported")
	}
	if flags&0x10 != 0 {
		return nil, errors.New("empty geometry")
	}

	indicator := int(flags>>1) & 0x07
	if indicator >= len(envelopeSizes) {
		return nil, fmt.Errorf("invalid envelope indicator %d", indicator)
	}
	offset := 8 + envelopeSizes[indicator]
	if len(b) <= offset {
		return nil, errors.New("truncated geometry blob")
	}

	g, err := wkb.Unmarshal(b[offset:])
	if err != nil {
		return nil, fmt.Errorf("decoding wkb: %w", err)
	}
	return g, nil
}
