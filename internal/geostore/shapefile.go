package geostore

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/ngmaloney/aac-checker/internal/crs"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// shapefileParts are the sidecar files extracted next to the .shp
var shapefileParts = []string{".shp", ".shx", ".dbf", ".prj", ".cpg"}

func readShapefileArchive(raw []byte) (*reading, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, &FormatError{Format: FormatShapefile, Err: fmt.Errorf("opening zip archive: %w", err)}
	}

	base, err := findShapefile(zr)
	if err != nil {
		return nil, &FormatError{Format: FormatShapefile, Err: err}
	}

	dir, err := os.MkdirTemp("", "aac-shp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	shpPath, err := extractShapefile(zr, base, dir)
	if err != nil {
		return nil, &FormatError{Format: FormatShapefile, Err: fmt.Errorf("extracting archive: %w", err)}
	}
	return readShapefile(shpPath)
}

// findShapefile returns the archive path (without extension) of the first
// .shp member that has a .dbf next to it
func findShapefile(zr *zip.Reader) (string, error) {
	members := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		members[strings.ToLower(f.Name)] = true
	}
	for _, f := range zr.File {
		name := f.Name
		if f.FileInfo().IsDir() || strings.HasPrefix(name, "__MACOSX/") {
			continue
		}
		ext := path.Ext(name)
		if !strings.EqualFold(ext, ".shp") {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		if members[strings.ToLower(base)+".dbf"] {
			return base, nil
		}
	}
	return "", errors.New("no .shp with a matching .dbf in archive")
}

// extractShapefile writes the members of one shapefile into dest, with
// lowercase extensions, and returns the path of the extracted .shp
func extractShapefile(zr *zip.Reader, base, dest string) (string, error) {
	stem := path.Base(base)
	for _, f := range zr.File {
		ext := path.Ext(f.Name)
		if !strings.EqualFold(strings.TrimSuffix(f.Name, ext), base) || !isShapefilePart(ext) {
			continue
		}

		fpath := filepath.Join(dest, stem+strings.ToLower(ext))
		// Check for ZipSlip vulnerability
		if !strings.HasPrefix(fpath, filepath.Clean(dest)+string(os.PathSeparator)) {
			return "", fmt.Errorf("illegal file path: %s", fpath)
		}

		if err := extractFile(f, fpath); err != nil {
			return "", err
		}
	}
	return filepath.Join(dest, stem+".shp"), nil
}

func isShapefilePart(ext string) bool {
	for _, p := range shapefileParts {
		if strings.EqualFold(ext, p) {
			return true
		}
	}
	return false
}

func extractFile(f *zip.File, fpath string) error {
	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer outFile.Close()

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(outFile, rc)
	return err
}

// readShapefile reads a .shp with its .dbf and optional .prj
func readShapefile(shpPath string) (*reading, error) {
	r := &reading{layer: strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))}

	prj, err := os.ReadFile(strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj")
	switch {
	case err == nil:
		c, err := crs.FromWKT(string(prj))
		if err != nil {
			return nil, &FormatError{Format: FormatShapefile, Err: fmt.Errorf("reading .prj: %w", err)}
		}
		r.crs = c
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("reading .prj: %w", err)
	}

	shape, err := shp.Open(shpPath)
	if err != nil {
		return nil, &FormatError{Format: FormatShapefile, Err: fmt.Errorf("opening shapefile: %w", err)}
	}
	defer shape.Close()

	fields := shape.Fields()
	for shape.Next() {
		n, p := shape.Shape()
		label := fmt.Sprintf("shape %d", n)

		pairs := make([]models.Attribute, len(fields))
		for i, f := range fields {
			pairs[i] = models.Attribute{Key: f.String(), Value: dbfValue(f, shape.ReadAttribute(n, i))}
		}
		attrs := models.NewAttributes(pairs...)

		switch s := p.(type) {
		case *shp.Polygon:
			r.add(label, assemblePolygons(s.Parts, s.Points), attrs, nil)
		case *shp.PolygonZ:
			r.add(label, assemblePolygons(s.Parts, s.Points), attrs, nil)
		case *shp.PolygonM:
			r.add(label, assemblePolygons(s.Parts, s.Points), attrs, nil)
		case *shp.Null:
			r.skip(label, errors.New("missing geometry"))
		default:
			r.skip(label, fmt.Errorf("unsupported shape type %T", p))
		}
	}
	if err := shape.Err(); err != nil {
		return nil, &FormatError{Format: FormatShapefile, Err: fmt.Errorf("iterating shapes: %w", err)}
	}
	return r, nil
}

// dbfValue converts a DBF cell according to its field type
func dbfValue(f shp.Field, raw string) models.Value {
	s := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	switch f.Fieldtype {
	case 'N', 'F':
		if s == "" {
			return models.Null()
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Text(s)
		}
		return models.Number(v)
	case 'L':
		switch strings.ToUpper(s) {
		case "T", "Y":
			return models.Bool(true)
		case "F", "N":
			return models.Bool(false)
		}
		return models.Null()
	}
	return models.Text(s)
}

// assemblePolygons turns shapefile parts into polygons. Clockwise rings are
// exteriors; counter-clockwise rings are holes of the exterior containing
// them.
func assemblePolygons(parts []int32, points []shp.Point) orb.Geometry {
	var outers []orb.Polygon
	var holes []orb.Ring
	for i := range parts {
		start := int(parts[i])
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if start < 0 || end > len(points) || start >= end {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if ring.Orientation() == orb.CCW {
			holes = append(holes, ring)
		} else {
			outers = append(outers, orb.Polygon{ring})
		}
	}

	for _, h := range holes {
		placed := false
		for i := range outers {
			if planar.RingContains(outers[i][0], h[0]) {
				outers[i] = append(outers[i], h)
				placed = true
				break
			}
		}
		if !placed {
			// Orphan hole, most likely a mis-oriented exterior
			outers = append(outers, orb.Polygon{h})
		}
	}

	switch len(outers) {
	case 0:
		return nil
	case 1:
		return outers[0]
	}
	return orb.MultiPolygon(outers)
}
