// Package region narrows a zone collection to one French administrative
// region, by attribute value or by bounding box.
package region

import (
	"strings"

	"github.com/ngmaloney/aac-checker/internal/geometry"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
)

// WholeTerritory selects every zone
const WholeTerritory = "France entière"

// Region is an entry of the region catalog
type Region struct {
	Name string
	BBox *orb.Bound // WGS84 lon/lat, nil when unknown
}

var catalog = []Region{
	{Name: "Occitanie", BBox: &orb.Bound{Min: orb.Point{0.5, 42.3}, Max: orb.Point{4.8, 45.0}}},
	{Name: "Nouvelle-Aquitaine"},
	{Name: "Auvergne-Rhône-Alpes"},
	{Name: "Provence-Alpes-Côte d'Azur"},
	{Name: "Île-de-France"},
	{Name: "Hauts-de-France"},
	{Name: "Grand Est"},
	{Name: "Bourgogne-Franche-Comté"},
	{Name: "Centre-Val de Loire"},
	{Name: "Pays de la Loire"},
	{Name: "Bretagne"},
	{Name: "Normandie"},
	{Name: "Corse"},
	{Name: WholeTerritory},
}

// Catalog returns the selectable regions, the whole territory last
func Catalog() []Region {
	out := make([]Region, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a catalog entry by name, ignoring case
func Lookup(name string) (Region, bool) {
	for _, r := range catalog {
		if strings.EqualFold(r.Name, strings.TrimSpace(name)) {
			return r, true
		}
	}
	return Region{}, false
}

// Selector turns a region name into a selector. The whole territory and the
// empty name disable filtering.
func Selector(name string) models.RegionSelector {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, WholeTerritory) {
		return models.RegionSelector{Name: WholeTerritory, Mode: models.RegionModeNone}
	}
	return models.RegionSelector{Name: name, Mode: models.RegionModeAttribute}
}

// Result is a filtered collection and what happened while filtering
type Result struct {
	Collection *models.FeatureCollection
	Mode       models.RegionMode // How the filter was actually applied
	Field      string            // Attribute used in attribute mode
	Notices    []models.Notice
}

// Options tune the filter
type Options struct {
	Field string // Region attribute to use instead of auto-detection
}

// Filter narrows fc to the selected region with default options
func Filter(fc *models.FeatureCollection, sel models.RegionSelector) Result {
	return Options{}.Filter(fc, sel)
}

// Filter narrows fc to the selected region. It never returns an empty
// collection for a non-empty input: when nothing matches, the unfiltered
// collection is returned with a notice. Survivors keep their order.
func (o Options) Filter(fc *models.FeatureCollection, sel models.RegionSelector) Result {
	if sel.Mode == models.RegionModeNone || sel.Mode == "" || strings.EqualFold(sel.Name, WholeTerritory) {
		return Result{Collection: fc, Mode: models.RegionModeNone}
	}

	if sel.Mode == models.RegionModeAttribute {
		field := o.Field
		if field == "" {
			field = detectField(fc)
		}
		if field != "" {
			return filterByAttribute(fc, sel.Name, field)
		}
	}

	if r, ok := Lookup(sel.Name); ok && r.BBox != nil {
		return filterByBBox(fc, sel.Name, *r.BBox)
	}

	return unfiltered(fc, models.RegionModeNone, models.Noticef(models.NoticeRegionUnfilterable,
		"cannot filter automatically for %s: no region attribute found", sel.Name))
}

// IsRegionField reports whether an attribute name denotes a region
func IsRegionField(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "region") || k == "reg"
}

// detectField returns the first region attribute, in the key order of the
// first feature that has one
func detectField(fc *models.FeatureCollection) string {
	for _, f := range fc.Features {
		for _, k := range f.Attributes.Keys() {
			if IsRegionField(k) {
				return k
			}
		}
	}
	return ""
}

func filterByAttribute(fc *models.FeatureCollection, name, field string) Result {
	want := strings.ToLower(name)
	var keep []int
	for i, f := range fc.Features {
		v, ok := f.Attributes.Get(field)
		if !ok {
			continue
		}
		// Only text values can name a region
		s, ok := v.AsText()
		if ok && strings.Contains(strings.ToLower(s), want) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return unfiltered(fc, models.RegionModeAttribute, models.Noticef(models.NoticeRegionNotFound,
			"no zone found for region %s in field %q, using all %d zones", name, field, fc.Len()))
	}
	return Result{Collection: fc.Subset(keep), Mode: models.RegionModeAttribute, Field: field}
}

func filterByBBox(fc *models.FeatureCollection, name string, bbox orb.Bound) Result {
	var toWGS84 orb.Projection
	if !fc.CRS.IsGeographic() {
		proj, err := fc.CRS.ToWGS84()
		if err != nil {
			return unfiltered(fc, models.RegionModeBBox, models.Noticef(models.NoticeRegionUnfilterable,
				"cannot compare %s zones with the %s bounding box: %v", fc.CRS, name, err))
		}
		toWGS84 = proj
	}

	var keep []int
	for i, f := range fc.Features {
		g := f.Geometry
		if toWGS84 != nil {
			g = geometry.Reproject(g, toWGS84)
		}
		if g != nil && geometry.IntersectsBound(g, bbox) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return unfiltered(fc, models.RegionModeBBox, models.Noticef(models.NoticeRegionNotFound,
			"no zone found in the %s bounding box, using all %d zones", name, fc.Len()))
	}
	return Result{Collection: fc.Subset(keep), Mode: models.RegionModeBBox}
}

func unfiltered(fc *models.FeatureCollection, mode models.RegionMode, n models.Notice) Result {
	return Result{Collection: fc, Mode: mode, Notices: []models.Notice{n}}
}
