package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/ngmaloney/aac-checker/internal/region"
)

// regionItem wraps a catalog region for use in a list
type regionItem struct {
	region region.Region
}

// FilterValue implements list.Item
func (r regionItem) FilterValue() string {
	return r.region.Name
}

// Title implements list.DefaultItem
func (r regionItem) Title() string {
	return r.region.Name
}

// Description implements list.DefaultItem
func (r regionItem) Description() string {
	switch {
	case r.region.Name == region.WholeTerritory:
		return "Aucun filtre"
	case r.region.BBox != nil:
		b := r.region.BBox
		return fmt.Sprintf("Attribut région, sinon emprise %.1f,%.1f – %.1f,%.1f", b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())
	}
	return "Attribut région"
}

// createRegionList builds the region picker with selected preselected
func createRegionList(selected string, width, height int) list.Model {
	regions := region.Catalog()
	items := make([]list.Item, len(regions))
	cursor := 0
	for i, r := range regions {
		items[i] = regionItem{region: r}
		if r.Name == selected {
			cursor = i
		}
	}

	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = "Sélectionner une région"
	l.SetShowHelp(true)
	l.SetFilteringEnabled(false)
	l.Select(cursor)

	return l
}
