package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ngmaloney/aac-checker/internal/checker"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/ngmaloney/aac-checker/internal/render"
)

// Message types for async operations

// datasetLoadedMsg is sent when a dataset has been read and filtered
type datasetLoadedMsg struct {
	dataset *checker.Dataset
	err     error
}

// checkDoneMsg is sent when a query has been resolved
type checkDoneMsg struct {
	outcome checker.Outcome
	err     error
}

// mapExportedMsg is sent when the map document has been written
type mapExportedMsg struct {
	path string
	err  error
}

// geocodeTimeout bounds one address query, rate-limit delay included
const geocodeTimeout = 15 * time.Second

// loadDataset reads the dataset in the background
func loadDataset(svc *checker.Service, path, region string) tea.Cmd {
	return func() tea.Msg {
		ds, err := svc.Load(path, region)
		return datasetLoadedMsg{dataset: ds, err: err}
	}
}

// checkAddress geocodes and resolves an address in the background
func checkAddress(svc *checker.Service, ds *checker.Dataset, address string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), geocodeTimeout)
		defer cancel()

		out, err := svc.CheckAddress(ctx, ds, address)
		return checkDoneMsg{outcome: out, err: err}
	}
}

// checkPoint resolves explicit coordinates
func checkPoint(svc *checker.Service, ds *checker.Dataset, p models.QueryPoint) tea.Cmd {
	return func() tea.Msg {
		out, err := svc.CheckPoint(ds, p)
		return checkDoneMsg{outcome: out, err: err}
	}
}

// exportMap writes the styled map document for an outcome
func exportMap(svc *checker.Service, ds *checker.Dataset, out checker.Outcome, path string) tea.Cmd {
	return func() tea.Msg {
		view, err := svc.MapView(ds, out)
		if err != nil {
			return mapExportedMsg{path: path, err: err}
		}
		f, err := os.Create(path)
		if err != nil {
			return mapExportedMsg{path: path, err: fmt.Errorf("creating map file: %w", err)}
		}
		defer f.Close()
		return mapExportedMsg{path: path, err: render.WriteGeoJSON(f, view)}
	}
}
