package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/ngmaloney/aac-checker/internal/checker"
	"github.com/ngmaloney/aac-checker/internal/logging"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/ngmaloney/aac-checker/internal/render"
	"github.com/spf13/cobra"
)

var (
	checkFile        string
	checkAddressText string
	checkLat         float64
	checkLon         float64
	checkRegion      string
	checkRegionField string
	checkLayer       string
	checkJSON        bool
	checkMapPath     string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check one address or coordinate pair against a dataset",
	Long: `Load a dataset, narrow it to a region and tell whether the given address
or coordinates fall inside one of its zones. The matched zone's attributes
are printed, and a styled GeoJSON map can be written with --map.`,
	Example: `  aac-checker check --file aac.gpkg --address "1 place de la Comédie, Montpellier"
  aac-checker check --file aac.geojson --lat 43.6 --lon 3.87 --region "France entière" --json`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkFile, "file", "f", "", "Dataset path (.geojson, .json, .gpkg, .zip, .shp)")
	checkCmd.Flags().StringVarP(&checkAddressText, "address", "a", "", "Address to geocode")
	checkCmd.Flags().Float64Var(&checkLat, "lat", 0, "Latitude in WGS84 degrees")
	checkCmd.Flags().Float64Var(&checkLon, "lon", 0, "Longitude in WGS84 degrees")
	checkCmd.Flags().StringVarP(&checkRegion, "region", "r", "", "Region filter (default from configuration)")
	checkCmd.Flags().StringVar(&checkRegionField, "region-field", "", "Attribute holding the region name (auto-detected when empty)")
	checkCmd.Flags().StringVar(&checkLayer, "layer", "", "GeoPackage layer to read")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the outcome as JSON")
	checkCmd.Flags().StringVar(&checkMapPath, "map", "", "Write a styled GeoJSON map to this path")

	checkCmd.MarkFlagsMutuallyExclusive("address", "lat")
	checkCmd.MarkFlagsMutuallyExclusive("address", "lon")
	checkCmd.MarkFlagsRequiredTogether("lat", "lon")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if checkRegionField != "" {
		cfg.Region.Field = checkRegionField
	}
	if checkLayer != "" {
		cfg.Dataset.Layer = checkLayer
	}
	if checkFile == "" {
		checkFile = cfg.Dataset.Path
	}
	if checkFile == "" {
		return errors.New("a dataset is required (--file or dataset.path)")
	}
	byCoordinates := cmd.Flags().Changed("lat")
	if checkAddressText == "" && !byCoordinates {
		return errors.New("give either --address or --lat and --lon")
	}

	log := logging.NewConsole(cfg.Log.Level, os.Stderr)
	svc := newService(cfg, log)

	regionName := cfg.Region.Default
	if checkRegion != "" {
		regionName = checkRegion
	}
	ds, err := svc.Load(checkFile, regionName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var out checker.Outcome
	if byCoordinates {
		out, err = svc.CheckPoint(ds, models.QueryPoint{Lat: checkLat, Lon: checkLon})
	} else {
		out, err = svc.CheckAddress(ctx, ds, checkAddressText)
	}
	if err != nil {
		return err
	}

	if checkMapPath != "" {
		if err := writeMap(svc, ds, out, checkMapPath); err != nil {
			return err
		}
		log.Info().Str("path", checkMapPath).Msg("map written")
	}

	if checkJSON {
		return printJSON(cmd.OutOrStdout(), ds, out)
	}
	printText(cmd.OutOrStdout(), ds, out)
	return nil
}

func writeMap(svc *checker.Service, ds *checker.Dataset, out checker.Outcome, path string) error {
	view, err := svc.MapView(ds, out)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating map file: %w", err)
	}
	defer closeQuietly(f)
	return render.WriteGeoJSON(f, view)
}

type checkReport struct {
	Dataset string          `json:"dataset"`
	Zones   int             `json:"zones"`
	Kept    int             `json:"kept"`
	Region  string          `json:"region"`
	Outcome checker.Outcome `json:"outcome"`
	Notices []models.Notice `json:"dataset_notices,omitempty"`
}

func printJSON(w io.Writer, ds *checker.Dataset, out checker.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(checkReport{
		Dataset: ds.Name,
		Zones:   ds.Full.Len(),
		Kept:    ds.Collection.Len(),
		Region:  ds.RegionName,
		Outcome: out,
		Notices: ds.Notices,
	})
}

func printText(w io.Writer, ds *checker.Dataset, out checker.Outcome) {
	fmt.Fprintf(w, "%s: %s\n", ds.Name, ds.Summary())
	for _, n := range ds.Notices {
		fmt.Fprintf(w, "  ! %s\n", n.Message)
	}
	if out.Address != "" {
		fmt.Fprintf(w, "Adresse : %s\n", out.Address)
	}
	if out.Location != "" {
		fmt.Fprintf(w, "Localisé : %s\n", out.Location)
	}
	fmt.Fprintf(w, "Point : %s\n", out.Point)

	if !out.Result.Matched {
		fmt.Fprintln(w, "Hors AAC")
	} else {
		fmt.Fprintf(w, "Dans une AAC (méthode : %s)\n", out.Tier)
		for _, p := range out.Result.Attributes.Pairs() {
			fmt.Fprintf(w, "  %-24s %s\n", p.Key, p.Value)
		}
	}
	for _, n := range out.Notices {
		fmt.Fprintf(w, "  ! %s\n", n.Message)
	}
}
