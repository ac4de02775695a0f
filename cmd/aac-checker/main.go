package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ngmaloney/aac-checker/internal/checker"
	"github.com/ngmaloney/aac-checker/internal/config"
	"github.com/ngmaloney/aac-checker/internal/geocoding"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "aac-checker",
	Short: "Check whether an address lies in a catchment area (AAC)",
	Long: `aac-checker loads a dataset of Aires d'Alimentation de Captage (GeoJSON,
GeoPackage or zipped Shapefile) and tells whether an address or a pair of
coordinates falls inside one of its zones.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "aac-checker.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides the configuration")

	rootCmd.AddCommand(tuiCmd, checkCmd, regionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, then .env and the environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(".env")
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func geocoderConfig(c config.GeocoderConfig) geocoding.Config {
	return geocoding.Config{
		URL:          c.URL,
		UserAgent:    c.UserAgent,
		Email:        c.Email,
		CountryCodes: c.CountryCodes,
		Delay:        c.Delay.Std(),
		Timeout:      c.Timeout.Std(),
	}
}

// newService wires the geocoder and the checker from the configuration
func newService(cfg *config.Config, log zerolog.Logger) *checker.Service {
	g := geocoding.NewGeocoder(geocoderConfig(cfg.Geocoder), log)
	return checker.New(g, checker.OptionsFromConfig(cfg, log), log)
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
