package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/ngmaloney/aac-checker/internal/logging"
	"github.com/ngmaloney/aac-checker/internal/ui"
	"github.com/spf13/cobra"
)

var (
	tuiFile    string
	tuiRegion  string
	tuiMapPath string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the interactive terminal application",
	Long: `Open the terminal application: choose a dataset and a region, then check
addresses or coordinates. Logs go to the configured log file so the screen
stays clean.`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVarP(&tuiFile, "file", "f", "", "Dataset to load at start")
	tuiCmd.Flags().StringVarP(&tuiRegion, "region", "r", "", "Region preselected in the filter (default from configuration)")
	tuiCmd.Flags().StringVar(&tuiMapPath, "map", ui.DefaultMapPath, "Where the map document is exported")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeQuietly(f)
	log := logging.New(cfg.Log.Level, f).With().Str("session", uuid.NewString()).Logger()

	regionName := cfg.Region.Default
	if tuiRegion != "" {
		regionName = tuiRegion
	}
	if tuiFile == "" {
		tuiFile = cfg.Dataset.Path
	}

	model := ui.NewModel(newService(cfg, log), ui.NewSession(), ui.Options{
		DatasetPath: tuiFile,
		Region:      regionName,
		MapPath:     tuiMapPath,
	})

	log.Info().Str("dataset", tuiFile).Str("region", regionName).Msg("starting terminal application")
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running application: %w", err)
	}
	return nil
}
