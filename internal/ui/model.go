package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ngmaloney/aac-checker/internal/checker"
	"github.com/ngmaloney/aac-checker/internal/geocoding"
	"github.com/ngmaloney/aac-checker/internal/geostore"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/ngmaloney/aac-checker/internal/region"
)

// AppState represents the current state of the application
type AppState int

const (
	StateDataset  AppState = iota // Enter the dataset path
	StateRegion                   // Choose the region filter
	StateLoading                  // Reading and filtering the dataset
	StateQuery                    // Address or coordinates input
	StateChecking                 // Geocoding and resolving
	StateResult                   // Show the outcome
	StateError                    // Error state
)

// InputMode selects how the query point is given
type InputMode int

const (
	ModeAddress InputMode = iota
	ModeCoordinates
)

// DefaultMapPath is where the map document is exported
const DefaultMapPath = "aac-map.geojson"

const maxNotices = 5

// Options configure a model
type Options struct {
	DatasetPath string // Loaded at start when set
	Region      string // Preselected region
	MapPath     string // Export destination
}

// Model represents the application's state
type Model struct {
	state  AppState
	mode   InputMode
	width  int
	height int
	err    error

	svc     *checker.Service
	session *Session
	opts    Options

	// Dataset
	pathInput   textinput.Model
	datasetPath string
	regionList  list.Model
	regionName  string
	dataset     *checker.Dataset

	// Query
	addressInput textinput.Model
	latInput     textinput.Model
	lonInput     textinput.Model
	inputErr     error

	// Result
	outcome     *checker.Outcome
	resultTable table.Model
	status      string

	spinner     spinner.Model
	returnState AppState // Where the error view goes back to
}

// NewModel creates a new application model. A nil session starts from the
// defaults.
func NewModel(svc *checker.Service, session *Session, opts Options) Model {
	if session == nil {
		session = NewSession()
	}
	if opts.MapPath == "" {
		opts.MapPath = DefaultMapPath
	}
	regionName := opts.Region
	if _, ok := region.Lookup(regionName); !ok {
		regionName = region.WholeTerritory
	}

	pi := textinput.New()
	pi.Placeholder = "Chemin du fichier des AAC (.geojson, .gpkg, .zip)..."
	pi.CharLimit = 512
	pi.Width = 60
	pi.SetValue(opts.DatasetPath)
	pi.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	m := Model{
		state:       StateDataset,
		mode:        ModeAddress,
		svc:         svc,
		session:     session,
		opts:        opts,
		pathInput:   pi,
		regionName:  regionName,
		spinner:     s,
		returnState: StateDataset,
	}
	m.addressInput, m.latInput, m.lonInput = newQueryInputs(session)

	if opts.DatasetPath != "" {
		m.datasetPath = opts.DatasetPath
		m.state = StateLoading
	}
	return m
}

func newQueryInputs(session *Session) (address, lat, lon textinput.Model) {
	address = textinput.New()
	address.Placeholder = "Entrez une adresse (ex. 1 place de la Comédie, Montpellier)..."
	address.CharLimit = 200
	address.Width = 60
	address.SetValue(session.InitialAddress())
	address.Focus()

	p := session.InitialPoint()
	lat = textinput.New()
	lat.Placeholder = "Latitude"
	lat.CharLimit = 20
	lat.Width = 20
	lat.SetValue(strconv.FormatFloat(p.Lat, 'f', 6, 64))

	lon = textinput.New()
	lon.Placeholder = "Longitude"
	lon.CharLimit = 20
	lon.Width = 20
	lon.SetValue(strconv.FormatFloat(p.Lon, 'f', 6, 64))
	return address, lat, lon
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	if m.state == StateLoading {
		return tea.Batch(m.spinner.Tick, loadDataset(m.svc, m.datasetPath, m.regionName))
	}
	return textinput.Blink
}

// Session returns the session the model reads and updates
func (m Model) Session() *Session { return m.session }

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// Handle window size
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
		if m.state == StateRegion {
			m.regionList.SetSize(listSize(msg.Width, msg.Height))
		}
		return m, nil
	}

	// Handle custom messages
	switch msg := msg.(type) {
	case datasetLoadedMsg:
		if msg.err != nil {
			m.err = describeLoadError(msg.err)
			m.returnState = StateDataset
			if m.dataset != nil {
				m.returnState = StateQuery
			}
			m.state = StateError
			return m, nil
		}
		m.dataset = msg.dataset
		m.outcome = nil
		m.status = ""
		return m.enterQuery()

	case checkDoneMsg:
		if msg.err != nil {
			m.err = describeCheckError(msg.err)
			m.returnState = StateQuery
			m.state = StateError
			return m, nil
		}
		out := msg.outcome
		m.outcome = &out
		m.status = ""
		if out.Result.Matched {
			m.resultTable = createResultTable(*out.Result.Attributes, m.width)
		}
		m.state = StateResult
		return m, nil

	case mapExportedMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("✗ Export de la carte impossible : %v", msg.err))
		} else {
			m.status = successStyle.Render("✓ Carte exportée vers " + msg.path)
		}
		return m, nil
	}

	// Handle keyboard input
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		// Global keys
		if keyMsg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if keyMsg.String() == "q" && !m.typing() {
			return m, tea.Quit
		}

		// State-specific handling
		switch m.state {
		case StateDataset:
			return m.handleDatasetInput(keyMsg)

		case StateRegion:
			return m.handleRegionList(keyMsg)

		case StateQuery:
			return m.handleQueryInput(keyMsg)

		case StateResult:
			return m.handleResult(keyMsg)

		case StateError:
			// Any key returns to input (except quit keys)
			m.err = nil
			m.state = m.returnState
			if m.state == StateQuery {
				return m.enterQuery()
			}
			m.pathInput.Focus()
			return m, textinput.Blink
		}
	}

	// Update appropriate component based on state
	switch m.state {
	case StateLoading, StateChecking:
		m.spinner, cmd = m.spinner.Update(msg)
	case StateDataset:
		m.pathInput, cmd = m.pathInput.Update(msg)
	case StateRegion:
		m.regionList, cmd = m.regionList.Update(msg)
	case StateQuery:
		cmd = m.updateFocusedInput(msg)
	case StateResult:
		m.resultTable, cmd = m.resultTable.Update(msg)
	}

	return m, cmd
}

// typing reports whether keys go to a text field
func (m Model) typing() bool {
	return m.state == StateDataset || m.state == StateQuery
}

// handleDatasetInput handles keyboard input in dataset state
func (m Model) handleDatasetInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg.Type == tea.KeyEnter {
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" {
			return m, nil
		}
		if _, err := geostore.FormatFromPath(path); err != nil {
			m.inputErr = err
			return m, nil
		}
		m.inputErr = nil
		m.datasetPath = path
		return m.enterRegion()
	}
	if msg.Type == tea.KeyEsc && m.dataset != nil {
		return m.enterQuery()
	}

	m.inputErr = nil
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

// handleRegionList handles keyboard input in region state
func (m Model) handleRegionList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		if item, ok := m.regionList.SelectedItem().(regionItem); ok {
			m.regionName = item.region.Name
			m.state = StateLoading
			return m, tea.Batch(m.spinner.Tick, loadDataset(m.svc, m.datasetPath, m.regionName))
		}
	case tea.KeyEsc:
		if m.dataset != nil {
			return m.enterQuery()
		}
		m.state = StateDataset
		m.pathInput.Focus()
		return m, textinput.Blink
	}

	m.regionList, cmd = m.regionList.Update(msg)
	return m, cmd
}

// handleQueryInput handles keyboard input in query state
func (m Model) handleQueryInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+t":
		if m.mode == ModeAddress {
			m.mode = ModeCoordinates
		} else {
			m.mode = ModeAddress
		}
		m.inputErr = nil
		m.focusMode()
		return m, textinput.Blink

	case "tab", "shift+tab":
		if m.mode == ModeCoordinates {
			if m.latInput.Focused() {
				m.latInput.Blur()
				m.lonInput.Focus()
			} else {
				m.lonInput.Blur()
				m.latInput.Focus()
			}
		}
		return m, nil

	case "ctrl+n":
		return m.reset()

	case "ctrl+r":
		return m.enterRegion()

	case "ctrl+o":
		m.state = StateDataset
		m.pathInput.SetValue(m.datasetPath)
		m.pathInput.Focus()
		return m, textinput.Blink

	case "enter":
		return m.submit()
	}

	m.inputErr = nil
	return m, m.updateFocusedInput(msg)
}

// handleResult handles keyboard input in result state
func (m Model) handleResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "n", "ctrl+n":
		return m.reset()
	case "s", "esc", "enter":
		return m.enterQuery()
	case "m":
		if m.outcome != nil {
			m.status = mutedStyle.Render("Export de la carte...")
			return m, exportMap(m.svc, m.dataset, *m.outcome, m.opts.MapPath)
		}
		return m, nil
	case "r":
		return m.enterRegion()
	}

	m.resultTable, cmd = m.resultTable.Update(msg)
	return m, cmd
}

// submit starts the check for the current inputs
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.dataset == nil {
		m.inputErr = errors.New("veuillez d'abord charger un fichier")
		return m, nil
	}

	if m.mode == ModeAddress {
		address := strings.TrimSpace(m.addressInput.Value())
		if address == "" {
			return m, nil
		}
		m.session.RememberAddress(address)
		m.inputErr = nil
		m.state = StateChecking
		return m, tea.Batch(m.spinner.Tick, checkAddress(m.svc, m.dataset, address))
	}

	p, err := parsePoint(m.latInput.Value(), m.lonInput.Value())
	if err != nil {
		m.inputErr = err
		return m, nil
	}
	m.session.RememberPoint(p)
	m.inputErr = nil
	m.state = StateChecking
	return m, tea.Batch(m.spinner.Tick, checkPoint(m.svc, m.dataset, p))
}

// reset clears the inputs and the result, like starting a new search
func (m Model) reset() (tea.Model, tea.Cmd) {
	m.session.Reset()
	m.outcome = nil
	m.status = ""
	m.addressInput, m.latInput, m.lonInput = newQueryInputs(m.session)
	return m.enterQuery()
}

// enterQuery shows the query inputs with the remembered values
func (m Model) enterQuery() (tea.Model, tea.Cmd) {
	m.state = StateQuery
	m.inputErr = nil
	m.focusMode()
	return m, textinput.Blink
}

func (m Model) enterRegion() (tea.Model, tea.Cmd) {
	w, h := listSize(m.width, m.height)
	m.regionList = createRegionList(m.regionName, w, h)
	m.state = StateRegion
	return m, nil
}

func listSize(width, height int) (int, int) {
	return max(width-4, 20), max(height-6, 10)
}

func (m *Model) focusMode() {
	m.addressInput.Blur()
	m.latInput.Blur()
	m.lonInput.Blur()
	if m.mode == ModeAddress {
		m.addressInput.Focus()
	} else {
		m.latInput.Focus()
	}
}

func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.mode == ModeAddress:
		m.addressInput, cmd = m.addressInput.Update(msg)
	case m.latInput.Focused():
		m.latInput, cmd = m.latInput.Update(msg)
	default:
		m.lonInput, cmd = m.lonInput.Update(msg)
	}
	return cmd
}

// parsePoint reads decimal degrees, accepting a comma as separator
func parsePoint(lat, lon string) (models.QueryPoint, error) {
	parse := func(label, s string) (float64, error) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("%s invalide : %q", label, s)
		}
		return v, nil
	}
	la, err := parse("latitude", lat)
	if err != nil {
		return models.QueryPoint{}, err
	}
	lo, err := parse("longitude", lon)
	if err != nil {
		return models.QueryPoint{}, err
	}
	p := models.QueryPoint{Lat: la, Lon: lo}
	if err := p.Validate(); err != nil {
		return models.QueryPoint{}, err
	}
	return p, nil
}

func describeLoadError(err error) error {
	var fe *geostore.FormatError
	if errors.As(err, &fe) {
		return fmt.Errorf("format de fichier invalide : %w", err)
	}
	return fmt.Errorf("chargement impossible : %w", err)
}

func describeCheckError(err error) error {
	var gf *geocoding.GeocodeFailure
	if errors.As(err, &gf) {
		return fmt.Errorf("impossible de géocoder cette adresse : %w", err)
	}
	return fmt.Errorf("vérification impossible : %w", err)
}

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	switch m.state {
	case StateDataset:
		return m.viewDataset()
	case StateRegion:
		return m.viewRegion()
	case StateLoading:
		return m.viewBusy("Chargement de " + m.datasetPath)
	case StateQuery:
		return m.viewQuery()
	case StateChecking:
		return m.viewBusy("Vérification en cours")
	case StateResult:
		return m.viewResult()
	case StateError:
		return m.viewError()
	}

	return ""
}

func (m Model) header() []string {
	title := titleStyle.Render("💧 Vérification des zones AAC")
	subtitle := mutedStyle.Render("Aires d'Alimentation de Captage")
	return []string{title, subtitle, ""}
}

// viewDataset renders the dataset path input
func (m Model) viewDataset() string {
	sections := m.header()
	sections = append(sections,
		labelStyle.Render("Fichier des AAC"),
		activeInputBoxStyle.Render(m.pathInput.View()),
	)
	if m.inputErr != nil {
		sections = append(sections, "", errorStyle.Render("✗ "+m.inputErr.Error()))
	}
	sections = append(sections, "", mutedStyle.Render("Formats : GeoJSON, GeoPackage, Shapefile zippé"))

	help := "Enter: Continuer • Ctrl+C: Quitter"
	if m.dataset != nil {
		help = "Enter: Continuer • Esc: Retour • Ctrl+C: Quitter"
	}
	sections = append(sections, helpStyle.Render(help))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// viewRegion renders the region picker
func (m Model) viewRegion() string {
	help := helpStyle.Render("↑/↓: Naviguer • Enter: Choisir • Esc: Retour • Q: Quitter")
	return lipgloss.JoinVertical(lipgloss.Left, m.regionList.View(), help)
}

// viewBusy renders a spinner while a command runs
func (m Model) viewBusy(label string) string {
	sections := m.header()
	sections = append(sections, fmt.Sprintf("%s %s...", m.spinner.View(), label))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// viewQuery renders the address or coordinates input
func (m Model) viewQuery() string {
	sections := m.header()

	if m.dataset != nil {
		sections = append(sections,
			successStyle.Render("✓ "+m.dataset.Summary()),
			mutedStyle.Render(fmt.Sprintf("%s • Région : %s", m.dataset.Name, m.dataset.RegionName)),
		)
		sections = append(sections, renderNotices(m.dataset.Notices)...)
		sections = append(sections, "")
	}

	address, coords := modeStyle, modeStyle
	if m.mode == ModeAddress {
		address = activeModeStyle
	} else {
		coords = activeModeStyle
	}
	sections = append(sections,
		lipgloss.JoinHorizontal(lipgloss.Top, address.Render("Adresse"), " ", coords.Render("Coordonnées")),
		"",
	)

	if m.mode == ModeAddress {
		sections = append(sections, activeInputBoxStyle.Render(m.addressInput.View()))
	} else {
		lat, lon := inputBoxStyle.Width(30), inputBoxStyle.Width(30)
		if m.latInput.Focused() {
			lat = activeInputBoxStyle.Width(30)
		} else {
			lon = activeInputBoxStyle.Width(30)
		}
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top,
			lat.Render(m.latInput.View()), " ", lon.Render(m.lonInput.View())))
	}

	if m.inputErr != nil {
		sections = append(sections, "", errorStyle.Render("✗ "+m.inputErr.Error()))
	}

	help := "Enter: Vérifier • Ctrl+T: Adresse/Coordonnées • Ctrl+N: Nouvelle recherche • Ctrl+R: Région • Ctrl+O: Fichier • Ctrl+C: Quitter"
	if m.mode == ModeCoordinates {
		help = "Tab: Latitude/Longitude • " + help
	}
	sections = append(sections, helpStyle.Render(help))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// viewResult renders the outcome of the last query
func (m Model) viewResult() string {
	if m.outcome == nil {
		return "Aucun résultat"
	}
	out := m.outcome
	sections := m.header()

	switch {
	case out.Result.Matched && out.Address != "":
		sections = append(sections, successStyle.Render("✅ Cette adresse est située dans une AAC"))
	case out.Result.Matched:
		sections = append(sections, successStyle.Render("✅ Ces coordonnées sont situées dans une AAC"))
	case out.Address != "":
		sections = append(sections, warningStyle.Render("❌ Cette adresse n'est pas dans une AAC"))
	default:
		sections = append(sections, warningStyle.Render("❌ Ces coordonnées ne sont pas dans une AAC"))
	}

	if out.Location != "" {
		sections = append(sections, mutedStyle.Render("📍 "+out.Location))
	}
	point := fmt.Sprintf("Latitude %.6f • Longitude %.6f", out.Point.Lat, out.Point.Lon)
	if out.Tier != "" {
		point += fmt.Sprintf(" • méthode : %s", out.Tier)
	}
	sections = append(sections, mutedStyle.Render(point))

	if out.Result.Matched {
		sections = append(sections,
			sectionHeaderStyle.Render("Informations sur la zone"),
			m.resultTable.View(),
		)
	}
	sections = append(sections, renderNotices(out.Notices)...)

	if m.status != "" {
		sections = append(sections, "", m.status)
	}

	help := helpStyle.Render("N: Nouvelle recherche • S/Esc: Modifier • M: Exporter la carte • R: Région • Q: Quitter")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// viewError renders the error view
func (m Model) viewError() string {
	title := errorStyle.Render("✗ Erreur")

	var errorMsg string
	if m.err != nil {
		errorMsg = m.err.Error()
	} else {
		errorMsg = "Une erreur inconnue est survenue"
	}

	help := helpStyle.Render("Appuyez sur une touche pour revenir à la saisie • Q: Quitter")

	return lipgloss.JoinVertical(lipgloss.Left, title, "", errorMsg, "", help)
}

// renderNotices lists the first notices, one per line
func renderNotices(notices []models.Notice) []string {
	if len(notices) == 0 {
		return nil
	}
	lines := []string{""}
	for i, n := range notices {
		if i == maxNotices {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("  … et %d autres avertissements", len(notices)-maxNotices)))
			break
		}
		style := warningStyle
		if n.Kind == models.NoticeNoMatchDebug {
			style = mutedStyle
		}
		lines = append(lines, style.Render("⚠ "+n.Message))
	}
	return lines
}
