package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/mealpix/mealpix-go/internal/importer"
)

const pollInterval = 100 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers reading a fresh controller snapshot.
type tickMsg time.Time

// startFailedMsg carries a synchronous Start error.
type startFailedMsg struct {
	err error
}

// importModel is the bubbletea model tracking one import.
type importModel struct {
	ctrl      *importer.Controller
	assetPath string
	progress  progress.Model
	snap      importer.Snapshot
	theme     Theme
	done      bool
	cancelled bool
	err       error
}

// newImportModel creates the progress model for the given controller.
func newImportModel(ctrl *importer.Controller, assetPath string) importModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return importModel{
		ctrl:      ctrl,
		assetPath: assetPath,
		progress:  prog,
		theme:     defaultTheme,
	}
}

// Init kicks off the import and the snapshot polling.
func (m importModel) Init() tea.Cmd {
	return tea.Batch(
		m.startImport(),
		tickCmd(),
		m.progress.Init(),
	)
}

// startImport begins the import on the controller. All further progress
// arrives through snapshots.
func (m importModel) startImport() tea.Cmd {
	ctrl, assetPath := m.ctrl, m.assetPath
	return func() tea.Msg {
		if err := ctrl.Start(context.Background(), assetPath); err != nil {
			return startFailedMsg{err: err}
		}
		return nil
	}
}

// Update handles messages and returns the updated model.
func (m importModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.ctrl.Cancel()
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		}

	case startFailedMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case tickMsg:
		m.snap = m.ctrl.Snapshot()

		if m.snap.Status.Terminal() {
			m.done = true
			if m.snap.Status == importer.StatusFailed {
				m.err = fmt.Errorf("%s", m.snap.Error)
			}
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m importModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m importModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	status := m.theme.statusStyle().Render(phaseLabel(m.snap.Status))
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	if m.snap.Status == importer.StatusUploading {
		bar := m.progress.ViewAs(m.snap.UploadProgress / 100)
		return fmt.Sprintf("%s %s %3.0f%%\n%s\n", status, bar, m.snap.UploadProgress, hint)
	}

	return fmt.Sprintf("%s\n%s\n", status, hint)
}

func (m importModel) finalView() string {
	if m.cancelled {
		return m.theme.hintStyle().Render("\nImport cancelled.\n")
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}

	return m.theme.successStyle().Render("✓ Recipe ready") +
		fmt.Sprintf("\n\n  Job: %s\n", m.snap.JobID)
}

// tickCmd returns a command that polls the controller after pollInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
