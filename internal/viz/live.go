package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/gravsim/internal/app"
	"github.com/san-kum/gravsim/internal/gravity"
)

const (
	width           = 60
	height          = 24
	historyCapacity = 300
	trailCapacity   = 200
	maxStepsPerTick = 4096
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(42)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

type point struct{ x, y int }

// Model steps a Simulation every frame and draws it.
type Model struct {
	sim           *app.Simulation
	initial       gravity.State
	name          string
	canvas        *Canvas
	view          Viewport
	trails        [][]point
	showTrails    bool
	energyHistory []float64
	stepsPerTick  int
	running       bool
	frame         time.Duration
}

func NewModel(sim *app.Simulation, name string) Model {
	initial := sim.Snapshot()
	return Model{
		sim:           sim,
		initial:       initial,
		name:          name,
		canvas:        NewCanvas(width, height),
		view:          FitViewport(initial),
		trails:        make([][]point, len(initial.Entities)),
		showTrails:    true,
		energyHistory: make([]float64, 0, historyCapacity),
		stepsPerTick:  1,
		running:       true,
		frame:         time.Second / 30,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "t":
			m.showTrails = !m.showTrails
		case "+", "=":
			m.stepsPerTick = min(m.stepsPerTick*2, maxStepsPerTick)
		case "-", "_":
			m.stepsPerTick = max(m.stepsPerTick/2, 1)
		}
	case TickMsg:
		if m.running {
			m.advance()
		}
		return m, m.tick()
	}
	return m, nil
}

// advance runs stepsPerTick steps, stopping early once the snapshot goes
// non-finite.
func (m *Model) advance() {
	var s gravity.State
	for i := 0; i < m.stepsPerTick; i++ {
		s = m.sim.Step()
		if !s.IsValid() {
			m.running = false
			break
		}
	}
	m.record(s)
}

func (m *Model) record(s gravity.State) {
	m.view = m.view.Grow(s)

	if e := gravity.Energy(s); !math.IsNaN(e) && !math.IsInf(e, 0) {
		m.energyHistory = append(m.energyHistory, e)
		if len(m.energyHistory) > historyCapacity {
			m.energyHistory = m.energyHistory[1:]
		}
	}

	cw, ch := m.canvas.Dots()
	for i, e := range s.Entities {
		if i >= len(m.trails) {
			break
		}
		x, y, ok := m.view.Project(e.PositionM, cw, ch)
		if !ok {
			continue
		}
		m.trails[i] = append(m.trails[i], point{x, y})
		if len(m.trails[i]) > trailCapacity {
			m.trails[i] = m.trails[i][1:]
		}
	}
}

func (m *Model) reset() {
	m.sim.Setup(m.initial)
	m.view = FitViewport(m.initial)
	m.trails = make([][]point, len(m.initial.Entities))
	m.energyHistory = m.energyHistory[:0]
	m.running = true
}

// draw paints the current snapshot. Trails were projected with an older
// viewport and may lag a grown frame until they age out.
func (m *Model) draw(s gravity.State) {
	m.canvas.Clear()
	if m.showTrails {
		for _, trail := range m.trails {
			for _, p := range trail {
				m.canvas.Set(p.x, p.y)
			}
		}
	}
	cw, ch := m.canvas.Dots()
	for _, e := range s.Entities {
		if x, y, ok := m.view.Project(e.PositionM, cw, ch); ok {
			m.canvas.Body(x, y)
		}
	}
}

func (m Model) View() string {
	s := m.sim.Snapshot()
	m.draw(s)
	canvasView := canvasStyle.Render(m.canvas.String())

	var b strings.Builder
	b.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n")

	status := "RUNNING"
	if !s.IsValid() {
		status = warnStyle.Render("DIVERGED (NaN)")
	} else if !m.running {
		status = "PAUSED"
	}
	b.WriteString(status + "\n\n")

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy (J)"))
		b.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	b.WriteString(labelStyle.Render("Time") + valueStyle.Render(formatDuration(s.TimeS)) + "\n")
	b.WriteString(labelStyle.Render("Step") + valueStyle.Render(fmt.Sprintf("%gs x%d", s.StepS, m.stepsPerTick)) + "\n")
	b.WriteString(labelStyle.Render("Bodies") + valueStyle.Render(fmt.Sprintf("%d", len(s.Entities))) + "\n")
	b.WriteString(labelStyle.Render("Energy") + valueStyle.Render(fmt.Sprintf("%.4e J", gravity.Energy(s))) + "\n")
	com := gravity.CenterOfMass(s)
	b.WriteString(labelStyle.Render("CoM") + valueStyle.Render(fmt.Sprintf("%.2e, %.2e m", com.X, com.Y)) + "\n")
	b.WriteString(labelStyle.Render("Width") + valueStyle.Render(fmt.Sprintf("%.3e m", m.view.Max.X-m.view.Min.X)) + "\n")

	b.WriteString(helpStyle.Render("\n─────────────────────\nSP:Pause R:Reset Q:Quit\nT:Trails +/-:Speed"))
	statsView := statsStyle.Render(b.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
}

// formatDuration renders simulated seconds with the largest sensible unit.
func formatDuration(sec float64) string {
	switch {
	case math.Abs(sec) >= 86400*365.25:
		return fmt.Sprintf("%.2f yr", sec/(86400*365.25))
	case math.Abs(sec) >= 86400:
		return fmt.Sprintf("%.2f d", sec/86400)
	case math.Abs(sec) >= 3600:
		return fmt.Sprintf("%.2f h", sec/3600)
	default:
		return fmt.Sprintf("%.1f s", sec)
	}
}

// Run blocks until the user quits.
func Run(sim *app.Simulation, name string) error {
	p := tea.NewProgram(NewModel(sim, name), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
