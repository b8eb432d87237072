package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-midiclock/debug"
	"go-midiclock/engine"
	"go-midiclock/midi"
	"go-midiclock/model"
	"go-midiclock/tempo"
	"go-midiclock/theme"
	"go-midiclock/widgets"
)

const (
	// lines taken from the receive queue per refresh
	maxLinesPerTick = 3

	chartMin    = 4000
	chartMax    = 30000
	chartHeight = 8

	nudgeSBPM = tempo.BPMScale // one BPM
)

var keys = []widgets.KeyBinding{
	{Key: "s", Desc: "start/stop clock"},
	{Key: "+/-", Desc: "tempo"},
	{Key: "f", Desc: "follow pll"},
	{Key: "t", Desc: "test pattern"},
	{Key: "q", Desc: "quit"},
}

// monitor state shared by the value-receiver Model copies
type monitor struct {
	lines    []string
	pll      *widgets.Series
	meas     *widgets.Series
	status   string
	pattern  context.CancelFunc
	snapshot model.State
}

type Model struct {
	Manager  *engine.Manager
	Watcher  *midi.PortWatcher // may be nil
	Theme    *theme.Theme
	maxLines int
	mon      *monitor
	quitting bool
}

type UpdateMsg struct{}

type PortEventMsg midi.PortEvent

type patternDoneMsg struct{ err error }

func NewModel(manager *engine.Manager, watcher *midi.PortWatcher, th *theme.Theme) Model {
	cfg := manager.Config()
	if th == nil {
		th = theme.New(nil)
	}
	return Model{
		Manager:  manager,
		Watcher:  watcher,
		Theme:    th,
		maxLines: cfg.UI.MaxLines,
		mon: &monitor{
			pll:  widgets.NewSeries(cfg.UI.ChartPoints),
			meas: widgets.NewSeries(cfg.UI.ChartPoints),
		},
	}
}

func ListenForUpdates(manager *engine.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForPorts(w *midi.PortWatcher) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-w.Events()
		if !ok {
			return nil
		}
		return PortEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Manager)}
	if m.Watcher != nil {
		cmds = append(cmds, ListenForPorts(m.Watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.mon.pattern != nil {
				m.mon.pattern()
			}
			m.Manager.StopClock()
			return m, tea.Quit

		case "s":
			if m.Manager.ClockRunning() {
				m.Manager.StopClock()
				m.mon.status = "clock stopped"
			} else if err := m.Manager.StartClock(); err != nil {
				m.mon.status = "clock: " + err.Error()
			} else {
				m.mon.status = "clock running at " + tempo.FormatSBPM(m.Manager.TargetSBPM())
			}

		case "+", "=":
			m.Manager.NudgeTempo(nudgeSBPM)
			m.mon.status = "tempo " + tempo.FormatSBPM(m.Manager.TargetSBPM())

		case "-", "_":
			m.Manager.NudgeTempo(-nudgeSBPM)
			m.mon.status = "tempo " + tempo.FormatSBPM(m.Manager.TargetSBPM())

		case "f":
			on := !m.Manager.Following()
			m.Manager.SetFollow(on)
			if on {
				m.mon.status = "following incoming clock"
			} else {
				m.mon.status = "follow off, tempo " + tempo.FormatSBPM(m.Manager.TargetSBPM())
			}

		case "t":
			if m.mon.pattern != nil {
				return m, nil
			}
			ctx, cancel := context.WithCancel(context.Background())
			m.mon.pattern = cancel
			m.mon.status = "sending test pattern"
			return m, runPattern(ctx, m.Manager)
		}

	case UpdateMsg:
		m.refresh()
		return m, ListenForUpdates(m.Manager)

	case patternDoneMsg:
		m.mon.pattern = nil
		if msg.err != nil {
			m.mon.status = "test pattern: " + msg.err.Error()
		} else {
			m.mon.status = "test pattern done"
		}

	case PortEventMsg:
		verb := "added"
		if msg.Type == midi.PortRemoved {
			verb = "removed"
		}
		m.addLine(fmt.Sprintf("%s port %s: %s", msg.Kind, verb, msg.Name))
		return m, ListenForPorts(m.Watcher)
	}

	return m, nil
}

func runPattern(ctx context.Context, manager *engine.Manager) tea.Cmd {
	return func() tea.Msg {
		err := manager.SendTestPattern(ctx)
		if err != nil {
			debug.Log("tui", "test pattern: %v", err)
		}
		return patternDoneMsg{err: err}
	}
}

// refresh pulls the model snapshot and a few queued MIDI lines.
func (m Model) refresh() {
	s := m.Manager.Snapshot()
	m.mon.snapshot = s
	m.mon.pll.Push(s.PLLSBPM)
	m.mon.meas.Push(s.MeasSBPM)

	for i := 0; i < maxLinesPerTick; i++ {
		line, ok := m.Manager.Lines().TryPop()
		if !ok {
			break
		}
		m.addLine(line)
	}
}

// addLine appends to the MIDI window, clearing it once full.
func (m Model) addLine(line string) {
	if len(m.mon.lines) >= m.maxLines {
		m.mon.lines = m.mon.lines[:0]
	}
	m.mon.lines = append(m.mon.lines, line)
}

// Lines returns the MIDI window contents.
func (m Model) Lines() []string { return m.mon.lines }

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.mon.snapshot
	th := m.Theme

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(th.FG())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	pllStyle := lipgloss.NewStyle().Foreground(th.PLL())
	measStyle := lipgloss.NewStyle().Foreground(th.Meas())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())

	sep := dimStyle.Render(" " + string(th.Symbols.Sep) + " ")

	hr := "BLE hr: --"
	if s.HRBPM != 0 {
		hr = fmt.Sprintf("BLE hr: %d BPM", s.HRBPM)
	}
	if !s.HRConnected {
		hr = dimStyle.Render(hr)
	}

	gen := "Gen: stopped"
	if s.GenRunning {
		gen = "Gen: " + tempo.FormatSBPM(s.GenSBPM)
	}
	if m.Manager.Following() {
		gen += " (follow)"
	}

	header := strings.Join([]string{
		headerStyle.Render("midiclock"),
		labelStyle.Render(hr),
		measStyle.Render("Meas: " + tempo.FormatSBPM(s.MeasSBPM)),
		pllStyle.Render("PLL: " + tempo.FormatSBPM(s.PLLSBPM)),
		labelStyle.Render(gen) + " " + m.led(s.LEDStatus),
		labelStyle.Render(s.Transport.String()),
	}, sep)

	width := m.mon.pll.Cap()
	chart := widgets.Chart{
		Min: chartMin, Max: chartMax,
		Height:  chartHeight,
		Width:   width,
		Overlap: th.Symbols.Overlap,
		Axis:    dimStyle,
	}.Render(
		widgets.ChartLine{Values: m.mon.meas.Values(), Glyph: th.Symbols.MeasPoint, Style: measStyle},
		widgets.ChartLine{Values: m.mon.pll.Values(), Glyph: th.Symbols.PLLPoint, Style: pllStyle},
	)

	var window strings.Builder
	for i := 0; i < m.maxLines; i++ {
		if i < len(m.mon.lines) {
			window.WriteString(m.mon.lines[i])
		}
		window.WriteString("\n")
	}

	counters := dimStyle.Render(fmt.Sprintf("rx %d bytes  rx dropped %d  lines dropped %d",
		m.Manager.RxBytes(), s.RxDropped, s.LineDropped))
	if s.RxDropped > 0 || s.LineDropped > 0 {
		counters = warnStyle.Render(fmt.Sprintf("rx %d bytes  rx dropped %d  lines dropped %d",
			m.Manager.RxBytes(), s.RxDropped, s.LineDropped))
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(chart)
	out.WriteString("\n\n")
	out.WriteString(window.String())
	out.WriteString("\n")
	out.WriteString(counters)
	if m.mon.status != "" {
		out.WriteString("\n")
		out.WriteString(labelStyle.Render(m.mon.status))
	}
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyLine(keys)))

	return out.String()
}

func (m Model) led(s model.LEDStatus) string {
	switch s {
	case model.LEDOn:
		return widgets.RenderLED(m.Theme.Symbols.LEDOn, m.Theme.Success())
	case model.LEDOff:
		return widgets.RenderLED(m.Theme.Symbols.LEDOff, m.Theme.Muted())
	}
	return widgets.RenderLED(m.Theme.Symbols.LEDUndef, m.Theme.Muted())
}
