package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hvactools/comfoair/internal/comfoair"
	"github.com/hvactools/comfoair/internal/protocol"
)

// controller is the slice of the client the dashboard needs. Narrowed to an
// interface so the model can be driven by a stub in tests.
type controller interface {
	AddAttributeListener(attr protocol.Attribute, fn comfoair.AttributeListener) (int, protocol.Value, bool)
	RemoveAttributeListener(id int)
	SetFanSpeed(speed int) error
	RequestFirmwareVersion() error
}

// attributeMsg carries one cooked attribute change into the update loop
type attributeMsg struct {
	attr  protocol.Attribute
	value protocol.Value
}

// speedResultMsg reports the outcome of a fan speed change
type speedResultMsg struct {
	speed int
	err   error
}

// row describes one dashboard line: which attribute it shows and how to
// format its value
type row struct {
	label  string
	attr   protocol.Attribute
	format func(protocol.Value) string
}

func degrees(v protocol.Value) string { return fmt.Sprintf("%.1f °C", v.Number) }
func percent(v protocol.Value) string { return fmt.Sprintf("%.0f %%", v.Number) }
func text(v protocol.Value) string    { return v.Text }

// 16-bit firmware versions pack major in the high byte
func fwVersion(v protocol.Value) string {
	n := int(v.Number)
	return fmt.Sprintf("%d.%d", n>>8, n&0xFF)
}

var speedNames = map[float64]string{
	1: "1 (away)",
	2: "2 (low)",
	3: "3 (mid)",
	4: "4 (high)",
}

func speed(v protocol.Value) string {
	if name, ok := speedNames[v.Number]; ok {
		return name
	}
	return fmt.Sprintf("%.0f", v.Number)
}

var rows = []row{
	{"Fan speed", protocol.FanSpeedMode, speed},
	{"Supply airflow", protocol.AirflowSupply, percent},
	{"Exhaust airflow", protocol.AirflowExhaust, percent},
	{"Comfort temperature", protocol.TempComfort, degrees},
	{"Outside temperature", protocol.TempOutside, degrees},
	{"Supply temperature", protocol.TempSupply, degrees},
	{"Return temperature", protocol.TempReturn, degrees},
	{"Exhaust temperature", protocol.TempExhaust, degrees},
	{"Firmware", protocol.FirmwareVersion, fwVersion},
	{"Device", protocol.FirmwareName, text},
}

// monitorKeyMap defines key bindings for the dashboard
type monitorKeyMap struct {
	Speed key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Speed, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Speed, k.Quit}}
}

// Model is the dashboard's bubbletea model
type Model struct {
	Device string

	ctrl    controller
	updates chan attributeMsg
	ids     []int

	values map[protocol.Attribute]protocol.Value

	Width   int
	Height  int
	Err     error
	Spinner spinner.Model
	Help    help.Model
	Keys    monitorKeyMap
}

// NewModel creates a dashboard model for ctrl and subscribes to all
// attributes the dashboard displays. The client must already be connected.
func NewModel(ctrl controller, device string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	m := Model{
		Device:  device,
		ctrl:    ctrl,
		updates: make(chan attributeMsg, 64),
		values:  make(map[protocol.Attribute]protocol.Value),
		Width:   MinTerminalWidth,
		Spinner: s,
		Help:    help.New(),
		Keys: monitorKeyMap{
			Speed: key.NewBinding(
				key.WithKeys("1", "2", "3", "4"),
				key.WithHelp("1-4", "fan speed"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}

	for _, r := range rows {
		updates := m.updates
		id, cached, ok := ctrl.AddAttributeListener(r.attr, func(attr protocol.Attribute, value protocol.Value) {
			select {
			case updates <- attributeMsg{attr: attr, value: value}:
			default:
			}
		})
		m.ids = append(m.ids, id)
		if ok {
			m.values[r.attr] = cached
		}
	}

	return m
}

// Close unsubscribes the dashboard's attribute listeners.
func (m Model) Close() {
	for _, id := range m.ids {
		m.ctrl.RemoveAttributeListener(id)
	}
}

// Init starts the spinner, the update pump and the initial firmware query
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.Spinner.Tick,
		m.waitForUpdate(),
		m.requestFirmwareCmd(),
	)
}

// waitForUpdate delivers the next attribute change as a message
func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m Model) requestFirmwareCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.RequestFirmwareVersion(); err != nil {
			return speedResultMsg{err: err}
		}
		return nil
	}
}

func (m Model) setSpeedCmd(speed int) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return speedResultMsg{speed: speed, err: ctrl.SetFanSpeed(speed)}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		if m.Width < MinTerminalWidth {
			m.Width = MinTerminalWidth
		}
		if m.Width > MaxContentWidth {
			m.Width = MaxContentWidth
		}
		m.Height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case attributeMsg:
		m.values[msg.attr] = msg.value
		return m, m.waitForUpdate()

	case speedResultMsg:
		m.Err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			m.Close()
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Speed):
			speed := int(msg.String()[0] - '0')
			return m, m.setSpeedCmd(speed)
		}
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("COMFOAIR MONITOR"))
	b.WriteString("\n")
	b.WriteString(DeviceStyle.Render(m.Device))
	b.WriteString("\n")

	if len(m.values) == 0 {
		b.WriteString(StatusWaitingStyle.Render(m.Spinner.View() + " waiting for controller data"))
	} else {
		b.WriteString(StatusConnectedStyle.Render("● live"))
	}
	b.WriteString("\n")

	var lines []string
	for _, r := range rows {
		value, ok := m.values[r.attr]
		rendered := StaleValueStyle.Render("--")
		if ok {
			rendered = ValueStyle.Render(r.format(value))
		}
		lines = append(lines, LabelStyle.Render(r.label)+rendered)
	}
	b.WriteString(BoxStyle.Width(m.Width - 4).Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(ErrorStyle.Render("error: " + m.Err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
	b.WriteString("\n")

	return b.String()
}

// Run starts the dashboard for a connected client and blocks until the user
// quits.
func Run(client *comfoair.Client, device string) error {
	m := NewModel(client, device)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
