// SPDX-License-Identifier: MIT

// Package tui implements the interactive device and analysis picker.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ismaelmosquera/imrlib-sub001/internal/audio"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

var (
	keyQuit   = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp     = key.NewBinding(key.WithKeys("up", "k"))
	keyDown   = key.NewBinding(key.WithKeys("down", "j"))
	keyLeft   = key.NewBinding(key.WithKeys("left", "h"))
	keyRight  = key.NewBinding(key.WithKeys("right", "l"))
	keyEnter  = key.NewBinding(key.WithKeys("enter"))
	keyEscape = key.NewBinding(key.WithKeys("esc"))
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Choices offered on the configuration screen.
var (
	SampleRates  = []float64{44100, 48000, 88200, 96000}
	FrameLengths = []int{256, 512, 1024, 2048, 4096}
	WindowKinds  = []window.Kind{window.Hamming, window.BlackmanHarris92, window.Gaussian, window.Triangular}
)

// Configuration screen rows.
const (
	fieldSampleRate = iota
	fieldWindow
	fieldFrameLength
	numFields
)

// Selection is the outcome of the picker.
type Selection struct {
	DeviceID    int
	DeviceName  string
	SampleRate  float64
	Window      window.Kind
	FrameLength int
}

// DeviceListModel represents the Bubble Tea model for picking an input
// device and its analysis settings.
type DeviceListModel struct {
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	// Configuration options
	field           int
	sampleRateIndex int
	windowIndex     int
	frameIndex      int
	confirmed       bool
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a model that lists the devices returned by
// fetch, audio.GetDevices when nil.
func NewDeviceListModel(fetch func() ([]audio.Device, error)) DeviceListModel {
	if fetch == nil {
		fetch = audio.GetDevices
	}
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: ListScreen,
		frameIndex:   indexOf(FrameLengths, 1024),
	}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
		if m.activeScreen == ListScreen {
			m.updateList(msg)
		} else if m.updateConfig(msg) {
			return m, tea.Quit
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *DeviceListModel) updateList(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, keyUp):
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
	case key.Matches(msg, keyDown):
		if m.selectedIndex < len(m.devices)-1 {
			m.selectedIndex++
		}
	case key.Matches(msg, keyEnter):
		if len(m.devices) == 0 {
			return
		}
		m.activeScreen = ConfigScreen
		m.field = fieldSampleRate
		m.sampleRateIndex = max(0, indexOf(SampleRates, m.devices[m.selectedIndex].DefaultSampleRate))
	}
}

// updateConfig handles the configuration screen and reports whether the
// selection was confirmed.
func (m *DeviceListModel) updateConfig(msg tea.KeyMsg) bool {
	switch {
	case key.Matches(msg, keyEscape):
		m.activeScreen = ListScreen
	case key.Matches(msg, keyUp):
		m.field = (m.field + numFields - 1) % numFields
	case key.Matches(msg, keyDown):
		m.field = (m.field + 1) % numFields
	case key.Matches(msg, keyLeft):
		m.step(-1)
	case key.Matches(msg, keyRight):
		m.step(1)
	case key.Matches(msg, keyEnter):
		m.confirmed = true
		return true
	}
	return false
}

func (m *DeviceListModel) step(d int) {
	wrap := func(i, n int) int { return (i + d + n) % n }
	switch m.field {
	case fieldSampleRate:
		m.sampleRateIndex = wrap(m.sampleRateIndex, len(SampleRates))
	case fieldWindow:
		m.windowIndex = wrap(m.windowIndex, len(WindowKinds))
	case fieldFrameLength:
		m.frameIndex = wrap(m.frameIndex, len(FrameLengths))
	}
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ListScreen {
		m.viewport.SetContent(m.renderDevices())
	} else {
		m.viewport.SetContent(m.renderDeviceConfig())
	}
}

// Selection returns the confirmed choice, ok is false when the user quit
// without confirming.
func (m DeviceListModel) Selection() (Selection, bool) {
	if !m.confirmed || len(m.devices) == 0 {
		return Selection{}, false
	}
	d := m.devices[m.selectedIndex]
	return Selection{
		DeviceID:    d.ID,
		DeviceName:  d.Name,
		SampleRate:  SampleRates[m.sampleRateIndex],
		Window:      WindowKinds[m.windowIndex],
		FrameLength: FrameLengths[m.frameIndex],
	}, true
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Audio Device List")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Analysis Configuration")
		help = infoStyle.Render("↑/↓: Field • ←/→: Change Value • Enter: Confirm • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.Type())
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}
		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDeviceConfig formats the configuration screen
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]
	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)

	rows := []struct {
		label, value string
	}{
		{"Sample Rate", fmt.Sprintf("%.0f Hz", SampleRates[m.sampleRateIndex])},
		{"Window", WindowKinds[m.windowIndex].String()},
		{"Frame Length", fmt.Sprintf("%d samples", FrameLengths[m.frameIndex])},
	}
	for i, row := range rows {
		marker := " "
		if i == m.field {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %-13s ‹ %s ›\n", marker, row.label, row.value)
		if i == m.field {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// Run launches the picker and returns the confirmed selection.
func Run() (Selection, bool, error) {
	p := tea.NewProgram(NewDeviceListModel(nil), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Selection{}, false, err
	}
	sel, ok := final.(DeviceListModel).Selection()
	return sel, ok, nil
}

func indexOf[T comparable](values []T, v T) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return -1
}
