package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HostChoice is one ~/.ssh/config entry offered by PickSSHHost.
type HostChoice struct {
	Alias    string
	Hostname string
	User     string
	Port     string
}

// Summary describes where the alias points.
func (h HostChoice) Summary() string {
	var parts []string
	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port "+h.Port)
	}
	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

type hostItem struct{ choice HostChoice }

func (i hostItem) Title() string       { return i.choice.Alias }
func (i hostItem) Description() string { return i.choice.Summary() }
func (i hostItem) FilterValue() string {
	return strings.Join([]string{i.choice.Alias, i.choice.Hostname, i.choice.User}, " ")
}

var (
	pickKey   = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select"))
	manualKey = key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "type it in"))
	quitKey   = key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q/esc", "cancel"))
)

// hostPickerModel is the Bubble Tea model behind PickSSHHost.
type hostPickerModel struct {
	list     list.Model
	selected *HostChoice
	manual   bool
	done     bool
}

func newHostPickerModel(choices []HostChoice) hostPickerModel {
	items := make([]list.Item, len(choices))
	for i, c := range choices {
		items[i] = hostItem{choice: c}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderForeground(ColorSecondary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(ColorMuted)

	l := list.New(items, delegate, 80, 15)
	l.Title = "Register a VM from ~/.ssh/config"
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 0, 1, 0)
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{manualKey} }

	return hostPickerModel{list: l}
}

func (m hostPickerModel) Init() tea.Cmd { return nil }

func (m hostPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, pickKey):
			if item, ok := m.list.SelectedItem().(hostItem); ok {
				c := item.choice
				m.selected = &c
			}
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, manualKey):
			m.manual, m.done = true, true
			return m, tea.Quit
		case key.Matches(msg, quitKey):
			m.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m hostPickerModel) View() string {
	if m.done {
		return ""
	}
	return m.list.View() + MutedStyle().Render("\n  Press 'm' to type the address instead")
}

// PickSSHHost lets the user choose one of choices. It returns the choice,
// or nil with manual=true when the user wants to type the address, or nil
// with manual=false when they cancelled. An empty list means manual entry.
func PickSSHHost(choices []HostChoice, in io.Reader, out io.Writer) (choice *HostChoice, manual bool, err error) {
	if len(choices) == 0 {
		return nil, true, nil
	}

	p := tea.NewProgram(newHostPickerModel(choices), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return nil, false, fmt.Errorf("host picker: %w", err)
	}
	m, ok := final.(hostPickerModel)
	if !ok {
		return nil, false, nil
	}
	return m.selected, m.manual, nil
}
