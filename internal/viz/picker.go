package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Choice is one entry of the scenario menu.
type Choice struct {
	Name string
	Info string
}

// Picker is a menu that ends with one chosen scenario, or none when the
// user backs out.
type Picker struct {
	choices []Choice
	cursor  int
	chosen  string
}

func NewPicker(choices []Choice) Picker { return Picker{choices: choices} }

func (p Picker) Chosen() string { return p.chosen }

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "q", "esc", "ctrl+c":
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.choices)-1 {
			p.cursor++
		}
	case "t":
		NextTheme()
	case "enter", " ":
		if len(p.choices) > 0 {
			p.chosen = p.choices[p.cursor].Name
		}
		return p, tea.Quit
	}
	return p, nil
}

func (p Picker) View() string {
	var b strings.Builder
	b.WriteString("\n\n    " + GradientText("COSIM", CurrentTheme.Primary, CurrentTheme.Secondary) + "\n")
	b.WriteString("    " + Subtle().Render("multi-physics scenes") + "\n")
	b.WriteString("    " + Subtle().Render("─────────────────────────") + "\n\n")
	for i, c := range p.choices {
		info := c.Info
		if len(info) > 40 {
			info = info[:37] + "..."
		}
		if i == p.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", Selected().Render("▸"), MetricValue().Render(fmt.Sprintf("%-16s", c.Name)), Selected().Render(info)))
			continue
		}
		b.WriteString(fmt.Sprintf("    %s  %s\n", Subtle().Render(fmt.Sprintf("  %-16s", c.Name)), Subtle().Render(info)))
	}
	b.WriteString("\n    " + KeyHint().Render("j/k navigate  enter select  t theme  q quit") + "\n")
	return b.String()
}

// Pick runs the menu and returns the chosen name, or "" if none.
func Pick(choices []Choice) (string, error) {
	m, err := tea.NewProgram(NewPicker(choices)).Run()
	if err != nil {
		return "", err
	}
	return m.(Picker).Chosen(), nil
}
