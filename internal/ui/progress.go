// Package ui renders batch decoding progress in the terminal.
package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"tessera/internal/pipeline"
)

// maxRows bounds the per-sentence list; older finished rows scroll away.
const maxRows = 12

type progressModel struct {
	title     string
	events    <-chan pipeline.Event
	spinner   spinner.Model
	prog      progress.Model
	items     []sentenceItem
	finished  int
	failed    int
	clock     int
	batchNote string
	width     int
	done      bool
}

type sentenceItem struct {
	label    string
	status   string
	stage    pipeline.Stage
	finished bool
	touched  int
}

type eventMsg pipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders the progress of
// lines flowing through pipeline.Decode. The model quits when events closes.
func NewProgressModel(title string, lines []string, events <-chan pipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]sentenceItem, len(lines))
	for i, line := range lines {
		items[i] = sentenceItem{label: fmt.Sprintf("#%d %s", i, line), status: "queued"}
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(pipeline.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s %d/%d", m.title, m.finished, len(m.items))
	if m.failed > 0 {
		header += fmt.Sprintf(", %d failed", m.failed)
	}
	if m.batchNote != "" {
		header = fmt.Sprintf("%s (%s)", header, m.batchNote)
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-16, 20)
	for _, i := range m.visibleRows() {
		item := m.items[i]
		status := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		fmt.Fprintf(&b, "  %s %s\n", status, truncate(item.label, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

// visibleRows prefers running sentences, then queued ones, then the most
// recently finished, and returns them in index order.
func (m *progressModel) visibleRows() []int {
	var active, queued, recent []int
	for i, item := range m.items {
		switch {
		case item.finished:
			recent = append(recent, i)
		case item.status == "queued":
			queued = append(queued, i)
		default:
			active = append(active, i)
		}
	}
	slices.SortFunc(recent, func(a, b int) int { return m.items[b].touched - m.items[a].touched })
	rows := append(append(active, queued...), recent...)
	rows = rows[:min(len(rows), maxRows)]
	slices.Sort(rows)
	return rows
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev pipeline.Event) tea.Cmd {
	label := statusLabel(ev.Stage, ev.Status)
	if ev.Index < 0 {
		if label != "" {
			m.batchNote = label
		}
		return nil
	}
	if ev.Index >= len(m.items) || label == "" {
		return nil
	}
	item := &m.items[ev.Index]
	item.status = label
	item.stage = ev.Stage
	m.clock++
	item.touched = m.clock
	if terminal(ev.Status) && !item.finished {
		item.finished = true
		m.finished++
		if ev.Status == pipeline.StatusFailed || ev.Status == pipeline.StatusError {
			m.failed++
		}
	}

	total := 0.0
	for _, it := range m.items {
		if it.finished {
			total++
		} else {
			total += progressFromStage(it.stage, it.status)
		}
	}
	return m.prog.SetPercent(total / float64(len(m.items)))
}

func terminal(s pipeline.Status) bool {
	switch s {
	case pipeline.StatusDone, pipeline.StatusFailed, pipeline.StatusCached, pipeline.StatusError:
		return true
	}
	return false
}

func progressFromStage(stage pipeline.Stage, status string) float64 {
	if status == "queued" {
		return 0
	}
	switch stage {
	case pipeline.StageLookup:
		return 0.1
	case pipeline.StageDecode:
		return 0.5
	case pipeline.StageRender:
		return 0.9
	default:
		return 0.0
	}
}

func statusLabel(stage pipeline.Stage, status pipeline.Status) string {
	switch status {
	case pipeline.StatusQueued:
		return "queued"
	case pipeline.StatusDone:
		return "done"
	case pipeline.StatusFailed:
		return "failed"
	case pipeline.StatusCached:
		return "cached"
	case pipeline.StatusError:
		return "error"
	case pipeline.StatusWorking:
		return stageLabel(stage)
	default:
		return ""
	}
}

func stageLabel(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageLookup:
		return "lookup"
	case pipeline.StageDecode:
		return "decoding"
	case pipeline.StageRender:
		return "rendering"
	default:
		return ""
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done", "cached":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "failed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case "lookup", "decoding", "rendering":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
