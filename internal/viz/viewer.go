package viz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/cosim/internal/capture"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/metrics"
	"github.com/san-kum/cosim/internal/snapshot"
)

const (
	canvasWidth     = 80
	canvasHeight    = 24
	historyCapacity = 240
	frameInterval   = time.Second / 30
	orbitStep       = 0.1
	groundHalf      = 2.0
)

// defaultCamera frames the unit cube when the scene has no camera.
var defaultCamera = capture.NewCamera([2]int{canvasWidth * 2, canvasHeight * 4}, Vec3{3, -3, 2.5}, Vec3{0.5, 0.5, 0.3}, 40)

type Options struct {
	Title   string
	Backend string
	// Steps, when positive, drives the progress bar.
	Steps uint64
	// Recorder, when set, is toggled with "r" and flushed to RecordDest.
	Recorder   *capture.Recorder
	RecordDest string
	// OnQuit runs when the user leaves the viewer. The caller uses it to
	// cancel the run.
	OnQuit func()
}

type frameMsg struct {
	frame *snapshot.Frame
	err   error
}

type pollMsg struct{}

// Model follows a publisher and draws its frames. It never touches the
// scene; a paused model only stops redrawing.
type Model struct {
	ctx    context.Context
	pub    *snapshot.Publisher
	opts   Options
	canvas *Canvas

	frame    *snapshot.Frame
	gen      uint64
	finished bool
	paused   bool
	showHelp bool

	yaw, pitch, zoom float64
	history          []float64
	notice           string
}

func NewModel(ctx context.Context, pub *snapshot.Publisher, opts Options) Model {
	return Model{
		ctx:     ctx,
		pub:     pub,
		opts:    opts,
		canvas:  NewCanvas(canvasWidth, canvasHeight),
		zoom:    1,
		history: make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd { return m.next() }

func (m Model) next() tea.Cmd {
	ctx, pub, gen := m.ctx, m.pub, m.gen
	return func() tea.Msg {
		f, err := pub.Next(ctx, gen)
		return frameMsg{frame: f, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg)
	case frameMsg:
		switch {
		case msg.err == nil:
			m.observe(msg.frame)
		case errors.Is(msg.err, dynamo.ErrStopped):
			m.observe(msg.frame)
			m.finished = true
			return m, nil
		default:
			m.finished = true
			return m, nil
		}
		return m, tea.Tick(frameInterval, func(time.Time) tea.Msg { return pollMsg{} })
	case pollMsg:
		return m, m.next()
	}
	return m, nil
}

func (m *Model) observe(f *snapshot.Frame) {
	if f == nil || f.Generation <= m.gen {
		return
	}
	m.gen = f.Generation
	if m.paused {
		return
	}
	m.frame = f
	if z, ok := metrics.Centroid(f, 2); ok {
		if len(m.history) == historyCapacity {
			m.history = m.history[1:]
		}
		m.history = append(m.history, z)
	}
}

func (m Model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.opts.OnQuit != nil {
			m.opts.OnQuit()
		}
		return m, tea.Quit
	case " ":
		m.paused = !m.paused
	case "?":
		m.showHelp = !m.showHelp
	case "t":
		NextTheme()
	case "left", "h":
		m.yaw -= orbitStep
	case "right", "l":
		m.yaw += orbitStep
	case "up", "k":
		m.pitch += orbitStep
	case "down", "j":
		m.pitch -= orbitStep
	case "+", "=":
		m.zoom *= 0.9
	case "-", "_":
		m.zoom /= 0.9
	case "0":
		m.yaw, m.pitch, m.zoom = 0, 0, 1
	case "r":
		m.toggleRecording()
	}
	return m, nil
}

func (m *Model) toggleRecording() {
	rec := m.opts.Recorder
	if rec == nil {
		m.notice = "no recorder"
		return
	}
	if !rec.Recording() {
		if err := rec.StartRecording(); err != nil {
			m.notice = err.Error()
			return
		}
		m.notice = "recording"
		return
	}
	id, err := rec.StopRecording(m.opts.RecordDest)
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = "saved " + id
}

// camera is the view for the current frame: the scene's first camera
// resized to the canvas and moved by the orbit controls.
func (m Model) camera() capture.Camera {
	c := defaultCamera
	if m.frame != nil && len(m.frame.Cameras) > 0 {
		c = capture.FromFrame(m.frame.Cameras[0])
	}
	c.Res = [2]int{m.canvas.Width * 2, m.canvas.Height * 4}
	return Orbit(c, m.yaw, m.pitch, m.zoom)
}

func (m Model) draw() {
	m.canvas.Clear()
	if m.frame == nil {
		return
	}
	cam := m.camera()
	muted := CurrentTheme.Muted
	for _, b := range m.frame.Bodies {
		for _, seg := range Outline(b, groundHalf) {
			x0, y0, ok0 := cam.Project(seg[0])
			x1, y1, ok1 := cam.Project(seg[1])
			if ok0 && ok1 {
				m.canvas.DrawLine(int(x0), int(y0), int(x1), int(y1), muted)
			}
		}
	}
	for _, d := range m.frame.Domains {
		for i, p := range d.Positions {
			x, y, ok := cam.Project(p)
			if !ok {
				continue
			}
			owner := dynamo.NoOwner
			if i < len(d.Owners) {
				owner = d.Owners[i]
			}
			m.canvas.SetColor(int(x), int(y), surfaceColor(m.frame.SurfaceOf(owner)))
		}
	}
}

func surfaceColor(s dynamo.Surface) lipgloss.Color {
	ch := func(v float64) int { return int(max(0, min(1, v))*255 + 0.5) }
	return lipgloss.Color(hexColor(ch(s.Color[0]), ch(s.Color[1]), ch(s.Color[2])))
}

func (m Model) status() string {
	switch {
	case m.finished:
		return StatusPaused().Render("FINISHED") + Subtle().Render("  q to exit")
	case m.paused:
		return StatusPaused().Render("PAUSED")
	}
	return StatusRunning().Render(AnimatedSpinner(int(m.gen)) + " RUNNING")
}

func (m Model) View() string {
	m.draw()
	canvasView := lipgloss.NewStyle().Padding(1, 2).Render(m.canvas.Render())

	label, value := MetricLabel().Width(12), MetricValue()
	row := func(k, v string) string { return label.Render(k) + value.Render(v) + "\n" }

	var s strings.Builder
	title := m.opts.Title
	if title == "" {
		title = "cosim"
	}
	s.WriteString(Header().Render(strings.ToUpper(title)) + "\n")
	s.WriteString(m.status() + "\n\n")
	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("centroid z"))
		s.WriteString(lipgloss.NewStyle().Foreground(CurrentTheme.Secondary).Render(chart) + "\n\n")
	}
	if f := m.frame; f != nil {
		s.WriteString(row("Step", fmt.Sprintf("%d", f.Step)))
		if m.opts.Steps > 0 {
			s.WriteString(ProgressBar(float64(f.Step)/float64(m.opts.Steps), 30) + "\n")
		}
		s.WriteString(row("Time", fmt.Sprintf("%.4fs", f.Time)))
		for _, d := range f.Domains {
			s.WriteString(row(d.Kind.String(), fmt.Sprintf("%d", len(d.Positions))))
		}
		if n := len(f.Bodies); n > 0 {
			s.WriteString(row("bodies", fmt.Sprintf("%d", n)))
		}
		s.WriteString(row("Contacts", fmt.Sprintf("%d", f.Counters.Contacts)))
		s.WriteString(row("Absorbed", fmt.Sprintf("%d", f.Counters.Absorbed())))
	}
	if m.opts.Backend != "" {
		s.WriteString(row("Backend", m.opts.Backend))
	}
	if m.opts.Recorder != nil && m.opts.Recorder.Recording() {
		s.WriteString(StatusRecording().Render(fmt.Sprintf("● REC %d", m.opts.Recorder.Frames())) + "\n")
	}
	if m.notice != "" {
		s.WriteString(Subtle().Render(m.notice) + "\n")
	}
	s.WriteString(KeyHint().Render("\n─────────────────────\nSP:Pause Q:Quit T:Theme\nR:Record ←→↑↓:Orbit ?:Help"))

	stats := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(CurrentTheme.Muted).
		Padding(1, 2).Width(45).
		Render(s.String())
	view := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, stats)
	if m.showHelp {
		return helpText + "\n\n" + view
	}
	return view
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Freeze/resume the view   ║
║  Q        - Stop the run and quit    ║
║  ←/→ h/l  - Orbit around the target  ║
║  ↑/↓ k/j  - Tilt the camera          ║
║  +/-      - Zoom                     ║
║  0        - Reset the camera         ║
║  R        - Start/stop recording     ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`

// Run shows the viewer until the user quits or ctx ends. It fits the
// consumer signature of the run loop.
func Run(ctx context.Context, pub *snapshot.Publisher, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, pub, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
