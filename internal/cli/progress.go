package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guiyumin/vscribe/internal/core/batch"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")) // cyan
	fileStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))           // pink
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))           // white
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))           // gray
)

// runProgress is the state shared between the run and the TUI.
type runProgress struct {
	mu        sync.RWMutex
	stage     string // "splitting", "transcribing"
	total     int
	completed int
	failed    int
	done      bool
	startTime time.Time
}

func newRunProgress() *runProgress {
	return &runProgress{stage: "splitting", startTime: time.Now()}
}

func (p *runProgress) setTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = n
	p.stage = "transcribing"
}

// observe is installed as batch.Config.Observe.
func (p *runProgress) observe(r batch.SegmentResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	if r.Failed() {
		p.failed++
	}
}

func (p *runProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
}

type progressSnapshot struct {
	stage     string
	total     int
	completed int
	failed    int
	done      bool
	elapsed   time.Duration
}

func (p *runProgress) snapshot() progressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return progressSnapshot{
		stage:     p.stage,
		total:     p.total,
		completed: p.completed,
		failed:    p.failed,
		done:      p.done,
		elapsed:   time.Since(p.startTime),
	}
}

func (s progressSnapshot) fraction() float64 {
	if s.total == 0 {
		return 0
	}
	return float64(s.completed) / float64(s.total)
}

// countingSplitter tells the progress state how many segments there are.
type countingSplitter struct {
	batch.Splitter
	progress *runProgress
}

func (s countingSplitter) Split(ctx context.Context, input, dir string) ([]batch.SegmentDescriptor, error) {
	segs, err := s.Splitter.Split(ctx, input, dir)
	if err == nil {
		s.progress.setTotal(len(segs))
	}
	return segs, err
}

type tickMsg time.Time

type progressModel struct {
	bar      progress.Model
	spinner  spinner.Model
	filename string
	provider string
	state    *runProgress
}

func newProgressModel(filename, provider string, state *runProgress) progressModel {
	bar := progress.New(
		progress.WithScaledGradient("#FF6B6B", "#4ECDC4"),
		progress.WithWidth(50),
	)

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return progressModel{
		bar:      bar,
		spinner:  s,
		filename: filename,
		provider: provider,
		state:    state,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case tickMsg:
		snap := m.state.snapshot()
		if snap.done {
			return m, tea.Quit
		}
		return m, tea.Batch(tickCmd(), m.bar.SetPercent(snap.fraction()))
	}

	return m, nil
}

func (m progressModel) View() string {
	snap := m.state.snapshot()
	if snap.done {
		return ""
	}

	stage := "Splitting audio..."
	if snap.stage == "transcribing" {
		stage = "Transcribing segments..."
	}

	var s string
	s += "\n"
	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), titleStyle.Render(stage))
	s += fmt.Sprintf("  %s %s\n", labelStyle.Render("File:"), fileStyle.Render(m.filename))
	s += fmt.Sprintf("  %s %s\n\n", labelStyle.Render("Provider:"), valueStyle.Render(m.provider))
	s += fmt.Sprintf("  %s\n\n", m.bar.View())
	s += fmt.Sprintf("  %s %d/%d  %s  %s %d  %s  %s %s\n",
		labelStyle.Render("Segments:"),
		snap.completed, snap.total,
		labelStyle.Render("│"),
		labelStyle.Render("Failed:"),
		snap.failed,
		labelStyle.Render("│"),
		labelStyle.Render("Elapsed:"),
		valueStyle.Render(formatElapsed(snap.elapsed)),
	)
	s += "\n"
	s += helpStyle.Render("  Press q to hide progress (the run continues)")
	s += "\n"
	return s
}

// withProgress draws the progress bar until fn returns.
func withProgress(filename, provider string, state *runProgress, opts []tea.ProgramOption, fn func()) {
	p := tea.NewProgram(newProgressModel(filename, provider, state), opts...)
	ui := make(chan struct{})
	go func() {
		defer close(ui)
		_, _ = p.Run()
	}()

	fn()
	state.finish()
	<-ui
}
