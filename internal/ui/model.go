// Package ui draws the bouncing artwork box in the terminal.
package ui

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"skidoodle/spotify-saver/internal/animation"
	"skidoodle/spotify-saver/internal/artwork"
)

const (
	defaultBoxWidth  = 32
	defaultBoxHeight = 16
	defaultSpeed     = 0.5
	defaultFPS       = 60
)

// Options configure the renderer.
type Options struct {
	Cache *artwork.Cache
	// Nudge requests an immediate poll; may be nil.
	Nudge func()

	BoxWidth     int
	BoxHeight    int
	Speed        float64
	FPS          int
	ExitOnMotion bool
}

type frameMsg time.Time

// artworkMsg carries a box prepared off the render loop.
type artworkMsg struct {
	art   *artwork.Artwork
	lines []string
}

// Model is the bubbletea model of the saver.
type Model struct {
	cache *artwork.Cache
	nudge func()
	keys  keyMap

	box   *animation.State
	boxW  int
	boxH  int
	frame time.Duration

	width  int
	height int

	pending *artwork.Artwork
	shown   *artwork.Artwork
	lines   []string

	exitOnMotion bool
	mouseSeen    bool
	mouseX       int
	mouseY       int
}

// New builds a model from opts, filling in defaults for zero values.
func New(opts Options) Model {
	boxW, boxH := opts.BoxWidth, opts.BoxHeight
	if boxW <= 0 {
		boxW = defaultBoxWidth
	}
	if boxH <= 0 {
		boxH = defaultBoxHeight
	}
	speed := opts.Speed
	if speed <= 0 {
		speed = defaultSpeed
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	cache := opts.Cache
	if cache == nil {
		cache = artwork.NewCache()
	}

	size := animation.Size{W: float64(boxW), H: float64(boxH)}
	// Cells are about twice as tall as wide, so vertical speed is halved.
	vel := animation.Vec{X: speed * randomSign(), Y: speed / 2 * randomSign()}

	return Model{
		cache:        cache,
		nudge:        opts.Nudge,
		keys:         defaultKeyMap(),
		box:          animation.New(size, size, vel),
		boxW:         boxW,
		boxH:         boxH,
		frame:        time.Second / time.Duration(fps),
		lines:        filledBox(lipgloss.Color(defaultFillColor), boxW, boxH),
		exitOnMotion: opts.ExitOnMotion,
	}
}

func randomSign() float64 {
	if rand.Intn(2) == 0 {
		return -1
	}
	return 1
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.box.Resize(animation.Size{W: float64(msg.Width), H: float64(msg.Height)})
		return m, nil

	case tea.KeyMsg:
		if m.exitOnMotion {
			return m, tea.Quit
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.nudge != nil {
				m.nudge()
			}
		}
		return m, nil

	case tea.MouseMsg:
		if !m.exitOnMotion || msg.Action != tea.MouseActionMotion {
			return m, nil
		}
		// The first report only tells us where the pointer rests.
		if !m.mouseSeen {
			m.mouseSeen = true
			m.mouseX, m.mouseY = msg.X, msg.Y
			return m, nil
		}
		if msg.X != m.mouseX || msg.Y != m.mouseY {
			return m, tea.Quit
		}
		return m, nil

	case artworkMsg:
		// A slower preparation of older artwork must not replace a newer one.
		if msg.art != m.pending {
			return m, nil
		}
		m.shown = msg.art
		m.lines = msg.lines
		return m, nil

	case frameMsg:
		m.box.Step()
		cmds := []tea.Cmd{m.tick()}
		if current := m.cache.Read(); current != nil && current != m.pending {
			m.pending = current
			cmds = append(cmds, m.prepare(current))
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

// prepare scales and renders art into box lines off the render loop.
func (m Model) prepare(art *artwork.Artwork) tea.Cmd {
	w, h := m.boxW, m.boxH
	return func() tea.Msg {
		fill := fillColor(art.Image)
		return artworkMsg{art: art, lines: artworkBox(art.Image, fill, w, h)}
	}
}

func (m Model) View() string {
	col, row := m.box.Origin()
	return compose(m.width, m.height, col, row, m.lines, m.boxW)
}

// Run drives the renderer until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.ExitOnMotion {
		progOpts = append(progOpts, tea.WithMouseAllMotion())
	}

	p := tea.NewProgram(New(opts), progOpts...)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
