package sink

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"matrixboard/canvas"
)

// upperHalf packs two matrix rows into one terminal cell: the foreground
// paints the top pixel and the background the bottom one.
const upperHalf = '▀'

// Terminal simulates the panel in a terminal using tcell.
type Terminal struct {
	mu       sync.Mutex
	screen   tcell.Screen
	lastHash uint64
	drawn    bool
	closed   bool
}

// NewTerminal takes over the controlling terminal.
func NewTerminal() (*Terminal, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("terminal: init: %w", err)
	}
	return NewTerminalOn(s), nil
}

// NewTerminalOn draws on an already initialised screen.
func NewTerminalOn(s tcell.Screen) *Terminal {
	s.HideCursor()
	s.Clear()
	return &Terminal{screen: s}
}

func (t *Terminal) Present(c *canvas.Canvas) error {
	sum := frameHash(c)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("terminal: closed")
	}
	if t.drawn && sum == t.lastHash {
		return nil
	}
	w, h := c.Width(), c.Height()
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := c.At(x, y)
			bottom := canvas.Black
			if y+1 < h {
				bottom = c.At(x, y+1)
			}
			style := tcell.StyleDefault.
				Foreground(rgb(top.R, top.G, top.B)).
				Background(rgb(bottom.R, bottom.G, bottom.B))
			t.screen.SetContent(x, y/2, upperHalf, nil, style)
		}
	}
	t.screen.Show()
	t.lastHash = sum
	t.drawn = true
	return nil
}

// Clear blanks the terminal and gives it back to the shell.
func (t *Terminal) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.screen.Clear()
	t.screen.Show()
	t.screen.Fini()
	return nil
}

// Watch reads terminal events until the screen is finalised. Ctrl-C, Esc
// and 'q' call stop; tcell's raw mode keeps Ctrl-C from raising SIGINT.
func (t *Terminal) Watch(stop func()) {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyCtrlC || ev.Key() == tcell.KeyEsc || ev.Rune() == 'q' {
				stop()
			}
		case *tcell.EventResize:
			t.mu.Lock()
			if !t.closed {
				t.screen.Sync()
				t.drawn = false
			}
			t.mu.Unlock()
		}
	}
}

func rgb(r, g, b uint8) tcell.Color {
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
