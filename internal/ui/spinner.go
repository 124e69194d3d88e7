package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Spinner animation frames.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// spinnerInterval is the animation tick.
const spinnerInterval = 80 * time.Millisecond

// Spinner animates a label on one terminal line until it is finished with
// Success or Fail.
type Spinner struct {
	mu       sync.Mutex
	out      io.Writer
	label    string
	frame    int
	started  time.Time
	running  bool
	stop     chan struct{}
	done     chan struct{}
	lastLen  int
	interval time.Duration
}

// NewSpinner creates a spinner writing to out.
func NewSpinner(out io.Writer, label string) *Spinner {
	return &Spinner{out: out, label: label, interval: spinnerInterval}
}

// Start begins the animation. Calling Start twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.started = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.drawLocked()
	s.mu.Unlock()

	go s.animate()
}

// SetLabel replaces the label shown next to the animation.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

// Success stops the spinner and prints a green check with the elapsed time.
func (s *Spinner) Success(msg string) {
	s.finish(SuccessStyle().Render(SymbolSuccess), msg)
}

// Fail stops the spinner and prints a red cross with the elapsed time.
func (s *Spinner) Fail(msg string) {
	s.finish(ErrorStyle().Render(SymbolFail), msg)
}

func (s *Spinner) finish(symbol, msg string) {
	s.halt()

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == "" {
		msg = s.label
	}
	s.clearLocked()
	elapsed := time.Duration(0)
	if !s.started.IsZero() {
		elapsed = time.Since(s.started)
	}
	fmt.Fprintf(s.out, "%s %s %s\n", symbol, msg, MutedStyle().Render(formatDuration(elapsed)))
}

func (s *Spinner) halt() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.drawLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Spinner) drawLocked() {
	style := lipgloss.NewStyle().Foreground(SpinnerColors[(s.frame/2)%len(SpinnerColors)])
	line := fmt.Sprintf("%s %s...", style.Render(spinnerFrames[s.frame]), s.label)
	s.clearLocked()
	fmt.Fprint(s.out, line)
	s.lastLen = lipgloss.Width(line)
}

func (s *Spinner) clearLocked() {
	if s.lastLen > 0 {
		fmt.Fprint(s.out, "\r"+strings.Repeat(" ", s.lastLen)+"\r")
		s.lastLen = 0
	}
}

// formatDuration formats a duration for display (e.g., "0.3s", "1.2s").
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
