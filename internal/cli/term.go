// Package cli provides terminal output helpers for the lvcop command.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ANSI color codes.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// stdout and stderr are package variables so tests can capture output.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Colorize wraps text in a color code when stdout is a terminal.
func Colorize(text, color string) string {
	if !isTerminal(stdout) {
		return text
	}
	return color + text + ColorReset
}

// Success prints a message with a check mark.
func Success(message string) {
	printStatus(stdout, ColorGreen, "✓", message)
}

// Successf prints a formatted message with a check mark.
func Successf(format string, args ...any) {
	Success(fmt.Sprintf(format, args...))
}

// Warning prints a message with a warning sign.
func Warning(message string) {
	printStatus(stdout, ColorYellow, "⚠", message)
}

// Info prints a message with an info marker.
func Info(message string) {
	printStatus(stdout, ColorBlue, "ℹ", message)
}

// Error prints a message with a cross to stderr.
func Error(message string) {
	printStatus(stderr, ColorRed, "✗", message)
}

// Errorf prints a formatted message with a cross to stderr.
func Errorf(format string, args ...any) {
	Error(fmt.Sprintf(format, args...))
}

func printStatus(w io.Writer, color, symbol, message string) {
	if isTerminal(w) {
		fmt.Fprintf(w, "%s%s%s %s\n", color, symbol, ColorReset, message)
		return
	}
	fmt.Fprintf(w, "%s %s\n", symbol, message)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Spinner shows an animated marker while a slow call is in flight. It stays
// silent when output is not a terminal, so piped invocations remain clean.
type Spinner struct {
	frames []string
	prefix string
	writer io.Writer

	mu     sync.Mutex
	active bool
	frame  int
	done   chan struct{}
}

// NewSpinner creates a spinner with the given prefix text.
func NewSpinner(prefix string) *Spinner {
	return &Spinner{
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		prefix: prefix,
		writer: stdout,
	}
}

// Start begins animating. Starting an active spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active || !isTerminal(s.writer) {
		return
	}
	s.active = true
	s.done = make(chan struct{})

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if !s.active {
					s.mu.Unlock()
					return
				}
				frame := s.frames[s.frame%len(s.frames)]
				s.frame++
				fmt.Fprintf(s.writer, "\r%s%s%s %s", ColorCyan, frame, ColorReset, s.prefix)
				s.mu.Unlock()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
	fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.prefix)+2))
}

// FormatDuration renders a duration in compact human units.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
