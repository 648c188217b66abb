package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

// Spinner frames for animated progress
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Terminal writes progress to stderr so stdout stays machine-readable
type Terminal struct {
	IsTerminal bool
	UseColor   bool

	w            io.Writer
	spinnerIndex int
}

// NewTerminal creates a Terminal for stderr
func NewTerminal() *Terminal {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	return &Terminal{
		IsTerminal: isTerminal,
		UseColor:   isTerminal && os.Getenv("NO_COLOR") == "",
		w:          os.Stderr,
	}
}

// ClearLine clears the current line (terminal only)
func (t *Terminal) ClearLine() {
	if t.IsTerminal {
		fmt.Fprint(t.w, "\r\033[K")
	}
}

// Spinner returns the next spinner frame
func (t *Terminal) Spinner() string {
	if !t.IsTerminal {
		return ""
	}
	frame := spinnerFrames[t.spinnerIndex]
	t.spinnerIndex = (t.spinnerIndex + 1) % len(spinnerFrames)
	return frame
}

// Color wraps text in ANSI color codes (terminal only)
func (t *Terminal) Color(color, text string) string {
	if !t.UseColor {
		return text
	}
	return color + text + ColorReset
}

// Printf writes a line to the terminal's stream
func (t *Terminal) Printf(format string, args ...any) {
	fmt.Fprintf(t.w, format, args...)
}

// Spin animates msg with the elapsed time until the returned stop function
// is called. Does nothing when stderr is not a terminal.
func (t *Terminal) Spin(msg string) (stop func()) {
	if !t.IsTerminal {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		started := time.Now()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			t.ClearLine()
			elapsed := ""
			if d := time.Since(started); d >= time.Second {
				elapsed = " " + t.Color(ColorGray, "("+FormatDuration(d)+")")
			}
			fmt.Fprintf(t.w, "%s %s%s", t.Color(ColorCyan, t.Spinner()), msg, elapsed)

			select {
			case <-done:
				t.ClearLine()
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

// FormatDuration formats a duration as a short human-readable string
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s > 0 {
			return fmt.Sprintf("%dm%ds", m, s)
		}
		return fmt.Sprintf("%dm", m)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// CategoryColor returns the color used for a failure category
func CategoryColor(cat failure.Category) string {
	switch cat {
	case failure.CategoryAuth, failure.CategoryInvalidRequest:
		return ColorRed
	case failure.CategoryQuota, failure.CategoryRateLimit:
		return ColorYellow
	case failure.CategoryNotFound:
		return ColorGray
	case failure.CategoryNetwork, failure.CategoryServer:
		return ColorPurple
	default:
		return ColorBlue
	}
}
