// Package logger prints timestamped, coloured status lines for the CLI and
// the server.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	verbose bool

	gray   = color.New(color.FgHiBlack)
	blue   = color.New(color.FgBlue)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	purple = color.New(color.FgMagenta)
	white  = color.New(color.FgWhite)
	cyan   = color.New(color.FgCyan)
)

// SetOutput redirects log lines, returning the previous writer.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

// SetVerbose enables Debug lines.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

func write(c *color.Color, prefix, message string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(out, "%s %s\n", gray.Sprintf("[%s]", timestamp), c.Sprint(prefix+fmt.Sprintf(message, args...)))
}

// Info logs general information (blue)
func Info(message string, args ...interface{}) {
	write(blue, "", message, args...)
}

// Success logs a completed action (green)
func Success(message string, args ...interface{}) {
	write(green, "✓ ", message, args...)
}

// Warning logs something the user should act on (yellow)
func Warning(message string, args ...interface{}) {
	write(yellow, "⚠ ", message, args...)
}

// Error logs a failure (red)
func Error(message string, args ...interface{}) {
	write(red, "✗ ", message, args...)
}

// Debug logs only when verbose output is on (gray)
func Debug(message string, args ...interface{}) {
	mu.Lock()
	on := verbose
	mu.Unlock()
	if !on {
		return
	}
	write(gray, "DEBUG: ", message, args...)
}

// Request logs an HTTP request with its status and duration.
func Request(method, path string, statusCode int, duration time.Duration) {
	var status *color.Color
	switch {
	case statusCode >= 200 && statusCode < 300:
		status = green
	case statusCode >= 300 && statusCode < 400:
		status = cyan
	case statusCode >= 400 && statusCode < 500:
		status = yellow
	default:
		status = red
	}

	var durationStr string
	switch {
	case duration < time.Millisecond:
		durationStr = fmt.Sprintf("%dµs", duration.Microseconds())
	case duration < time.Second:
		durationStr = fmt.Sprintf("%dms", duration.Milliseconds())
	default:
		durationStr = fmt.Sprintf("%.2fs", duration.Seconds())
	}

	mu.Lock()
	defer mu.Unlock()
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(out, "%s %s %s %s %s\n",
		gray.Sprintf("[%s]", timestamp),
		purple.Sprintf("%-6s", method),
		white.Sprintf("%-40s", path),
		status.Sprintf("[%d]", statusCode),
		gray.Sprintf("(%s)", durationStr))
}

// Notifier adapts the package functions to the tracker's notice interface.
type Notifier struct{}

func (Notifier) Info(msg string)    { Info("%s", msg) }
func (Notifier) Success(msg string) { Success("%s", msg) }
func (Notifier) Warning(msg string) { Warning("%s", msg) }
func (Notifier) Error(msg string)   { Error("%s", msg) }
