// Package logging prints installer progress to the console and, optionally,
// a log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/colorstring"
	"golang.org/x/term"
)

type sink struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
	path    string
	color   bool
}

var (
	verbose atomic.Bool
	out     = &sink{console: os.Stdout, color: term.IsTerminal(int(os.Stdout.Fd()))}
)

// writer returns the current destination. s.mu must be held.
func (s *sink) writer() io.Writer {
	if s.file == nil {
		return s.console
	}
	return io.MultiWriter(s.console, s.file)
}

func (s *sink) closeFile() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.path = ""
	return err
}

func (s *sink) print(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.writer(), msg)
}

// SetVerbose enables or disables Debugf output.
func SetVerbose(enabled bool) { verbose.Store(enabled) }

// Verbose reports whether Debugf output is enabled.
func Verbose() bool { return verbose.Load() }

// SetOutput replaces the console writer. Output to anything but the process
// stdout is never colored.
func SetOutput(w io.Writer) {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.console = w
	out.color = false
}

// SetOutputFile appends everything printed from now on to path as well.
// An empty path stops file logging.
func SetOutputFile(path string) error {
	path = strings.TrimSpace(path)

	out.mu.Lock()
	defer out.mu.Unlock()
	if path == out.path {
		return nil
	}
	if err := out.closeFile(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	out.file = f
	out.path = path
	// Escape codes would end up in the file.
	out.color = false
	return nil
}

// Close closes the log file, if any.
func Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.closeFile()
}

// Infof prints regardless of verbosity.
func Infof(format string, args ...any) {
	out.print(fmt.Sprintf(format, args...))
}

// Infoln prints a line regardless of verbosity.
func Infoln(args ...any) {
	out.print(fmt.Sprintln(args...))
}

// Warnf prints a line prefixed with "Warning:", adding the newline if the
// message lacks one.
func Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	prefix := "Warning: "
	if out.color {
		prefix = colorstring.Color("[yellow]Warning:[reset] ")
	}
	io.WriteString(out.writer(), prefix+msg)
}

// Debugf prints only in verbose mode.
func Debugf(format string, args ...any) {
	if !Verbose() {
		return
	}
	out.print(fmt.Sprintf(format, args...))
}
