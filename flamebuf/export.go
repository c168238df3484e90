package flamebuf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format is an export file format.
type Format string

const (
	// FormatSpeedscope is the speedscope evented profile format. It's the
	// default.
	FormatSpeedscope Format = "speedscope"

	// FormatChrome is the Chrome trace event format.
	FormatChrome Format = "chrome"
)

// ParseFormat returns the format with the given name. The empty string parses
// as FormatSpeedscope.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "speedscope", "ss":
		return FormatSpeedscope, nil
	case "chrome", "tef", "perfetto":
		return FormatChrome, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// Write encodes the buffer to w in the given format.
func (b *Buffer) Write(w io.Writer, f Format) error {
	switch f {
	case FormatSpeedscope, "":
		return b.WriteSpeedscope(w)
	case FormatChrome:
		return b.WriteChromeTrace(w)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// ExportError is returned when a buffer can't be written to a file. The
// buffer is never modified by an export, so a failed export can be retried.
type ExportError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExportError) Unwrap() error {
	return e.Err
}

// ExportJSON writes the buffer to the file at path in the given format, and
// returns the number of records written. The file is written to a temporary
// file in the same directory and renamed into place, so a failed export never
// leaves a partial file at path.
func (b *Buffer) ExportJSON(path string, f Format) (int, error) {
	if err := b.exportJSON(path, f); err != nil {
		return 0, &ExportError{Path: path, Err: err}
	}
	return len(b.records), nil
}

func (b *Buffer) exportJSON(path string, f Format) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := b.Write(bw, f); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// ReadFile reads a speedscope file from disk.
func ReadFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := ReadSpeedscope(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return b, nil
}
