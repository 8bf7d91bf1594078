package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Output formats.
const (
	FormatJS   = "js"
	FormatJSON = "json"
)

// jsPrefix assigns the report to the variable the viewer reads.
const jsPrefix = "let data = "

// Encode serializes the report with sorted keys and four-space indentation.
// FormatJS wraps the JSON in a script assignment.
func (r *Report) Encode(w io.Writer, format string) error {
	body, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	switch format {
	case FormatJS:
		if _, err := io.WriteString(w, jsPrefix); err != nil {
			return err
		}
	case FormatJSON:
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	_, err = w.Write(body)
	return err
}

// WriteFile writes the report to path. The file only appears once it is
// complete: the report goes to a temporary file that is then renamed.
func (r *Report) WriteFile(path, format string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := r.Encode(tmp, format); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
