// Package output writes finished scene runs to disk as Markdown and JSON.
//
// Files are named <scene>-<run>.md and <scene>-<run>.json, where <scene> is
// the scene ID reduced to a safe file name. Existing files are overwritten.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/sceneforge/internal/scene"
)

// Format selects a rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ""
	}
}

// Writer renders results into a directory.
type Writer struct {
	dir     string
	formats []Format
}

// New returns a Writer for dir. With no formats both Markdown and JSON are
// written. The directory is created on first write.
func New(dir string, formats ...Format) (*Writer, error) {
	if dir == "" {
		return nil, errors.New("output: directory must not be empty")
	}
	if len(formats) == 0 {
		formats = []Format{FormatMarkdown, FormatJSON}
	}
	for _, f := range formats {
		if f.Ext() == "" {
			return nil, fmt.Errorf("output: unknown format %q", f)
		}
	}
	return &Writer{dir: dir, formats: formats}, nil
}

// Write renders res in every configured format and returns the written
// paths in format order.
func (w *Writer) Write(ctx context.Context, res scene.Result) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create directory: %w", err)
	}

	stem := FileStem(res.Metadata)
	paths := make([]string, 0, len(w.formats))
	for _, f := range w.formats {
		var (
			data []byte
			err  error
		)
		switch f {
		case FormatMarkdown:
			data = Markdown(res)
		case FormatJSON:
			data, err = JSON(res)
		}
		if err != nil {
			return paths, fmt.Errorf("output: render %s: %w", f, err)
		}
		path := filepath.Join(w.dir, stem+f.Ext())
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("output: write %s: %w", f, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// FileStem returns the base file name shared by all renderings of a run.
func FileStem(m scene.Metadata) string {
	stem := safeName(m.SceneID)
	if stem == "" {
		stem = "scene"
	}
	if run := safeName(m.RunID); run != "" {
		stem += "-" + run
	}
	return stem
}

// safeName keeps ASCII letters, digits, '_' and '-' and replaces every
// other run of characters with a single '-'.
func safeName(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// Document is the JSON rendering of a run.
type Document struct {
	Success    bool                `json:"success"`
	Error      *scene.Error        `json:"error,omitempty"`
	Metadata   scene.Metadata      `json:"metadata"`
	Entries    []scene.EntryRecord `json:"entries"`
	Transcript string              `json:"transcript"`
}

// NewDocument flattens res.
func NewDocument(res scene.Result) Document {
	return Document{
		Success:    res.Success,
		Error:      res.Err,
		Metadata:   res.Metadata,
		Entries:    scene.Records(res.Entries),
		Transcript: res.Transcript,
	}
}

// JSON renders res as indented JSON with a trailing newline.
func JSON(res scene.Result) ([]byte, error) {
	data, err := json.MarshalIndent(NewDocument(res), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
