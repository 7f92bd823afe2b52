// Package output renders command results as the JSON response envelope
// for --json/--jsonl callers, or as styled plain text for a terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	recallerrors "github.com/recall-db/recall/internal/errors"
)

const schemaVersion = "1"

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Envelope is the JSON response envelope (v1) returned by --json/--jsonl
// callers, and rendered as styled text otherwise.
type Envelope struct {
	OK            bool               `json:"ok"`
	SchemaVersion string             `json:"schema_version"`
	Query         string             `json:"query,omitempty"`
	Results       []map[string]any   `json:"results,omitempty"`
	Context       *ContextOut        `json:"context,omitempty"`
	Explain       map[string]any     `json:"explain,omitempty"`
	Stats         map[string]any     `json:"stats"`
	Diagnostics   map[string]any     `json:"diagnostics,omitempty"`
	Actions       []string           `json:"actions,omitempty"`
	Warnings      []string           `json:"warnings"`
	Error         *recallerrors.ErrorOut `json:"error,omitempty"`
}

// ContextOut is the "context" field of the envelope, produced by the
// context command.
type ContextOut struct {
	Text       string   `json:"text"`
	ChunkCount int      `json:"chunk_count"`
	TokenCount int      `json:"token_count"`
	SourceIDs  []string `json:"source_chunk_ids"`
}

// NewEnvelope returns an empty, successful envelope with warnings
// initialized to a non-nil empty slice so it always serializes as `[]`.
func NewEnvelope() Envelope {
	return Envelope{OK: true, SchemaVersion: schemaVersion, Warnings: []string{}, Stats: map[string]any{}}
}

// ErrorEnvelope builds the envelope rendered for a failed command.
func ErrorEnvelope(err error) Envelope {
	e := NewEnvelope()
	e.OK = false
	out := recallerrors.ToErrorOut(err)
	e.Error = &out
	return e
}

// Writer renders envelopes and status lines, switching between JSON,
// NDJSON, and styled plain text depending on how it's configured.
type Writer struct {
	out     io.Writer
	errOut  io.Writer
	json    bool
	jsonl   bool
	useColor bool
}

// New creates a Writer bound to out/errOut. Color is enabled only when
// errOut is an interactive terminal (isatty) and neither --json nor
// --jsonl was requested.
func New(out, errOut io.Writer, jsonMode, jsonlMode bool) *Writer {
	w := &Writer{out: out, errOut: errOut, json: jsonMode, jsonl: jsonlMode}
	if !jsonMode && !jsonlMode {
		if f, ok := errOut.(*os.File); ok {
			w.useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	return w
}

// WantsStructured reports whether the caller asked for --json or --jsonl.
func (w *Writer) WantsStructured() bool { return w.json || w.jsonl }

// RenderEnvelope writes env as a single JSON object (--json), as one JSON
// line per result (--jsonl), or as a styled table/summary otherwise.
func (w *Writer) RenderEnvelope(env Envelope) error {
	switch {
	case w.jsonl:
		return w.renderJSONL(env)
	case w.json:
		return w.renderJSON(env)
	default:
		return w.renderText(env)
	}
}

func (w *Writer) renderJSON(env Envelope) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// renderJSONL writes one compact JSON object per result row. When there
// are no results (a doctor/stats/compact-style envelope), it falls back to
// one line for the envelope itself so --jsonl always produces output.
func (w *Writer) renderJSONL(env Envelope) error {
	if len(env.Results) == 0 {
		enc := json.NewEncoder(w.out)
		return enc.Encode(env)
	}
	enc := json.NewEncoder(w.out)
	for _, r := range env.Results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) renderText(env Envelope) error {
	if !env.OK && env.Error != nil {
		w.Errorf("%s [%s]", env.Error.Message, env.Error.Code)
		if env.Error.Hint != "" {
			_, _ = fmt.Fprintf(w.errOut, "  hint: %s\n", env.Error.Hint)
		}
		return nil
	}

	if len(env.Results) > 0 {
		w.renderTable(env.Results)
	}
	if env.Context != nil {
		_, _ = fmt.Fprintln(w.out, env.Context.Text)
	}
	for _, warn := range env.Warnings {
		w.Warning(warn)
	}
	if took, ok := env.Stats["took_ms"]; ok {
		_, _ = fmt.Fprintln(w.out, w.style(dimStyle, fmt.Sprintf("(%v ms, %v hits)", took, env.Stats["total_hits"])))
	}
	return nil
}

// renderTable prints results as a minimal column table: one row per
// result, one column per key in the order the first row defines them.
func (w *Writer) renderTable(results []map[string]any) {
	if len(results) == 0 {
		return
	}
	cols := orderedKeys(results[0])
	_, _ = fmt.Fprintln(w.out, w.style(headerStyle, strings.Join(cols, "\t")))
	for _, r := range results {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = fmt.Sprintf("%v", r[c])
		}
		_, _ = fmt.Fprintln(w.out, strings.Join(vals, "\t"))
	}
}

func orderedKeys(m map[string]any) []string {
	preferred := []string{"score", "doc.path", "doc.id", "chunk.text", "chunk.offset", "path", "id"}
	var keys []string
	seen := map[string]bool{}
	for _, k := range preferred {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	for k := range m {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func (w *Writer) style(s lipgloss.Style, text string) string {
	if !w.useColor {
		return text
	}
	return s.Render(text)
}

// Status prints a plain status line to stderr.
func (w *Writer) Status(msg string) {
	_, _ = fmt.Fprintln(w.errOut, msg)
}

// Statusf prints a formatted status line to stderr.
func (w *Writer) Statusf(format string, args ...any) {
	w.Status(fmt.Sprintf(format, args...))
}

// Success prints a success line to stderr.
func (w *Writer) Success(msg string) {
	_, _ = fmt.Fprintln(w.errOut, w.style(successStyle, "✓ "+msg))
}

// Successf prints a formatted success line to stderr.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line to stderr.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintln(w.errOut, w.style(warningStyle, "! "+msg))
}

// Warningf prints a formatted warning line to stderr.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line to stderr.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintln(w.errOut, w.style(errorStyle, "✗ "+msg))
}

// Errorf prints a formatted error line to stderr.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}
