package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	toon "github.com/toon-format/toon-go"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatTOON     Format = "toon"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat converts a string to Format, defaulting to JSON.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML
	case "toon":
		return FormatTOON
	case "markdown", "md":
		return FormatMarkdown
	case "text", "txt", "table":
		return FormatText
	default:
		return FormatJSON
	}
}

// Extension returns the file extension used for f.
func (f Format) Extension() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOON:
		return "toon"
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return "json"
	}
}

// Renderable defines data that can render itself in multiple formats.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	// RenderData returns the underlying data for structured encodings.
	RenderData() any
}

// Formatter handles output formatting.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter creates a formatter writing to output, or stdout when output
// is empty. Files are never colored.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	var writer io.Writer = os.Stdout
	var file *os.File

	if output != "" {
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return nil, err
		}
		f, err := os.Create(output)
		if err != nil {
			return nil, err
		}
		writer = f
		file = f
		colored = false
	}

	return &Formatter{
		format:  format,
		writer:  writer,
		file:    file,
		colored: colored,
	}, nil
}

// NewWriterFormatter creates a formatter over an existing writer.
func NewWriterFormatter(format Format, w io.Writer, colored bool) *Formatter {
	return &Formatter{format: format, writer: w, colored: colored}
}

// Close closes the formatter's writer if it's a file.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Output writes data in the configured format.
func (f *Formatter) Output(data any) error {
	r, ok := data.(Renderable)
	switch f.format {
	case FormatText:
		if ok {
			return r.RenderText(f.writer, f.colored)
		}
		return f.outputJSON(data)
	case FormatMarkdown:
		if ok {
			return r.RenderMarkdown(f.writer)
		}
		fmt.Fprintln(f.writer, "```json")
		if err := f.outputJSON(data); err != nil {
			return err
		}
		fmt.Fprintln(f.writer, "```")
		return nil
	}

	if ok {
		data = r.RenderData()
	}
	switch f.format {
	case FormatYAML:
		enc := yaml.NewEncoder(f.writer)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOON:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(f.writer, string(out))
		return err
	default:
		return f.outputJSON(data)
	}
}

func (f *Formatter) outputJSON(data any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Table is a Renderable table with headers, rows, and optional footer.
type Table struct {
	Title   string     `json:"-"`
	Headers []string   `json:"-"`
	Rows    [][]string `json:"-"`
	Footer  []string   `json:"-"`
	Data    any        `json:"data,omitempty"`
}

// NewTable creates a table that wraps structured data for serialization.
func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{
		Title:   title,
		Headers: headers,
		Rows:    rows,
		Footer:  footer,
		Data:    data,
	}
}

func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	result := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string)
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = row[j]
			}
		}
		result[i] = m
	}
	return result
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	writeTitle(w, t.Title, colored, color.Bold)

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{
					AutoFormat: tw.Off,
				},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Footer: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{
				Left:   tw.Off,
				Right:  tw.Off,
				Top:    tw.Off,
				Bottom: tw.Off,
			},
			Settings: tw.Settings{
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		}),
	)

	table.Header(t.Headers)
	for _, row := range t.Rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if len(t.Footer) > 0 {
		footerArgs := make([]any, len(t.Footer))
		for i, f := range t.Footer {
			footerArgs[i] = f
		}
		table.Footer(footerArgs...)
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}

	fmt.Fprintf(w, "| %s |\n", strings.Join(t.Headers, " | "))

	seps := make([]string, len(t.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range t.Rows {
		fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | "))
	}

	if len(t.Footer) > 0 {
		fmt.Fprintf(w, "| %s |\n", strings.Join(t.Footer, " | "))
	}

	fmt.Fprintln(w)
	return nil
}

// Report is a compound Renderable made of tables.
type Report struct {
	Title    string       `json:"title,omitempty"`
	Sections []Renderable `json:"-"`
	Data     any          `json:"data,omitempty"`
}

func (r *Report) RenderData() any {
	if r.Data != nil {
		return r.Data
	}
	parts := make([]any, len(r.Sections))
	for i, s := range r.Sections {
		parts[i] = s.RenderData()
	}
	return map[string]any{
		"title":    r.Title,
		"sections": parts,
	}
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	writeTitle(w, r.Title, colored, color.Bold, color.FgCyan)
	for _, s := range r.Sections {
		if err := s.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	if r.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", r.Title)
	}
	for _, s := range r.Sections {
		if err := s.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

func writeTitle(w io.Writer, title string, colored bool, attrs ...color.Attribute) {
	if title == "" {
		return
	}
	if colored {
		color.New(attrs...).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	fmt.Fprintln(w)
}

// Success prints a completion message, green when colored.
func (f *Formatter) Success(format string, args ...any) {
	if f.colored {
		color.New(color.FgGreen).Fprintf(f.writer, format+"\n", args...)
	} else {
		fmt.Fprintf(f.writer, format+"\n", args...)
	}
}

// Warning prints a message about partial results, yellow when colored.
func (f *Formatter) Warning(format string, args ...any) {
	if f.colored {
		color.New(color.FgYellow).Fprintf(f.writer, format+"\n", args...)
	} else {
		fmt.Fprintf(f.writer, "WARNING: "+format+"\n", args...)
	}
}
