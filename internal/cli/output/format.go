// Package output renders CLI results: tables for humans, JSON or YAML for
// scripts, and shell export lines for eval'ing a realm's environment.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format selects how structured results are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat maps a --output flag value to a Format. The empty string
// means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string { return string(f) }

// Printer writes results to a single destination in a fixed format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{out: out, format: format, color: color}
}

// Format returns the format the printer was built with.
func (p *Printer) Format() Format {
	return p.format
}

// Print renders data in the printer's format. Table output requires data to
// implement TableRenderer; anything else falls back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		if renderer, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, renderer)
		}
		return PrintJSON(p.out, data)
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// Println writes a plain line, unformatted.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

// Success writes a status line, green when color is enabled.
func (p *Printer) Success(msg string) {
	p.statusLine("\033[32m", msg)
}

// Warning writes a status line, yellow when color is enabled.
func (p *Printer) Warning(msg string) {
	p.statusLine("\033[33m", msg)
}

func (p *Printer) statusLine(ansi, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "%s%s\033[0m\n", ansi, msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}
