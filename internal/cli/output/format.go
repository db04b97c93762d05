// Package output renders CLI results as text tables, JSON or YAML.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format is an output format.
type Format string

const (
	// FormatText renders tables for humans.
	FormatText Format = "text"
	// FormatJSON renders indented JSON.
	FormatJSON Format = "json"
	// FormatYAML renders YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name. The empty string and "table" are text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "table", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: text, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Printer writes results in one format. Diagnostics go to a separate
// writer so that structured output stays parseable.
type Printer struct {
	out    io.Writer
	diag   io.Writer
	format Format
}

// NewPrinter creates a Printer writing results to out and diagnostics to diag.
func NewPrinter(out, diag io.Writer, format Format) *Printer {
	return &Printer{out: out, diag: diag, format: format}
}

// Format returns the printer's output format.
func (p *Printer) Format() Format {
	return p.format
}

// Writer returns the result writer, for raw content such as file bytes.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Print renders data. In text format data must implement TableRenderer or
// fmt.Stringer; anything else is printed as JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatText:
		switch v := data.(type) {
		case TableRenderer:
			return PrintTable(p.out, v)
		case fmt.Stringer:
			_, err := fmt.Fprintln(p.out, v.String())
			return err
		default:
			return PrintJSON(p.out, data)
		}
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// Infof prints a status line in text format only; structured formats stay
// silent.
func (p *Printer) Infof(format string, args ...any) {
	if p.format != FormatText {
		return
	}
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

// Warnf prints a diagnostic line.
func (p *Printer) Warnf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.diag, "warning: "+format+"\n", args...)
}
