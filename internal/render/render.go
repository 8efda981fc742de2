// Package render writes collected command output as text, YAML or HTML.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/yoanbernabeu/sshrun/internal/runner"
)

// Format is an output format name.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// Formats lists the supported format names.
func Formats() []string {
	return []string{string(FormatText), string(FormatYAML), string(FormatHTML)}
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatYAML, FormatHTML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use %s)", s, strings.Join(Formats(), ", "))
	}
}

// Write renders results to w in the given format.
func Write(w io.Writer, format Format, results runner.Results) error {
	switch format {
	case FormatText, "":
		return Text(w, results)
	case FormatYAML:
		return YAML(w, results)
	case FormatHTML:
		return HTML(w, results)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
