package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yoanbernabeu/sshrun/internal/runner"
)

//go:embed templates/*
var templatesFS embed.FS

var blackScreen = template.Must(template.ParseFS(templatesFS, "templates/blackscreen.html"))

type htmlCommand struct {
	Seq     runner.Seq
	Command string
	Lines   []string
}

// HTML writes a white-on-black page with one table per command. Lines are
// trimmed and escaped.
func HTML(w io.Writer, results runner.Results) error {
	data := make([]htmlCommand, 0, len(results))
	for _, r := range results {
		c := htmlCommand{Seq: r.Seq, Command: r.Command, Lines: make([]string, 0, len(r.Lines))}
		for _, line := range r.Lines {
			c.Lines = append(c.Lines, strings.TrimSpace(line))
		}
		data = append(data, c)
	}

	if err := blackScreen.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template blackscreen.html: %w", err)
	}
	return nil
}
