package render

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/yoanbernabeu/sshrun/internal/runner"
)

type yamlCommand struct {
	Seq        uint64   `yaml:"seq"`
	Command    string   `yaml:"command"`
	ExitStatus *int     `yaml:"exit_status,omitempty"`
	Error      string   `yaml:"error,omitempty"`
	Lines      []string `yaml:"lines"`
}

// YAML writes one document listing each command with its lines and status.
func YAML(w io.Writer, results runner.Results) error {
	doc := make([]yamlCommand, 0, len(results))
	for _, r := range results {
		c := yamlCommand{
			Seq:        uint64(r.Seq),
			Command:    r.Command,
			ExitStatus: r.ExitStatus,
			Lines:      r.Lines,
		}
		if c.Lines == nil {
			c.Lines = []string{}
		}
		if r.Err != nil {
			c.Error = r.Err.Error()
		}
		doc = append(doc, c)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return enc.Close()
}
