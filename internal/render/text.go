package render

import (
	"bufio"
	"io"

	"github.com/yoanbernabeu/sshrun/internal/runner"
)

// Text writes every line of every command, in execution order.
func Text(w io.Writer, results runner.Results) error {
	bw := bufio.NewWriter(w)
	for _, r := range results {
		for _, line := range r.Lines {
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
