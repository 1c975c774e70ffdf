package progress

import (
	"io"
	"sync"

	"github.com/pcj/mobyprogress"
)

// NewProgressOutput returns an Output that formats updates as raw text on
// out. It is safe for concurrent use.
func NewProgressOutput(out io.Writer) mobyprogress.Output {
	return &progressOutput{sf: &rawProgressFormatter{}, out: out, newLines: true}
}

type progressOutput struct {
	sf       *rawProgressFormatter
	newLines bool

	mu  sync.Mutex
	out io.Writer
}

// WriteProgress implements mobyprogress.Output.
func (out *progressOutput) WriteProgress(prog mobyprogress.Progress) error {
	var formatted []byte
	if prog.Message != "" {
		formatted = out.sf.formatStatus(prog.ID, prog.Message)
	} else {
		formatted = out.sf.formatProgress(prog.ID, prog.Action, counts(prog))
	}

	out.mu.Lock()
	defer out.mu.Unlock()

	if _, err := out.out.Write(formatted); err != nil {
		return err
	}
	if out.newLines && prog.LastUpdate {
		_, err := out.out.Write(out.sf.formatStatus("", ""))
		return err
	}
	return nil
}
