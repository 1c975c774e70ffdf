// Package progress writes mobyprogress updates as plain text lines.
package progress

import (
	"fmt"

	"github.com/pcj/mobyprogress"
)

// Update is a convenience function to write a progress update to the output.
func Update(out mobyprogress.Output, id, action string, current, total int) {
	out.WriteProgress(mobyprogress.Progress{
		ID:         id,
		Action:     action,
		Current:    int64(current),
		Total:      int64(total),
		Units:      "files",
		LastUpdate: current == total,
	})
}

// Message is a convenience function to write a progress message to the output.
func Message(out mobyprogress.Output, id, message string) {
	out.WriteProgress(mobyprogress.Progress{ID: id, Message: message})
}

// Messagef is a convenience function to write a printf-formatted progress
// message to the output.
func Messagef(out mobyprogress.Output, id, format string, a ...interface{}) {
	Message(out, id, fmt.Sprintf(format, a...))
}

// Discard returns an Output that drops every update.
func Discard() mobyprogress.Output {
	return discard{}
}

type discard struct{}

func (discard) WriteProgress(mobyprogress.Progress) error { return nil }
