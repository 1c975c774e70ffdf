package progress

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/pcj/mobyprogress"
)

const streamNewline = "\r\n"

type rawProgressFormatter struct{}

func (sf *rawProgressFormatter) formatStatus(id, msg string) []byte {
	if id == "" {
		return []byte(msg + streamNewline)
	}
	return []byte("[" + id + "] " + msg + streamNewline)
}

func (sf *rawProgressFormatter) formatProgress(id, action, counts string) []byte {
	endl := "\r"
	if counts == "" {
		endl += "\n"
	}
	line := action
	if id != "" {
		line = "[" + id + "] " + line
	}
	if counts != "" {
		line += " " + counts
	}
	return []byte(line + endl)
}

// counts renders current/total. Without units the counts are byte sizes.
func counts(prog mobyprogress.Progress) string {
	if prog.HideCounts || prog.Total <= 0 {
		return ""
	}
	if prog.Units == "" {
		return units.HumanSize(float64(prog.Current)) + "/" + units.HumanSize(float64(prog.Total))
	}
	return fmt.Sprintf("%d/%d %s", prog.Current, prog.Total, prog.Units)
}
