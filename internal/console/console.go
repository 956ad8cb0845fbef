// Package console serializes everything the grader prints to the terminal
// so that concurrent grading tasks never interleave their output.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type Console struct {
	mu  sync.Mutex
	w   io.Writer
	hdr *color.Color
	ok  *color.Color
	bad *color.Color
}

// New writes to w, or os.Stdout when w is nil. Colors follow fatih/color's
// terminal detection.
func New(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{
		w:   w,
		hdr: color.New(color.FgCyan, color.Bold),
		ok:  color.New(color.FgGreen),
		bad: color.New(color.FgRed),
	}
}

// Block prints a header line followed by body. The whole block is written
// while holding the lock.
func (c *Console) Block(title string, body string) {
	var sb strings.Builder
	sb.WriteString(c.hdr.Sprintf("==> %s <==", title))
	sb.WriteByte('\n')
	sb.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		sb.WriteByte('\n')
	}
	c.write(sb.String())
}

func (c *Console) Line(format string, args ...any) {
	c.write(fmt.Sprintf(format, args...) + "\n")
}

// Okf prints a green status line.
func (c *Console) Okf(format string, args ...any) {
	c.write(c.ok.Sprintf(format, args...) + "\n")
}

// Failf prints a red status line.
func (c *Console) Failf(format string, args ...any) {
	c.write(c.bad.Sprintf(format, args...) + "\n")
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, s)
}
