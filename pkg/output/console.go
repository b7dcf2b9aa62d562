package output

import (
	"io"
	"sync"
)

// Console is a Sink that serialises whole lines onto one writer
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole wraps w. Each WriteLine issues exactly one Write call.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// WriteLine writes line followed by a newline
func (c *Console) WriteLine(line string) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.w.Write(buf)
	return err
}
