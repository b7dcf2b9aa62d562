package output

import (
	"strings"
	"unicode"
	"unicode/utf8"

	encunicode "golang.org/x/text/encoding/unicode"
)

// DefaultPadding is the prefix padding used when a process does not set one
const DefaultPadding = 8

// Prefix builds the fixed-width tag for a process name. The name is cut to
// at most padding-2 characters and bracketed, and padding-n spaces follow,
// so every prefix for a given padding is padding+2 characters wide.
func Prefix(name string, padding int) string {
	runes := []rune(name)
	n := len(runes)
	if n > padding-2 {
		n = padding - 2
	}
	if n < 0 {
		n = 0
	}
	pad := padding - n
	if pad < 0 {
		pad = 0
	}
	return "[" + string(runes[:n]) + "]" + strings.Repeat(" ", pad)
}

// FormatLine joins a prefix and a cleaned line into the console form
func FormatLine(prefix, line string) string {
	return prefix + "|" + line
}

// LineDecoder turns raw output lines into printable text. It is not safe
// for concurrent use; each reader task owns one.
type LineDecoder struct {
	dec interface {
		Bytes([]byte) ([]byte, error)
	}
}

// NewLineDecoder returns a best-effort UTF-8 decoder
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{dec: encunicode.UTF8.NewDecoder()}
}

// Decode converts raw to valid UTF-8, replacing invalid sequences with
// U+FFFD, and strips the line terminator and any trailing whitespace.
func (d *LineDecoder) Decode(raw []byte) string {
	var s string
	if utf8.Valid(raw) {
		s = string(raw)
	} else if b, err := d.dec.Bytes(raw); err == nil {
		s = string(b)
	} else {
		s = strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
