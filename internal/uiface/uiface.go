// Package uiface defines the narrow interfaces cmd/mpm uses to collect
// passwords and print messages, so the subcommand handlers prompt and print
// only through it. It exists to let cmd/mpm build and run, not to
// fulfil any particular interactive line-editing concern — a real TUI or
// a scripted test double can both satisfy it.
package uiface

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// LineEditor reads one line of input, optionally without echoing it back
// (used for password prompts).
type LineEditor interface {
	ReadLine(prompt string) (string, error)
	ReadSecret(prompt string) (string, error)
}

// MessageCatalog renders user-facing messages. A minimal default just
// formats them directly; a localised implementation can key off Locale.
type MessageCatalog interface {
	Printf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Console is the default LineEditor/MessageCatalog backed by a terminal.
type Console struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	reader *bufio.Reader
}

// NewConsole builds a Console over the given streams.
func NewConsole(in io.Reader, out, errOut io.Writer) *Console {
	return &Console{In: in, Out: out, Err: errOut, reader: bufio.NewReader(in)}
}

// ReadLine prompts and reads one newline-terminated line.
func (c *Console) ReadLine(prompt string) (string, error) {
	fmt.Fprint(c.Out, prompt)
	line, err := c.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadSecret prompts and reads one line without echoing it, when the input
// stream is a real terminal; it falls back to a plain ReadLine otherwise
// (piped input in tests and scripts).
func (c *Console) ReadSecret(prompt string) (string, error) {
	if f, ok := c.In.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.Out, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.Out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return c.ReadLine(prompt)
}

// Printf writes a formatted status message.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

// Errorf writes a formatted error message.
func (c *Console) Errorf(format string, args ...any) {
	fmt.Fprintf(c.Err, format, args...)
}
