// Package prompt asks the card holder for PINs and claim text.
//
// Credentials are returned to the caller and never logged.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrCanceled is returned when the user leaves the input blank or closes it.
var ErrCanceled = errors.New("canceled")

// Purpose identifies which card credential is requested.
type Purpose int

const (
	PurposeAuthentication Purpose = iota
	PurposeSigning
	PurposeDecryption
)

// PINNumber returns the card PIN that unlocks the key used for the purpose.
func (p Purpose) PINNumber() int {
	if p == PurposeSigning {
		return 2
	}
	return 1
}

func (p Purpose) String() string {
	switch p {
	case PurposeAuthentication:
		return "authentication"
	case PurposeSigning:
		return "signing"
	case PurposeDecryption:
		return "decryption"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

// Prompter obtains a credential for a purpose.
type Prompter interface {
	PromptFor(purpose Purpose) (string, error)
}

// Console prompts on a terminal. PIN input is not echoed when in is a terminal.
type Console struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewConsole creates a Console reading from in and writing prompts to out.
func NewConsole(in *os.File, out io.Writer) *Console {
	return &Console{in: in, out: out, reader: bufio.NewReader(in)}
}

func (c *Console) PromptFor(purpose Purpose) (string, error) {
	fmt.Fprintf(c.out, "Please enter PIN%d or leave blank to cancel: ", purpose.PINNumber())

	var pin string
	fd := int(c.in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("failed to read PIN: %w", err)
		}
		pin = string(b)
	} else {
		line, err := c.readLine()
		if err != nil {
			return "", err
		}
		pin = line
	}

	if strings.TrimSpace(pin) == "" {
		return "", ErrCanceled
	}
	return pin, nil
}

// ReadLine prints label and reads one line of echoed input.
func (c *Console) ReadLine(label string) (string, error) {
	fmt.Fprint(c.out, label)
	return c.readLine()
}

func (c *Console) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrCanceled
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Static answers every prompt from a fixed map. A missing or empty entry cancels.
type Static map[Purpose]string

func (s Static) PromptFor(purpose Purpose) (string, error) {
	pin := s[purpose]
	if pin == "" {
		return "", ErrCanceled
	}
	return pin, nil
}
