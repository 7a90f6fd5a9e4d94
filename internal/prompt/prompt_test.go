package prompt

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// consoleFrom returns a Console reading from a regular file, which is never a terminal
func consoleFrom(t *testing.T, input string) (*Console, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte(input), 0600); err != nil {
		t.Fatal(err)
	}
	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { in.Close() })

	out := &bytes.Buffer{}
	return NewConsole(in, out), out
}

func TestConsolePromptFor(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		purpose    Purpose
		want       string
		wantErr    error
		wantPrompt string
	}{
		{"pin1", "0090\n", PurposeAuthentication, "0090", nil, "Please enter PIN1 or leave blank to cancel: "},
		{"pin2 without newline", "01497", PurposeSigning, "01497", nil, "Please enter PIN2 or leave blank to cancel: "},
		{"decryption uses pin1", "0090\r\n", PurposeDecryption, "0090", nil, "Please enter PIN1 or leave blank to cancel: "},
		{"blank cancels", "\n", PurposeAuthentication, "", ErrCanceled, ""},
		{"whitespace cancels", "   \n", PurposeSigning, "", ErrCanceled, ""},
		{"eof cancels", "", PurposeSigning, "", ErrCanceled, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := consoleFrom(t, tt.input)
			got, err := c.PromptFor(tt.purpose)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("PromptFor() = %q, want %q", got, tt.want)
			}
			if out.String() != tt.wantPrompt {
				t.Errorf("prompt = %q, want %q", out.String(), tt.wantPrompt)
			}
		})
	}
}

func TestConsoleReadLine(t *testing.T) {
	c, out := consoleFrom(t, "Please extend my permit\n0090\n")

	line, err := c.ReadLine("Enter claim content: ")
	if err != nil {
		t.Fatal(err)
	}
	if line != "Please extend my permit" {
		t.Errorf("ReadLine() = %q", line)
	}
	if !strings.HasPrefix(out.String(), "Enter claim content: ") {
		t.Errorf("label not printed: %q", out.String())
	}

	pin, err := c.PromptFor(PurposeAuthentication)
	if err != nil || pin != "0090" {
		t.Errorf("PromptFor() after ReadLine = %q, %v", pin, err)
	}
}

func TestStatic(t *testing.T) {
	s := Static{PurposeAuthentication: "0090"}

	if pin, err := s.PromptFor(PurposeAuthentication); err != nil || pin != "0090" {
		t.Errorf("PromptFor(authentication) = %q, %v", pin, err)
	}
	if _, err := s.PromptFor(PurposeSigning); !errors.Is(err, ErrCanceled) {
		t.Errorf("PromptFor(signing) error = %v, want ErrCanceled", err)
	}
}
