package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when a prompt needs a terminal and stdin is not one.
var ErrNotInteractive = errors.New("stdin is not a terminal")

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PromptPassword prompts for a password (hidden input) on stderr.
func PromptPassword(label string) (string, error) {
	if !IsInteractive() {
		return "", ErrNotInteractive
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", label)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// ReadSecret reads a password from r when stdin is piped, one line, newline trimmed.
func ReadSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PromptPasswords asks for each label in turn, remembering answers for the
// run. It satisfies config.PasswordSource.
type PromptPasswords struct {
	answers map[string]string
}

func (p *PromptPasswords) Password(id string) (string, bool, error) {
	if v, ok := p.answers[id]; ok {
		return v, true, nil
	}
	pw, err := PromptPassword(id)
	if err != nil {
		return "", false, err
	}
	if p.answers == nil {
		p.answers = map[string]string{}
	}
	p.answers[id] = pw
	return pw, true, nil
}
