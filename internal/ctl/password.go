package ctl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// getPassword reads a password without echo from a terminal, or a single
// line from a pipe.
func (a *App) getPassword() ([]byte, error) {
	if f, ok := a.Stdin.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(a.Stderr, "Enter password: ")
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(a.Stderr)
		return pw, err
	}

	line, err := bufio.NewReader(a.Stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func (a *App) hashPassword(args []string) error {
	fs := a.flagSet("hash-password")
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := a.getPassword()
	if err != nil {
		return err
	}
	defer clear(pw)
	if len(pw) == 0 {
		return errors.New("empty password")
	}

	hash, err := bcrypt.GenerateFromPassword(pw, *cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Stdout, string(hash))
	return nil
}
