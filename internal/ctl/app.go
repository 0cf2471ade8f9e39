package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
)

const usage = `Usage: authhubctl <command> [flags]

Commands:
  keygen          write a new RSA signing key <kid>.pem
  hash-password   read a password and print its bcrypt hash
  sync            push an endpoint manifest to a hub
`

// App carries the process streams so commands can be driven from tests.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	HTTP   *http.Client
	Now    func() time.Time
}

func NewApp() *App {
	return &App{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
		Now:    time.Now,
	}
}

// Run dispatches args[0] and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.Stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "keygen":
		err = a.keygen(args[1:])
	case "hash-password":
		err = a.hashPassword(args[1:])
	case "sync":
		err = a.sync(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(a.Stdout, usage)
		return 0
	default:
		fmt.Fprintf(a.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	default:
		fmt.Fprintf(a.Stderr, "authhubctl %s: %v\n", args[0], err)
		return 1
	}
}

func (a *App) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	return fs
}
