package ctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/authhub/internal/server/auth"
)

// kidLayout sorts lexicographically in time order, so the newest key
// becomes the active one by default.
const kidLayout = "20060102T150405Z"

func (a *App) keygen(args []string) error {
	fs := a.flagSet("keygen")
	dir := fs.StringP("out", "o", ".", "directory to write the key into")
	kid := fs.String("kid", "", "key id (default: current UTC time)")
	bits := fs.Int("bits", 2048, "RSA modulus size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *kid == "" {
		*kid = a.Now().UTC().Format(kidLayout)
	}
	if strings.ContainsAny(*kid, `/\`) || strings.HasPrefix(*kid, ".") {
		return fmt.Errorf("invalid kid %q", *kid)
	}
	if *bits < 2048 {
		return fmt.Errorf("refusing to generate a %d-bit key, minimum is 2048", *bits)
	}

	key, err := auth.GenerateKey(*bits)
	if err != nil {
		return err
	}
	pemBytes, err := auth.EncodePrivateKeyPEM(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*dir, 0o700); err != nil {
		return err
	}
	path := filepath.Join(*dir, *kid+".pem")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(pemBytes); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintln(a.Stdout, path)
	return nil
}
