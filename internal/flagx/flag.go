// Package flagx contains helpers for layered command-line configuration:
// argv filtering, config-file path lookup and environment overrides.
package flagx

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// FilterArgs returns a slice of command-line arguments that only contains
// the allowed flags (and their values) specified in allowedFlags.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
//
// Parameters:
//
//	args         — the command-line arguments (usually os.Args[1:])
//	allowedFlags — list of allowed flag names (e.g. []string{"-c", "--config"})
//
// Returns:
//
//	A slice containing the allowed flags and their values, ready to be
//	handed to a pflag.FlagSet that only defines those flags.
func FilterArgs(args []string, allowedFlags []string) []string {
	// Convert the list of allowed flags into a map for O(1) lookup
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	// Initialize the result slice as empty (not nil) so it's always safe to use
	filtered := make([]string, 0, len(args))

	// Iterate over the arguments
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Case 1: flag in the form "--flag=value" or "-f=value"
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			// Extract the flag name (before the '=')
			name := strings.SplitN(arg, "=", 2)[0]
			// If this flag is allowed, keep the whole "flag=value" argument
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		// Case 2: flag as a separate argument (value might follow)
		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			// If the next argument exists and does not look like another flag,
			// treat it as this flag's value and include it
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++ // skip the value in the next loop iteration
			}
		}
	}

	return filtered
}

// StripArgs is the complement of FilterArgs: it returns args without the
// given flags and their values.
func StripArgs(args []string, flags []string) []string {
	drop := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		drop[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			if _, ok := drop[strings.SplitN(arg, "=", 2)[0]]; ok {
				continue
			}
			out = append(out, arg)
			continue
		}
		if _, ok := drop[arg]; ok {
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}

// ConfigFlags are the spellings accepted for the config file path.
var ConfigFlags = []string{"-c", "-config", "--config"}

// ConfigPath extracts the config file path given via -c, -config or
// --config. Other arguments are ignored. Returns "" when none is present;
// the last occurrence wins.
func ConfigPath(args []string) string {
	var config string

	filtered := FilterArgs(args, ConfigFlags)
	for i, a := range filtered {
		// pflag only understands the double-dash long form
		if a == "-config" || strings.HasPrefix(a, "-config=") {
			filtered[i] = "-" + a
		}
	}

	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.StringVarP(&config, "config", "c", "", "Path to config file")
	_ = fs.Parse(filtered)

	return config
}

// JsonConfigFlags returns ConfigPath(os.Args[1:]).
func JsonConfigFlags() string {
	return ConfigPath(os.Args[1:])
}

// EnvName maps a flag name to its environment variable:
// prefix "AUTHHUB", flag "redis-addr" -> "AUTHHUB_REDIS_ADDR".
func EnvName(prefix, flagName string) string {
	n := strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
	if prefix == "" {
		return n
	}
	return prefix + "_" + n
}

// ApplyEnv sets every flag of fs that was not given on the command line from
// its environment variable, if present. It must run after fs.Parse.
func ApplyEnv(fs *pflag.FlagSet, prefix string, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || firstErr != nil {
			return
		}
		v, ok := lookup(EnvName(prefix, f.Name))
		if !ok {
			return
		}
		if err := f.Value.Set(v); err != nil {
			firstErr = err
		}
	})
	return firstErr
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
