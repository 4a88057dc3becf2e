// Package allowlist decides whether a requested executable and argument
// vector is permitted to run. The safety property is deliberately narrow:
// only byte-for-byte pre-approved invocations (or pre-approved prefixes)
// run. No wildcard or regex matching exists.
package allowlist

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Entry is one pre-approved invocation shape.
type Entry struct {
	// Executable is a bare command name. Names containing path
	// separators never match.
	Executable string `toml:"executable"`

	// Args is the fixed argument vector.
	Args []string `toml:"args"`

	// AllowAdditionalArgs permits request argument vectors that start
	// with Args as a prefix, instead of requiring exact equality.
	AllowAdditionalArgs bool `toml:"allow_additional_args"`
}

// Allowlist holds the set of pre-approved invocations, loaded once at
// startup and read-only afterwards.
type Allowlist struct {
	entries []Entry
}

// New builds an allowlist from explicit entries.
func New(entries []Entry) *Allowlist {
	return &Allowlist{entries: entries}
}

// file is the TOML document shape: a list of [[entry]] tables.
type file struct {
	Entries []Entry `toml:"entry"`
}

// Load reads an allowlist from a TOML file. A missing file yields an
// empty allowlist (nothing is permitted) rather than an error.
func Load(path string) (*Allowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Allowlist{}, nil
		}
		return nil, &LoadError{Path: path, Cause: err}
	}

	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	return &Allowlist{entries: f.Entries}, nil
}

// Len returns the number of configured entries.
func (a *Allowlist) Len() int { return len(a.entries) }

// Check returns nil if the command and argument vector match at least one
// entry, and a CommandNotAllowedError otherwise. Compound or relative
// executable names are rejected outright.
func (a *Allowlist) Check(command string, args []string) error {
	if command == "" {
		return &CommandNotAllowedError{Command: command, Reason: "empty command"}
	}
	if strings.ContainsAny(command, `/\`) {
		return &CommandNotAllowedError{Command: command, Reason: "executable name must not contain path separators"}
	}

	for _, entry := range a.entries {
		if entry.matches(command, args) {
			return nil
		}
	}
	return &CommandNotAllowedError{Command: command, Reason: "no allowlist entry matches"}
}

func (e *Entry) matches(command string, args []string) bool {
	if e.Executable != command {
		return false
	}
	if e.AllowAdditionalArgs {
		if len(args) < len(e.Args) {
			return false
		}
	} else if len(args) != len(e.Args) {
		return false
	}
	for i, fixed := range e.Args {
		if args[i] != fixed {
			return false
		}
	}
	return true
}
