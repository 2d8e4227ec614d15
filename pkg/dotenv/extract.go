package dotenv

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/systemstart/envsecrets/pkg/api"
)

// Options controls which names are extracted.
type Options struct {
	// Prefix excludes lines starting with it. Defaults to api.ReservedPrefix.
	Prefix string
	// Skip holds doublestar patterns; matching names are left out.
	Skip []string
}

// ExtractNames reads filename and returns the variable names it defines.
func ExtractNames(filename string, opts Options) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	defer func() { _ = f.Close() }()

	names, err := ReadNames(f, opts)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", filename, err)
	}
	return names, nil
}

// ReadNames returns the names of KEY=VALUE lines in file order. Blank lines,
// comments, reserved names and lines without '=' are skipped. Duplicates are
// kept.
func ReadNames(r io.Reader, opts Options) ([]string, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = api.ReservedPrefix
	}

	for _, pattern := range opts.Skip {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid skip pattern %q", pattern)
		}
	}

	names := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, prefix) {
			continue
		}
		name, _, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if skipped(name, opts.Skip) {
			slog.Debug("skipping variable", "name", name)
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}
	return names, nil
}

func skipped(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if doublestar.MatchUnvalidated(pattern, name) {
			return true
		}
	}
	return false
}

// Variables pairs each name with its value from lookup. Absent values are
// empty, not an error.
func Variables(names []string, lookup api.LookupFunc) []api.EnvVariable {
	vars := make([]api.EnvVariable, 0, len(names))
	for _, name := range names {
		value, ok := lookup(name)
		if !ok {
			slog.Warn("variable not set in environment, publishing empty value", "name", name)
		}
		vars = append(vars, api.EnvVariable{Name: name, Value: value})
	}
	return vars
}
