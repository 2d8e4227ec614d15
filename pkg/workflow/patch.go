package workflow

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyDocument = errors.New("workflow file is empty")
	ErrStepNotFound  = errors.New("step not found")
)

const defaultIndent = 2

// Patch replaces the run command of the first jobs.build.steps entry named
// stepName with fragment and writes the document back to path. Nothing is
// written if the step cannot be found.
func Patch(path, stepName, fragment string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading workflow file: %w", err)
	}

	out, err := PatchDocument(data, stepName, fragment)
	if err != nil {
		return fmt.Errorf("patching %s: %w", path, err)
	}

	if err := writeFileAtomic(path, out, 0o600); err != nil {
		return fmt.Errorf("writing workflow file: %w", err)
	}
	slog.Info("workflow file updated", "path", path, "step", stepName)
	return nil
}

// PatchDocument is Patch on an in-memory document. Only the lines of the
// step's run entry change; everything else is copied through unchanged.
func PatchDocument(data []byte, stepName, fragment string) ([]byte, error) {
	step, err := locateStep(data, stepName)
	if err != nil {
		return nil, err
	}
	if step.Style&yaml.FlowStyle != 0 {
		return nil, fmt.Errorf("step %s is a flow mapping and cannot be patched in place", stepName)
	}

	out := spliceRun(data, step, fragment)

	// The splice works on raw lines, so check the result parses back to the
	// intended value.
	patched, err := locateStep(out, stepName)
	if err != nil {
		return nil, fmt.Errorf("re-reading patched workflow: %w", err)
	}
	var run string
	if v := mappingValue(patched, "run"); v != nil {
		if err := v.Decode(&run); err != nil {
			return nil, fmt.Errorf("re-reading patched run: %w", err)
		}
	}
	if run != fragment {
		return nil, fmt.Errorf("patched run of step %s does not match the generated command", stepName)
	}

	slog.Debug("step updated", "step", stepName)
	return out, nil
}

func locateStep(data []byte, stepName string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}
	if isEmptyDoc(&doc) {
		return nil, ErrEmptyDocument
	}

	steps := lookupPath(doc.Content[0], "jobs", "build", "steps")
	if steps == nil || steps.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: jobs.build.steps is missing or not a list", ErrStepNotFound)
	}

	step := findStep(steps, stepName)
	if step == nil {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepName)
	}
	return step, nil
}

// WriteFragment stores fragment in a standalone file, used when no workflow
// file is configured.
func WriteFragment(path, fragment string) error {
	if err := writeFileAtomic(path, []byte(fragment), 0o600); err != nil {
		return fmt.Errorf("writing fragment file: %w", err)
	}
	slog.Info("fragment written", "path", path)
	return nil
}

func isEmptyDoc(node *yaml.Node) bool {
	if node.Kind == 0 {
		return true
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return true
		}
		c := node.Content[0]
		return c.Kind == yaml.ScalarNode && (c.Tag == "!!null" || c.Value == "")
	}
	return false
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func lookupPath(node *yaml.Node, keys ...string) *yaml.Node {
	for _, key := range keys {
		node = mappingValue(node, key)
	}
	return node
}

func findStep(steps *yaml.Node, name string) *yaml.Node {
	for _, step := range steps.Content {
		n := mappingValue(step, "name")
		if n != nil && n.Kind == yaml.ScalarNode && n.Value == name {
			return step
		}
	}
	return nil
}

// spliceRun rewrites the lines holding the step's run entry, or inserts a
// run entry after the step's last key when it has none.
func spliceRun(data []byte, step *yaml.Node, fragment string) []byte {
	lines := strings.SplitAfter(string(data), "\n")
	newline := "\n"
	if bytes.Contains(data, []byte("\r\n")) {
		newline = "\r\n"
	}

	var (
		start, end int
		prefix     string
		comment    string
		keyIndent  int
	)
	if key, value := mappingEntry(step, "run"); key != nil {
		keyIndent = key.Column - 1
		start = key.Line - 1
		prefix = lines[start][:keyIndent]
		end = entryEnd(lines, start, keyIndent)
		if value.Style&(yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
			comment = value.LineComment
			if comment == "" {
				comment = key.LineComment
			}
		}
	} else {
		last := step.Content[len(step.Content)-2]
		keyIndent = last.Column - 1
		end = entryEnd(lines, last.Line-1, keyIndent)
		start = end
		prefix = strings.Repeat(" ", keyIndent)
	}

	block := renderRun(prefix, comment, keyIndent, detectIndent(data), fragment, newline)
	if start > 0 && !strings.HasSuffix(lines[start-1], "\n") {
		block = newline + block
	}

	var b strings.Builder
	for _, l := range lines[:start] {
		b.WriteString(l)
	}
	b.WriteString(block)
	for _, l := range lines[end:] {
		b.WriteString(l)
	}
	return []byte(b.String())
}

func mappingEntry(node *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i], node.Content[i+1]
		}
	}
	return nil, nil
}

// entryEnd returns the index of the first line after the entry starting at
// line start: the next non-blank line indented at most indent. Trailing blank
// lines are left outside the entry.
func entryEnd(lines []string, start, indent int) int {
	end := start + 1
	for i := start + 1; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line)-len(strings.TrimLeft(line, " ")) <= indent {
			break
		}
		end = i + 1
	}
	return end
}

// renderRun formats a run entry holding fragment as a literal block.
func renderRun(prefix, comment string, keyIndent, indent int, fragment, newline string) string {
	header := prefix + "run: "
	if fragment == "" {
		header += `""`
		if comment != "" {
			header += " " + comment
		}
		return header + newline
	}

	chomp := ""
	switch {
	case !strings.HasSuffix(fragment, "\n"):
		chomp = "-"
	case strings.HasSuffix(fragment, "\n\n"):
		chomp = "+"
	}
	indicator := ""
	if first := strings.TrimLeft(fragment, "\n"); strings.HasPrefix(first, " ") {
		indicator = strconv.Itoa(indent)
	}
	header += "|" + indicator + chomp
	if comment != "" {
		header += " " + comment
	}

	var b strings.Builder
	b.WriteString(header + newline)
	pad := strings.Repeat(" ", keyIndent+indent)
	for _, line := range strings.Split(strings.TrimSuffix(fragment, "\n"), "\n") {
		if line != "" {
			b.WriteString(pad + line)
		}
		b.WriteString(newline)
	}
	return b.String()
}

// detectIndent returns the indentation of the first indented content line.
func detectIndent(data []byte) int {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		n := len(line) - len(trimmed)
		if n == 0 {
			continue
		}
		if n >= 2 && n <= 8 {
			return n
		}
		break
	}
	return defaultIndent
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if st, err := os.Stat(path); err == nil {
		perm = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
