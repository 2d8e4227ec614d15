package workflow

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultLineTemplate appends NAME=<secret> to .env when the workflow runs.
const DefaultLineTemplate = `echo "{{ .Name }}={{ secretRef .Name }}" >> .env`

// LineData is the data each fragment line is rendered with.
type LineData struct {
	Name  string
	Index int
}

// SecretRef returns the Actions expression that expands to the secret name.
func SecretRef(name string) string {
	return "${{ secrets." + name + " }}"
}

// RenderFragment renders lineTemplate once per name, in order, each line
// terminated by a newline. An empty lineTemplate uses DefaultLineTemplate.
func RenderFragment(names []string, lineTemplate string) (string, error) {
	if lineTemplate == "" {
		lineTemplate = DefaultLineTemplate
	}

	funcs := sprig.TxtFuncMap()
	funcs["secretRef"] = SecretRef

	tmpl, err := template.New("line").Funcs(funcs).Option("missingkey=error").Parse(lineTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing line template: %w", err)
	}

	var buf bytes.Buffer
	for i, name := range names {
		if err := tmpl.Execute(&buf, LineData{Name: name, Index: i}); err != nil {
			return "", fmt.Errorf("executing line template for %s: %w", name, err)
		}
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}
