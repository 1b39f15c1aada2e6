package codegen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/edgedesk/scanforge/internal/models"
)

// Generator renders canonical scanner code by merging final parameter values
// into a fixed template. Output is deterministic: identical inputs always
// produce identical code, and a rendered parameter block round-trips through
// parameter extraction unchanged.
type Generator struct {
	tmpl     *template.Template
	scaffold *template.Template
}

const scannerTemplate = `# scanner: {{.ScannerType}}
{{- if .Description}}
# {{.Description}}
{{- end}}

{{range .Parameters -}}
{{.Name}} = {{.Value}}
{{end}}
def scan(daily):
    candidates = daily
{{- range .Conditions}}
    # {{.Description}}
    candidates = candidates[candidates.eval("{{.Expression}}")]
{{- end}}
    return candidates
`

const scaffoldTemplate = `# scanner: custom
# No known scanner pattern matched this input with enough confidence.
# The original text is preserved below for manual editing.

def scan(daily):
    candidates = daily
    return candidates

# --- original input ---
{{- range .Lines}}
# {{.}}
{{- end}}
`

type templateParameter struct {
	Name  string
	Value string
}

type templateCondition struct {
	Description string
	Expression  string
}

type templateData struct {
	ScannerType string
	Description string
	Parameters  []templateParameter
	Conditions  []templateCondition
}

// NewGenerator constructs a Generator with the fixed templates parsed once.
func NewGenerator() *Generator {
	return &Generator{
		tmpl:     template.Must(template.New("scanner").Parse(scannerTemplate)),
		scaffold: template.Must(template.New("scaffold").Parse(scaffoldTemplate)),
	}
}

// Generate merges the final parameter mapping into the pattern's template.
// Parameters and conditions are emitted in sorted order so output is stable.
func (g *Generator) Generate(pattern models.ScannerPattern, params map[string]any) (string, error) {
	if pattern.Name == "" {
		return "", fmt.Errorf("pattern name is required")
	}

	data := templateData{
		ScannerType: pattern.Name,
		Description: pattern.Description,
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data.Parameters = append(data.Parameters, templateParameter{
			Name:  name,
			Value: pyLiteral(params[name]),
		})
	}

	descriptions := make([]string, 0, len(pattern.Conditions))
	for description := range pattern.Conditions {
		descriptions = append(descriptions, description)
	}
	sort.Strings(descriptions)
	for _, description := range descriptions {
		data.Conditions = append(data.Conditions, templateCondition{
			Description: description,
			Expression:  pattern.Conditions[description],
		})
	}

	var b strings.Builder
	if err := g.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render scanner template: %w", err)
	}
	return b.String(), nil
}

// Scaffold wraps unclassified input in the default scanner skeleton so the
// user always gets runnable output to edit.
func (g *Generator) Scaffold(text string) (string, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if text == "" {
		lines = nil
	}
	var b strings.Builder
	if err := g.scaffold.Execute(&b, struct{ Lines []string }{Lines: lines}); err != nil {
		return "", fmt.Errorf("render scaffold template: %w", err)
	}
	return b.String(), nil
}

// pyLiteral renders a parameter value as a Python literal. Floats always keep
// a decimal point so the value survives the coercion rule on re-extraction.
func pyLiteral(v any) string {
	switch value := v.(type) {
	case bool:
		if value {
			return "True"
		}
		return "False"
	case float64:
		s := strconv.FormatFloat(value, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case float32:
		return pyLiteral(float64(value))
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case string:
		return strconv.Quote(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}
