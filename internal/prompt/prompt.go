// Package prompt holds the generation-service prompt templates and a
// small rendering helper. Templates ship embedded; an on-disk override
// lets operators tune prompts without a rebuild.
package prompt

import (
	_ "embed"
	"errors"
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var embeddedTemplates []byte

// ErrTemplateMissing is returned when a named template does not exist.
// Stages catch it and fall back to their documented safe default.
var ErrTemplateMissing = errors.New("prompt: template missing")

// Library is a named collection of prompt templates.
type Library struct {
	templates map[string]string
}

// Load builds a library from the embedded templates, or from the YAML
// file at path when it is non-empty.
func Load(path string) (*Library, error) {
	data := embeddedTemplates
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "prompt: read %s", path)
		}
		data = b
	}

	var templates map[string]string
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, eris.Wrap(err, "prompt: parse templates")
	}
	return &Library{templates: templates}, nil
}

// Render looks up a template by name and substitutes its placeholders.
func (l *Library) Render(name string, vars map[string]string) (string, error) {
	tmpl, ok := l.templates[name]
	if !ok {
		return "", eris.Wrapf(ErrTemplateMissing, "prompt: %s", name)
	}
	return RenderTemplate(tmpl, vars), nil
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// RenderTemplate substitutes {{key}} placeholders from vars. Unknown
// keys render as an explicit <missing:key> marker instead of vanishing
// silently.
func RenderTemplate(tmpl string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return "<missing:" + key + ">"
	})
}
