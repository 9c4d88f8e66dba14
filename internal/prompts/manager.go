package prompts

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

const (
	Questions = "questions"
	Score     = "score"
	Report    = "report"
)

const defaultLanguage = "en"

// Template is one prompt file: a shared body plus a per-language suffix.
type Template struct {
	BasePrompt string            `yaml:"base_prompt"`
	Languages  map[string]string `yaml:"languages"`
}

// Manager holds the fully assembled prompts, keyed by kind then language.
type Manager struct {
	prompts map[string]map[string]string
}

func NewManager() (*Manager, error) {
	m := &Manager{prompts: make(map[string]map[string]string)}
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return m, nil
}

// Build renders the prompt of the given kind. Unknown languages fall back to
// English; {{.Key}} placeholders are replaced from vars.
func (m *Manager) Build(kind, language string, vars map[string]string) (string, error) {
	byLang, ok := m.prompts[kind]
	if !ok {
		return "", fmt.Errorf("template not found: %s", kind)
	}
	tpl, ok := byLang[language]
	if !ok {
		tpl, ok = byLang[defaultLanguage]
		if !ok {
			return "", fmt.Errorf("template %s has no %q variant", kind, defaultLanguage)
		}
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(vars)*2)
	for _, k := range keys {
		v := vars[k]
		if strings.TrimSpace(v) == "" {
			v = "-"
		}
		pairs = append(pairs, "{{."+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl), nil
}

func (m *Manager) Kinds() []string {
	out := make([]string, 0, len(m.prompts))
	for k := range m.prompts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) load() error {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		m.prompts[name] = make(map[string]string, len(t.Languages))
		for lang, suffix := range t.Languages {
			var b strings.Builder
			b.WriteString(strings.TrimSpace(t.BasePrompt))
			b.WriteString("\n\n")
			b.WriteString(strings.TrimSpace(suffix))
			m.prompts[name][lang] = b.String()
		}
	}
	return nil
}
