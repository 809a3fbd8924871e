package printing

import (
	"bytes"
	"fmt"
	"html/template"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TemplateEngine renders named html/template documents with formatting helpers
type TemplateEngine struct {
	mu        sync.RWMutex
	funcMap   template.FuncMap
	templates map[string]*template.Template
	lang      language.Tag
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithLanguage sets the language used for title casing
func WithLanguage(tag language.Tag) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.lang = tag
	}
}

// WithFuncs adds template functions
func WithFuncs(funcs template.FuncMap) TemplateEngineOption {
	return func(e *TemplateEngine) {
		maps.Copy(e.funcMap, funcs)
	}
}

// NewTemplateEngine creates an engine with the built-in dispensation template registered
func NewTemplateEngine(opts ...TemplateEngineOption) (*TemplateEngine, error) {
	e := &TemplateEngine{
		templates: make(map[string]*template.Template),
		lang:      language.Spanish,
	}
	e.funcMap = template.FuncMap{
		"formatQty":  formatQuantity,
		"formatDate": formatDate,
		"upper":      strings.ToUpper,
		"join":       strings.Join,
		"add":        func(a, b int) int { return a + b },
		"isZero":     func(d decimal.Decimal) bool { return d.IsZero() },
	}
	for _, opt := range opts {
		opt(e)
	}
	caser := cases.Title(e.lang)
	e.funcMap["title"] = func(s string) string { return caser.String(strings.ToLower(s)) }

	if err := e.Register(DispensationTemplateName, dispensationTemplate); err != nil {
		return nil, err
	}
	return e, nil
}

// Register parses and stores a template under name, replacing any previous one
func (e *TemplateEngine) Register(name, content string) error {
	tmpl, err := template.New(name).Funcs(e.funcMap).Parse(content)
	if err != nil {
		return NewRenderError(ErrCodeTemplate, fmt.Sprintf("failed to parse template %q", name), err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[name] = tmpl
	return nil
}

// Render executes the named template with data
func (e *TemplateEngine) Render(name string, data any) (string, error) {
	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return "", NewRenderError(ErrCodeTemplate, fmt.Sprintf("template %q is not registered", name), nil)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeTemplate, fmt.Sprintf("failed to execute template %q", name), err)
	}
	return buf.String(), nil
}

// formatQuantity prints a quantity with up to three decimals and no trailing zeros
func formatQuantity(v any) string {
	var d decimal.Decimal
	switch val := v.(type) {
	case decimal.Decimal:
		d = val
	case *decimal.Decimal:
		if val == nil {
			return ""
		}
		d = *val
	default:
		return fmt.Sprint(v)
	}
	return d.Round(3).String()
}

func formatDate(v any) string {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02")
	case *time.Time:
		if val == nil || val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02")
	default:
		return ""
	}
}
