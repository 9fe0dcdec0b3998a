package email

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"

	"certflow/internal/domain"
)

// liquidRenderer implements domain.TemplateRenderer with the Liquid
// template language, so admin-authored templates can use {{name}},
// {{event_name}}, filters, and conditionals.
type liquidRenderer struct {
	engine *liquid.Engine
	cache  sync.Map // template text -> *liquid.Template
}

// NewTemplateRenderer returns a Liquid-backed TemplateRenderer.
func NewTemplateRenderer() domain.TemplateRenderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s, ok := value.(string); ok && s == "" {
			return defaultVal
		}
		return value
	})
	return &liquidRenderer{engine: engine}
}

func (r *liquidRenderer) Render(text string, bindings map[string]any) (string, error) {
	tmpl, err := r.parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	out, err := tmpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

func (r *liquidRenderer) parse(text string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(text); ok {
		return cached.(*liquid.Template), nil
	}
	tmpl, err := r.engine.ParseString(text)
	if err != nil {
		return nil, err
	}
	r.cache.Store(text, tmpl)
	return tmpl, nil
}
