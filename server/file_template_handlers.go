package server

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/jrsteele09/go-authz-server/auth"
)

// ErrorView is the page shown for hard errors on the browser endpoints.
const ErrorView = "error"

//go:embed templates/*
var templateFiles embed.FS

// Renderer writes a named view.
type Renderer interface {
	Render(w io.Writer, view string, data any) error
}

func TemplateFilesFS() fs.FS {
	// Create the sub filesystem once
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a template from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	content, err := fs.ReadFile(TemplateFilesFS(), name)
	if err != nil {
		return nil, err
	}
	return template.New(name).Parse(string(content))
}

// TemplateRenderer renders the embedded HTML templates, one per view.
type TemplateRenderer struct {
	templates map[string]*template.Template
}

var _ Renderer = (*TemplateRenderer)(nil)

func NewTemplateRenderer() (*TemplateRenderer, error) {
	tr := &TemplateRenderer{templates: make(map[string]*template.Template)}
	for _, view := range []string{auth.AuthorizeView, auth.AuthenticateView, ErrorView} {
		tmpl, err := ParseTemplate(view + ".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", view, err)
		}
		tr.templates[view] = tmpl
	}
	return tr, nil
}

func (tr *TemplateRenderer) Render(w io.Writer, view string, data any) error {
	tmpl, ok := tr.templates[view]
	if !ok {
		return fmt.Errorf("unknown view %q", view)
	}
	return tmpl.Execute(w, data)
}
