package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/imamik/hpcmaker/internal/provisioning"
)

// Template names shipped with hpcmaker.
const (
	PolicyTemplate = "instance_policy.json.tmpl"
	TFVarsTemplate = "terraform.auto.tfvars.json.tmpl"
	NoticeTemplate = "notice.txt.tmpl"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// DefaultTemplates returns the embedded template set.
func DefaultTemplates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

var _ provisioning.TemplateRenderer = (*Renderer)(nil)

// Renderer renders templates from a file system.
type Renderer struct {
	fsys fs.FS
}

// New returns a renderer reading templates from fsys.
func New(fsys fs.FS) *Renderer {
	return &Renderer{fsys: fsys}
}

// NewFromDir reads templates from dir, or the embedded set when dir is empty.
func NewFromDir(dir string) *Renderer {
	if dir == "" {
		return New(DefaultTemplates())
	}
	return New(os.DirFS(dir))
}

// Render executes the template name with data. Output of *.json.tmpl
// templates must be valid JSON.
func (r *Renderer) Render(name string, data any) ([]byte, error) {
	src, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, provisioning.Precondition(fmt.Sprintf("template %s not found", name), "")
		}
		return nil, fmt.Errorf("reading template %s: %w", name, err)
	}

	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", name, err)
	}

	out := buf.Bytes()
	if strings.HasSuffix(name, ".json.tmpl") && !json.Valid(out) {
		return nil, fmt.Errorf("template %s produced invalid JSON", name)
	}
	return out, nil
}

// RenderToFile renders name and writes the result to path atomically.
func (r *Renderer) RenderToFile(name string, data any, path string) error {
	out, err := r.Render(name, data)
	if err != nil {
		return err
	}
	return WriteFile(path, out)
}
