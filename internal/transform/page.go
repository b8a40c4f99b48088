package transform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/sitedata"
)

// DataSource produces a fresh template context for each render.
type DataSource interface {
	Load() (*sitedata.Data, error)
}

// Page renders Django-style templates with pongo2. Templates resolve
// extends and include below root.
type Page struct {
	root string
	data DataSource

	once sync.Once
	set  *pongo2.TemplateSet
	err  error
}

// NewPage returns a Page rendering templates below root. The root may not
// exist yet; it is opened on the first render.
func NewPage(root string, data DataSource) (*Page, error) {
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("template root %s is not a directory", root)
	}
	return &Page{root: root, data: data}, nil
}

func (p *Page) templates() (*pongo2.TemplateSet, error) {
	p.once.Do(func() {
		loader, err := pongo2.NewLocalFileSystemLoader(p.root)
		if err != nil {
			p.err = fmt.Errorf("template root %s: %w", p.root, err)
			return
		}
		p.set = pongo2.NewSet("pages", loader)
		// Reparse on every render so edits show up while developing.
		p.set.Debug = true
	})
	return p.set, p.err
}

func (p *Page) Name() string { return "pongo2" }

func (p *Page) Transform(ctx context.Context, f File) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	data, err := p.data.Load()
	if err != nil {
		return File{}, err
	}

	set, err := p.templates()
	if err != nil {
		return File{}, err
	}

	tpl, err := set.FromFile(filepath.ToSlash(f.Rel))
	if err != nil {
		return File{}, templateError(f, err)
	}

	out, err := tpl.ExecuteBytes(pongo2.Context(data.Context()))
	if err != nil {
		return File{}, templateError(f, err)
	}

	return File{Source: f.Source, Rel: f.Rel, Contents: out}, nil
}

func templateError(f File, err error) error {
	var perr *pongo2.Error
	if errors.As(err, &perr) {
		d := diagnostic("pongo2", f, perr.Line, perr.Column, err.Error())
		if perr.OrigError != nil {
			d.Message = perr.OrigError.Error()
		}
		if perr.Filename != "" && perr.Filename != "<string>" {
			d.File = filepath.ToSlash(perr.Filename)
		}
		return d
	}
	return diagnostic("pongo2", f, 0, 0, err.Error())
}
