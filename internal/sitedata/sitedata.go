// Package sitedata assembles the read-only context handed to page templates:
// the navigation menus, the project's package metadata and the render
// timestamp. A fresh context is built for every render.
package sitedata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/version"
)

// Menu is one navigation entry. Children render as a dropdown.
type Menu struct {
	Name     string `yaml:"name" json:"name"`
	Icon     string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Link     string `yaml:"link,omitempty" json:"link,omitempty"`
	Children []Menu `yaml:"children,omitempty" json:"children,omitempty"`
}

// DefaultMenus is the navigation used when no data file overrides it.
func DefaultMenus() []Menu {
	return []Menu{
		{Name: "Home", Icon: "aperture", Link: "index.html"},
		{Name: "Features", Link: "features.html"},
		{Name: "About", Link: "about.html"},
		{
			Name: "Contact",
			Link: "#",
			Children: []Menu{
				{Name: "Twitter", Link: "https://twitter.com/w_zce"},
				{Name: "About", Link: "https://weibo.com/zceme"},
				{Name: "divider"},
				{Name: "About", Link: "https://github.com/zce"},
			},
		},
	}
}

// Data is one snapshot of template data.
type Data struct {
	Menus []Menu
	Pkg   map[string]interface{}
	Date  time.Time
	Extra map[string]interface{}
}

// Loader reads template data from disk. Both files are optional.
type Loader struct {
	DataFile    string
	PackageFile string
	ProjectDir  string
	Now         func() time.Time
}

// Load reads the data and package files afresh.
func (l *Loader) Load() (*Data, error) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}

	data := &Data{
		Menus: DefaultMenus(),
		Date:  now(),
		Extra: map[string]interface{}{},
	}

	if l.DataFile != "" {
		if err := l.loadDataFile(data); err != nil {
			return nil, err
		}
	}

	pkg, err := l.loadPackage()
	if err != nil {
		return nil, err
	}
	data.Pkg = pkg

	return data, nil
}

func (l *Loader) loadDataFile(data *Data) error {
	raw, err := os.ReadFile(l.DataFile)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeReadFailed, "failed to read data file", l.DataFile)
	}

	var typed struct {
		Menus []Menu `yaml:"menus"`
	}
	if err := yaml.Unmarshal(raw, &typed); err != nil {
		return errors.WrapConfig(err, errors.ErrCodeDataInvalid, fmt.Sprintf("invalid data file %s", l.DataFile))
	}

	var extra map[string]interface{}
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return errors.WrapConfig(err, errors.ErrCodeDataInvalid, fmt.Sprintf("invalid data file %s", l.DataFile))
	}

	if _, ok := extra["menus"]; ok {
		data.Menus = typed.Menus
		delete(extra, "menus")
	}
	for k, v := range extra {
		data.Extra[k] = v
	}
	return nil
}

func (l *Loader) loadPackage() (map[string]interface{}, error) {
	fallback := map[string]interface{}{
		"name":    l.projectName(),
		"version": version.GetVersion(),
	}
	if l.PackageFile == "" {
		return fallback, nil
	}

	raw, err := os.ReadFile(l.PackageFile)
	if os.IsNotExist(err) {
		return fallback, nil
	}
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeReadFailed, "failed to read package metadata", l.PackageFile)
	}

	if !gjson.ValidBytes(raw) {
		return nil, errors.NewConfigError(errors.ErrCodeDataInvalid, "package metadata is not valid JSON").
			WithLocation(l.PackageFile, 0, 0)
	}
	pkg, ok := gjson.ParseBytes(raw).Value().(map[string]interface{})
	if !ok {
		return nil, errors.NewConfigError(errors.ErrCodeDataInvalid, "package metadata must be a JSON object").
			WithLocation(l.PackageFile, 0, 0)
	}
	return pkg, nil
}

func (l *Loader) projectName() string {
	dir := l.ProjectDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "site"
	}
	return filepath.Base(abs)
}

// Context flattens the data into the plain maps templates address as
// menu.name, pkg.version and so on.
func (d *Data) Context() map[string]interface{} {
	ctx := make(map[string]interface{}, len(d.Extra)+5)
	for k, v := range d.Extra {
		ctx[k] = v
	}
	ctx["menus"] = menusContext(d.Menus)
	ctx["pkg"] = d.Pkg
	ctx["date"] = d.Date
	ctx["year"] = d.Date.Year()
	// A Caser carries state between calls, so each call gets its own.
	ctx["title"] = func(s string) string { return cases.Title(language.English).String(s) }
	return ctx
}

func menusContext(menus []Menu) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(menus))
	for _, m := range menus {
		entry := map[string]interface{}{
			"name": m.Name,
			"icon": m.Icon,
			"link": m.Link,
		}
		if len(m.Children) > 0 {
			entry["children"] = menusContext(m.Children)
		}
		out = append(out, entry)
	}
	return out
}
