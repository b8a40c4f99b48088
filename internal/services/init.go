package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// ConfigFileName is the file init writes and the CLI reads by default.
const ConfigFileName = ".sitepipe.yml"

// InitService scaffolds a new project
type InitService struct {
	logger logging.Logger
}

// NewInitService creates a new initialization service
func NewInitService(logger logging.Logger) *InitService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &InitService{logger: logger.WithComponent("init")}
}

// InitOptions contains options for project initialization
type InitOptions struct {
	ProjectDir string
	// Name is written to package.json. Empty uses the directory name.
	Name string
	// Force overwrites starter files that already exist.
	Force bool
}

// InitResult lists the files written and the ones left alone.
type InitResult struct {
	Created []string
	Skipped []string
}

// starterConfig is the subset of the configuration written by init. The
// rest keeps its defaults.
type starterConfig struct {
	Paths struct {
		Src    string `yaml:"src"`
		Public string `yaml:"public"`
		Temp   string `yaml:"temp"`
		Dist   string `yaml:"dist"`
	} `yaml:"paths"`
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Build struct {
		StyleOutput  string `yaml:"style_output"`
		ScriptTarget string `yaml:"script_target"`
	} `yaml:"build"`
	Development struct {
		Debounce  string `yaml:"debounce"`
		HotReload bool   `yaml:"hot_reload"`
	} `yaml:"development"`
}

// InitProject lays out src, public and a configuration file in the
// project directory.
func (s *InitService) InitProject(ctx context.Context, opts InitOptions) (*InitResult, error) {
	dir := opts.ProjectDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeWriteFailed, "cannot create project directory", dir)
	}

	name := opts.Name
	if name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeInvalidPath, "cannot resolve project directory", dir)
		}
		name = packageName(filepath.Base(abs))
	}

	files, err := starterFiles(name)
	if err != nil {
		return nil, err
	}

	result := &InitResult{}
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f.path))
		if _, err := os.Stat(path); err == nil && !opts.Force {
			result.Skipped = append(result.Skipped, f.path)
			s.logger.Debug(ctx, "Keeping existing file", "path", path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return result, errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to create directory", filepath.Dir(path))
		}
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return result, errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to write starter file", path)
		}
		result.Created = append(result.Created, f.path)
	}

	for _, sub := range []string{"src/assets/images", "src/assets/fonts"} {
		if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(sub)), 0755); err != nil {
			return result, errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to create directory", sub)
		}
	}

	s.logger.Info(ctx, "Project initialized", "dir", dir, "created", len(result.Created), "skipped", len(result.Skipped))
	return result, nil
}

// packageName turns a directory name into a lowercase, ASCII package name.
func packageName(name string) string {
	out := strings.Trim(slug.Make(name), "-_")
	if out == "" {
		return "site"
	}
	return out
}

type starterFile struct {
	path    string
	content string
}

func starterFiles(name string) ([]starterFile, error) {
	var sc starterConfig
	sc.Paths.Src, sc.Paths.Public, sc.Paths.Temp, sc.Paths.Dist = "src", "public", "temp", "dist"
	sc.Server.Host = "localhost"
	sc.Server.Port = config.DefaultPort
	sc.Build.StyleOutput = "expanded"
	sc.Build.ScriptTarget = "es2015"
	sc.Development.Debounce = config.DefaultDebounce.String()
	sc.Development.HotReload = true

	cfg, err := yaml.Marshal(&sc)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInitFailed, "failed to encode starter configuration", err)
	}

	return []starterFile{
		{path: ConfigFileName, content: string(cfg)},
		{path: "package.json", content: fmt.Sprintf("{\n  \"name\": %q,\n  \"version\": \"0.1.0\",\n  \"private\": true\n}\n", name)},
		{path: ".gitignore", content: "temp/\ndist/\nnode_modules/\n"},
		{path: "src/_layout.html", content: starterLayout},
		{path: "src/index.html", content: starterIndex},
		{path: "src/assets/styles/_variables.scss", content: "$brand: #3b6ea5;\n$gap: 1rem;\n"},
		{path: "src/assets/styles/main.scss", content: starterStyle},
		{path: "src/assets/scripts/main.js", content: starterScript},
		{path: "public/robots.txt", content: "User-agent: *\nDisallow:\n"},
	}, nil
}

const starterLayout = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{% block title %}{{ pkg.name }}{% endblock %}</title>
  <!-- build:css assets/styles/vendor.css -->
  <link rel="stylesheet" href="assets/styles/main.css">
  <!-- endbuild -->
</head>
<body>
  <nav>
    {% for menu in menus %}<a href="{{ menu.link }}">{{ menu.name }}</a>
    {% endfor %}
  </nav>
  <main>{% block body %}{% endblock %}</main>
  <footer>&copy; {{ year }} {{ pkg.name }}</footer>
  <!-- build:js assets/scripts/vendor.js -->
  <script src="assets/scripts/main.js"></script>
  <!-- endbuild -->
</body>
</html>
`

const starterIndex = `{% extends "_layout.html" %}
{% block body %}
<h1>{{ title(pkg.name) }}</h1>
<p>Edit src/index.html and save to reload.</p>
{% endblock %}
`

const starterStyle = `@use "variables" as *;

body {
  margin: 0;
  font-family: system-ui, sans-serif;
}

nav a {
  margin-right: $gap;
  color: $brand;
}
`

const starterScript = `const greet = (name = 'world') => {
  const target = document.querySelector('h1')?.textContent ?? name;
  console.log(` + "`hello ${target}`" + `);
};

greet();
`
