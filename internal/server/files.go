package server

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/sitepipe/internal/livereload"
)

type route struct {
	prefix string
	dir    string
}

// fileHandler serves the first existing file across routes and roots.
type fileHandler struct {
	routes []route
	roots  []string
	inject bool
}

func newFileHandler(routes map[string]string, roots []string, inject bool) *fileHandler {
	h := &fileHandler{roots: roots, inject: inject}
	for prefix, dir := range routes {
		prefix = "/" + strings.Trim(path.Clean("/"+prefix), "/")
		h.routes = append(h.routes, route{prefix: prefix, dir: dir})
	}
	// Longest prefix first so nested routes win.
	sort.Slice(h.routes, func(i, j int) bool {
		if len(h.routes[i].prefix) != len(h.routes[j].prefix) {
			return len(h.routes[i].prefix) > len(h.routes[j].prefix)
		}
		return h.routes[i].prefix < h.routes[j].prefix
	})
	return h
}

type match struct {
	file string
	dir  bool
}

func (h *fileHandler) lookup(upath string) (match, bool) {
	for _, rt := range h.routes {
		if upath != rt.prefix && !strings.HasPrefix(upath, rt.prefix+"/") {
			continue
		}
		if m, ok := resolve(rt.dir, strings.TrimPrefix(upath, rt.prefix)); ok {
			return m, true
		}
	}
	for _, root := range h.roots {
		if m, ok := resolve(root, upath); ok {
			return m, true
		}
	}
	return match{}, false
}

// resolve maps a cleaned URL path onto root. Directories resolve to their
// index.html. Anything escaping root is refused.
func resolve(root, upath string) (match, bool) {
	if root == "" {
		return match{}, false
	}
	name := filepath.Join(root, filepath.FromSlash(upath))
	rel, err := filepath.Rel(root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return match{}, false
	}

	info, err := os.Stat(name)
	if err != nil {
		return match{}, false
	}
	if !info.IsDir() {
		return match{file: name}, true
	}

	index := filepath.Join(name, "index.html")
	if info, err := os.Stat(index); err != nil || info.IsDir() {
		return match{}, false
	}
	return match{file: index, dir: true}, true
}

func (h *fileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	upath := path.Clean("/" + r.URL.Path)
	m, ok := h.lookup(upath)
	if !ok {
		http.NotFound(w, r)
		return
	}

	// Relative links inside an index page need the trailing slash.
	if m.dir && !strings.HasSuffix(r.URL.Path, "/") {
		target := upath + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	f, err := os.Open(m.file)
	if err != nil {
		http.Error(w, "Failed to open file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Failed to stat file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")

	if !h.inject || !isHTML(m.file) {
		http.ServeContent(w, r, m.file, info.ModTime(), f)
		return
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	page := livereload.Inject(buf.Bytes(), livereload.DefaultPath)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, m.file, info.ModTime(), bytes.NewReader(page))
}

func isHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
