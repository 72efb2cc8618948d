package server

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"
)

// fileHandler serves the files under a directory. Directories always get a
// generated listing; index.html is served as an ordinary file. Names
// starting with a dot are neither served nor listed.
type fileHandler struct {
	fs     http.FileSystem
	logger *slog.Logger
}

func newFileHandler(root string, logger *slog.Logger) *fileHandler {
	return &fileHandler{fs: hiddenFS{http.Dir(root)}, logger: logger}
}

func (h *fileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
	}
	name := path.Clean(upath)

	f, err := h.fs.Open(name)
	if err != nil {
		h.serveError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.serveError(w, r, err)
		return
	}

	if info.IsDir() {
		if !strings.HasSuffix(upath, "/") {
			localRedirect(w, r, path.Base(upath)+"/")
			return
		}
		h.serveListing(w, r, upath, f, info.ModTime())
		return
	}
	if strings.HasSuffix(upath, "/") {
		localRedirect(w, r, "../"+path.Base(upath))
		return
	}

	// ServeContent handles Last-Modified, If-Modified-Since, ranges and
	// the Content-Type from the file extension.
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *fileHandler) serveError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "404 page not found", http.StatusNotFound)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "403 Forbidden", http.StatusForbidden)
	default:
		h.logger.Error("open file", "path", r.URL.Path, "error", err)
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
	}
}

// localRedirect redirects relative to the request path, keeping the query.
func localRedirect(w http.ResponseWriter, r *http.Request, target string) {
	if q := r.URL.RawQuery; q != "" {
		target += "?" + q
	}
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusMovedPermanently)
}

var listingTemplate = template.Must(template.New("listing").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Index of {{.Path}}</title>
</head>
<body>
<h1>Index of {{.Path}}</h1>
<ul>
{{- if ne .Path "/"}}
<li><a href="../">../</a></li>
{{- end}}
{{- range .Entries}}
<li><a href="{{.Href}}">{{.Name}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

type listingEntry struct {
	Name string
	Href string
}

type listing struct {
	Path    string
	Entries []listingEntry
}

// serveListing renders the entries of dir sorted by name. The directory's
// modification time drives Last-Modified and conditional requests.
func (h *fileHandler) serveListing(w http.ResponseWriter, r *http.Request, upath string, dir http.File, modTime time.Time) {
	infos, err := dir.Readdir(-1)
	if err != nil {
		h.logger.Error("read directory", "path", upath, "error", err)
		http.Error(w, "Error reading directory", http.StatusInternalServerError)
		return
	}
	slices.SortFunc(infos, func(a, b fs.FileInfo) int {
		return strings.Compare(a.Name(), b.Name())
	})

	data := listing{Path: upath, Entries: make([]listingEntry, 0, len(infos))}
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() {
			name += "/"
		}
		// url.URL escapes the name and guards against names like "a:b"
		// being read as a scheme.
		href := (&url.URL{Path: name}).String()
		data.Entries = append(data.Entries, listingEntry{Name: name, Href: href})
	}

	var buf bytes.Buffer
	if err := listingTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("render listing", "path", upath, "error", err)
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "", modTime, bytes.NewReader(buf.Bytes()))
}

// hiddenFS hides every path with a segment that starts with a dot, such as
// .git/config or .env.
type hiddenFS struct {
	http.FileSystem
}

func isHidden(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func (fsys hiddenFS) Open(name string) (http.File, error) {
	if isHidden(name) {
		return nil, fs.ErrNotExist
	}
	f, err := fsys.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	return hiddenFile{f}, nil
}

// hiddenFile drops dot entries from directory reads.
type hiddenFile struct {
	http.File
}

func (f hiddenFile) Readdir(n int) ([]fs.FileInfo, error) {
	infos, err := f.File.Readdir(n)
	visible := infos[:0]
	for _, info := range infos {
		if !strings.HasPrefix(info.Name(), ".") {
			visible = append(visible, info)
		}
	}
	return visible, err
}
