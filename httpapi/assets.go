package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"io/fs"
	"net/http"
	"strings"
	"time"
)

//go:embed assets/*
var embeddedAssets embed.FS

var assetsFS = subAssets(embeddedAssets, "assets")

func subAssets(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return fsys
	}
	return sub
}

const baseHrefPlaceholder = "<!-- BASE_HREF -->"

// indexPage serves the UI document with the base href substituted once at
// construction. A missing document is reported on every request.
type indexPage struct {
	data    []byte
	modTime time.Time
	err     error
}

func newIndexPage(baseHref string) *indexPage {
	data, err := fs.ReadFile(assetsFS, "index.html")
	if err != nil {
		return &indexPage{err: err}
	}
	return &indexPage{data: applyBaseHref(data, baseHref), modTime: time.Now()}
}

func (p *indexPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMethodNotAllowed(w)
		return
	}
	if p.err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", p.modTime, bytes.NewReader(p.data))
}

func applyBaseHref(data []byte, baseHref string) []byte {
	replacement := ""
	if strings.TrimSpace(baseHref) != "" {
		replacement = fmt.Sprintf(`<base href="%s" />`, html.EscapeString(baseHref))
	}
	return bytes.ReplaceAll(data, []byte(baseHrefPlaceholder), []byte(replacement))
}
