package httpapi

import (
	"net/http"
	"strings"
)

// normalizeBasePath returns "" for the root or a path with one leading slash
// and no trailing slash.
func normalizeBasePath(value string) string {
	path := strings.Trim(strings.TrimSpace(value), "/")
	if path == "" {
		return ""
	}
	return "/" + path
}

// buildBaseHref joins the public base URL and the mount path into the href
// injected into the UI document. Relative API paths in the UI resolve
// against it.
func buildBaseHref(baseURL, basePath string) string {
	href := strings.TrimRight(strings.TrimSpace(baseURL), "/") + normalizeBasePath(basePath)
	if href == "" {
		return ""
	}
	return href + "/"
}

// mountBasePath serves handler under prefix. The bare prefix redirects to
// prefix + "/" and anything outside it is not found.
func mountBasePath(prefix string, handler http.Handler) http.Handler {
	if prefix == "" {
		return handler
	}
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}
