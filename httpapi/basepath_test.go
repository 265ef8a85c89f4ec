package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"nextvm", "/nextvm"},
		{"/term", "/term"},
		{"/term/", "/term"},
		{" //a/b// ", "/a/b"},
	}
	for _, tc := range cases {
		if got := normalizeBasePath(tc.in); got != tc.want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildBaseHref(t *testing.T) {
	cases := []struct {
		baseURL  string
		basePath string
		want     string
	}{
		{"", "", ""},
		{"", "/term", "/term/"},
		{"", "term", "/term/"},
		{"https://example.com", "", "https://example.com/"},
		{"https://example.com/", "term", "https://example.com/term/"},
		{"https://example.com/base", "/x", "https://example.com/base/x/"},
	}
	for _, tc := range cases {
		if got := buildBaseHref(tc.baseURL, tc.basePath); got != tc.want {
			t.Fatalf("buildBaseHref(%q, %q) = %q, want %q", tc.baseURL, tc.basePath, got, tc.want)
		}
	}
}

func TestMountBasePath(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	})
	handler := mountBasePath("/term", inner)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/term/api/sessions", nil))
	if rec.Body.String() != "/api/sessions" {
		t.Fatalf("expected prefix stripped, got %q", rec.Body.String())
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/term", nil))
	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/term/" {
		t.Fatalf("expected redirect to /term/, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside prefix, got %d", rec.Code)
	}
	if mountBasePath("", inner) == nil {
		t.Fatalf("expected handler for empty prefix")
	}
}

func TestApplyBaseHrefEscapes(t *testing.T) {
	page := []byte("<head>" + baseHrefPlaceholder + "</head>")
	if got := string(applyBaseHref(page, "")); got != "<head></head>" {
		t.Fatalf("expected placeholder removed, got %q", got)
	}
	got := string(applyBaseHref(page, `/a"b/`))
	if !strings.Contains(got, `<base href="/a&#34;b/" />`) {
		t.Fatalf("expected escaped href, got %q", got)
	}
}
