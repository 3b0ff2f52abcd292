// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newPeer(t *testing.T, h http.HandlerFunc) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{Branch: "main", Headers: map[string]string{"X-Repo": "demo"}}),
		strings.TrimPrefix(srv.URL, "http://")
}

func TestFetch_OK(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	c, host := newPeer(t, func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		if r.URL.Path != "/hooks/client/a.js" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte("export default () => 42"))
	})

	src, err := c.Fetch(t.Context(), host, "/hooks/client/a.js", map[string]string{"Authorization": "Bearer t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Body != "export default () => 42" {
		t.Errorf("Body = %q", src.Body)
	}
	if src.URL != "http://"+host+"/hooks/client/a.js" {
		t.Errorf("URL = %q", src.URL)
	}
	h := <-headers
	if h.Get(BranchHeader) != "main" || h.Get("X-Repo") != "demo" || h.Get("Authorization") != "Bearer t" {
		t.Errorf("unexpected request headers: %v", h)
	}
}

func TestFetch_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		contentType string
		wantStatus  int
		wantErr     error
	}{
		{name: "not found", status: http.StatusNotFound, contentType: "text/plain", wantStatus: 404, wantErr: ErrBadStatus},
		{name: "server error", status: http.StatusInternalServerError, wantStatus: 500, wantErr: ErrBadStatus},
		{name: "html fallback", status: http.StatusOK, contentType: "text/html; charset=utf-8", wantStatus: 200, wantErr: ErrHTMLResponse},
		{name: "xhtml", status: http.StatusOK, contentType: "application/xhtml+xml", wantStatus: 200, wantErr: ErrHTMLResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, host := newPeer(t, func(w http.ResponseWriter, _ *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("<html>nope</html>"))
			})

			src, err := c.Fetch(t.Context(), host, "/hooks/client/x.js", nil)
			if src != nil {
				t.Error("failed fetch must not return a source")
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %T: %v", err, err)
			}
			if fe.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", fe.Status, tt.wantStatus)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if !strings.Contains(err.Error(), "/hooks/client/x.js") {
				t.Errorf("error should name the URL: %v", err)
			}
		})
	}
}

func TestFetch_TransportError(t *testing.T) {
	t.Parallel()
	c := New(Options{})
	_, err := c.Fetch(t.Context(), "127.0.0.1:1", "/a.js", nil)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fe.Status != 0 {
		t.Errorf("Status = %d, want 0", fe.Status)
	}
}

func TestURL(t *testing.T) {
	t.Parallel()
	c := New(Options{Protocol: "https://"})
	if got := c.URL("peer.example", "/hooks/a.js"); got != "https://peer.example/hooks/a.js" {
		t.Errorf("URL = %q", got)
	}
}

func TestIsHTML(t *testing.T) {
	t.Parallel()
	for ct, want := range map[string]bool{
		"":                               false,
		"application/javascript":         false,
		"text/javascript; charset=utf-8": false,
		"TEXT/HTML":                      true,
		"text/html;;broken":              true,
	} {
		if got := isHTML(ct); got != want {
			t.Errorf("isHTML(%q) = %v, want %v", ct, got, want)
		}
	}
}
