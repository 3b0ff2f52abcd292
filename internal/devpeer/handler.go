// SPDX-License-Identifier: MPL-2.0

package devpeer

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/invowk/relayhook/internal/fetch"
)

const javaScriptType = "application/javascript; charset=utf-8"

// moduleExts are served as JavaScript.
var moduleExts = map[string]bool{
	".js": true, ".mjs": true, ".cjs": true,
	".jsx": true, ".ts": true, ".tsx": true, ".mts": true, ".cts": true,
}

// handler serves files below root.
type handler struct {
	root   *os.Root
	logger *log.Logger
}

// ContentType returns the type the peer answers name with.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if moduleExts[ext] {
		return javaScriptType
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// os.Root refuses to leave the directory; cleaning keeps names relative.
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}

	branch := Branch(r.Header.Get(fetch.BranchHeader))
	if branch != "" {
		if err := branch.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if info, err := h.root.Stat(string(branch)); err == nil && info.IsDir() {
			name = path.Join(string(branch), name)
		}
	}

	f, err := h.root.Open(name)
	if err != nil {
		h.notFound(w, r, name, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		h.notFound(w, r, name, err)
		return
	}

	w.Header().Set("Content-Type", ContentType(name))
	w.Header().Set("Cache-Control", "no-cache")
	h.logger.Debug("serve", "path", r.URL.Path, "file", name, "branch", string(branch))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// notFound answers plain text, never HTML, so a missing module is reported
// as a status error rather than mistaken for a page.
func (h *handler) notFound(w http.ResponseWriter, r *http.Request, name string, err error) {
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		h.logger.Warn("open failed", "file", name, "err", err)
	}
	h.logger.Debug("not found", "path", r.URL.Path)
	http.Error(w, "not found", http.StatusNotFound)
}
