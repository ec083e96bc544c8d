// Package web serves the built frontend bundle.
package web

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var notAllowed = "Method not allowed"

// Handler returns a handler serving the files of dir. Paths that do not name
// a file get index.html, so that the client side router can take over.
func Handler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, notAllowed, http.StatusMethodNotAllowed)
			return
		}
		name := path.Clean("/" + r.URL.Path)
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
		if err == nil && !info.IsDir() {
			if strings.HasPrefix(name, "/assets/") {
				// bundled assets carry a content hash in their name
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}
			files.ServeHTTP(w, r)
			return
		}
		if path.Ext(name) != "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
	})
}
