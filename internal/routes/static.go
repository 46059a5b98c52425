package routes

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// StaticHandler serves the exported dashboard from dir. Extensionless
// paths such as /versions resolve to versions.html when that file exists.
func StaticHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean("/" + r.URL.Path)
		if p != "/" && path.Ext(p) == "" {
			page := filepath.Join(dir, filepath.FromSlash(p)+".html")
			if info, err := os.Stat(page); err == nil && !info.IsDir() {
				r2 := r.Clone(r.Context())
				r2.URL.Path = p + ".html"
				files.ServeHTTP(w, r2)
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}
