package web

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the preview routes. The root path redirects to the
// preview page. Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(r chi.Router, h *Handler) {
	staticFS, _ := fs.Sub(StaticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/preview", http.StatusFound)
	})
	r.Get("/preview", h.Preview)
}
