package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Shown when a project has no uploaded banner or the file is missing.
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M100 60c-22.1 0-40 17.9-40 40s17.9 40 40 40 40-17.9 40-40-17.9-40-40-40zm0 65c-13.8 0-25-11.2-25-25s11.2-25 25-25 25 11.2 25 25-11.2 25-25 25z" fill="#999"/><text x="100" y="170" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">PROJECT</text></svg>`

var bannerExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".svg":  true,
}

// StaticFileServer serves project banner images from dir. Requests for
// anything but an image file, or for a file that does not exist, get the
// placeholder so project cards never render a broken image.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Clean("/" + r.URL.Path)
		path := filepath.Join(dir, clean)

		ext := strings.ToLower(filepath.Ext(path))
		if bannerExtensions[ext] {
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				w.Header().Set("Cache-Control", "public, max-age=2592000")
				http.ServeFile(w, r, path)
				return
			}
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
