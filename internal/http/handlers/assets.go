package handlers

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

var assetContentTypes = map[string]string{
	".webp": "image/webp",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Asset serves stored artifacts under the static mount. Keys carry enough
// entropy that the endpoint stays unauthenticated, matching the hosted
// object-store behavior it replaces.
func (a *App) Asset(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimLeft(chi.URLParam(r, "*"), "/")
	if key == "" {
		http.NotFound(w, r)
		return
	}
	data, err := a.Store.Read(r.Context(), key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if ct, ok := assetContentTypes[strings.ToLower(path.Ext(key))]; ok {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}
