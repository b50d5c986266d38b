package httpapi

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dashcast/dashcast/internal/manager"
)

// registerFileRoutes wires GET /hls/{id}/* to serve files out of the
// session's output sandbox. Path confinement is delegated entirely to the
// sandbox: ResolvePath rejects anything that would resolve outside it.
func registerFileRoutes(router chi.Router, mgr *manager.Manager, logger *slog.Logger) {
	router.Get("/hls/{id}/*", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		requested := chi.URLParam(r, "*")

		sandbox, ok := mgr.Sandbox(id)
		if !ok {
			http.NotFound(w, r)
			return
		}

		path, err := sandbox.ResolvePath(requested)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		info, err := sandbox.Stat(requested)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", contentType(path))
		http.ServeFile(w, r, path)
	})
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".m4s", ".mp4", ".ts":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
