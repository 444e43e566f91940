package server

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

// The board is a single static page that polls /api/storage.
//
//go:embed board
var boardDist embed.FS

var boardFS = func() fs.FS {
	sub, err := fs.Sub(boardDist, "board")
	if err != nil {
		panic(err)
	}
	return sub
}()

// boardHandler serves the embedded board. Unknown paths fall back to
// index.html.
func boardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		f, err := boardFS.Open(path)
		if err != nil {
			path = "index.html"
		} else {
			f.Close()
		}

		http.ServeFileFS(w, r, boardFS, path)
	}
}
