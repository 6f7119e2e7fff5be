package main

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web
var embeddedWeb embed.FS

// contentTypes mapuje příponu na MIME typ. Cokoliv jiného je text/plain.
var contentTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
	".csv":  "text/csv",
}

func contentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "text/plain"
}

// StaticFiles obsluhuje všechno, co nezachytí API routy.
type StaticFiles struct {
	fsys   fs.FS
	logger *slog.Logger
}

// NewStaticFiles servíruje STATIC_DIR, pokud je zadaný, jinak vestavěné UI.
func NewStaticFiles(dir string, logger *slog.Logger) (*StaticFiles, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, errors.New("STATIC_DIR není adresář: " + dir)
		}
		return &StaticFiles{fsys: os.DirFS(dir), logger: logger}, nil
	}
	sub, err := fs.Sub(embeddedWeb, "web")
	if err != nil {
		return nil, err
	}
	return &StaticFiles{fsys: sub, logger: logger}, nil
}

func (s *StaticFiles) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if strings.HasSuffix(r.URL.Path, "/") {
		name = path.Join(name, "index.html")
	}

	body, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		notFound(w)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(name))
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("Chyba při zápisu statického souboru", "path", name, "error", err)
	}
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("404: Not Found"))
}
