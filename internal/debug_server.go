package internal

import (
	"embed"
	"fmt"
	"group-chat/infrastructure/storage"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultInspectLimit = 500

type StatsProvider func() map[string]any

type PageData struct {
	Prefix   string
	Prefixes []string
	Items    []storage.Entry
	Stats    map[string]any
	Error    string
}

// NewDebugServer serves a read-only HTML view of the Badger keys under endpoint.
// The caller owns the returned server: ListenAndServe it and Shutdown it.
func NewDebugServer(db *badger.DB, port int, endpoint string, statsProvider StatsProvider, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = storage.Prefixes[0]
		}
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultInspectLimit
		}

		data := PageData{
			Prefix:   prefix,
			Prefixes: storage.Prefixes,
			Stats:    make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		data.Items, err = storage.Scan(r.Context(), db, prefix, limit)
		if err != nil {
			log.Warn("Debug scan failed", "prefix", prefix, "error", err)
			data.Error = err.Error()
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			log.Warn("Debug page rendering failed", "error", err)
		}
	})

	return &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
