package serverapp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storecfg/internal/configrefresh"
	"storecfg/internal/logging"
	"storecfg/internal/render"
)

const reloadTimeout = 15 * time.Second

type pinger interface {
	PingContext(ctx context.Context) error
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// configHandler serves the active canonical store. ?format selects json or
// yaml and ?compact=true drops JSON indentation. The snapshot fingerprint is
// used as the ETag.
func configHandler(manager *configrefresh.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		snapshot := manager.CurrentSnapshot()
		if snapshot == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not ready"})
			return
		}

		query := r.URL.Query()
		format, err := render.ParseFormat(query.Get("format"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		compact, _ := strconv.ParseBool(query.Get("compact"))

		etag := strconv.Quote(snapshot.Fingerprint)
		w.Header().Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		body, err := render.Marshal(snapshot.Store, format, render.Options{Compact: compact})
		if err != nil {
			logging.FromContext(r.Context()).Error("failed to render store", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to render store"})
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Last-Modified", snapshot.BuiltAt.UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(body)
		}
	}
}

// etagMatches applies the weak comparison If-None-Match calls for: the header
// is "*" or a comma-separated list of tags, any of which may carry W/.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

type healthStore struct {
	Fingerprint string `json:"fingerprint,omitempty"`
	BuiltAt     string `json:"builtAt,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

type healthResponse struct {
	Status  string      `json:"status"`
	Store   healthStore `json:"store"`
	Indexer string      `json:"indexer,omitempty"`
}

// healthHandler reports unhealthy when no store has resolved or the indexer,
// when configured, does not answer a ping. A failed reload leaves the service
// healthy but surfaces the error.
func healthHandler(manager *configrefresh.Manager, db pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		resp := healthResponse{Status: "healthy"}
		status := http.StatusOK

		if snapshot := manager.CurrentSnapshot(); snapshot != nil {
			resp.Store.Fingerprint = snapshot.Fingerprint
			resp.Store.BuiltAt = snapshot.BuiltAt.UTC().Format(time.RFC3339)
		} else {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
		if err := manager.LastError(); err != nil {
			resp.Store.LastError = err.Error()
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				reqLogger.Error("health check failed",
					slog.String("check", "indexer"),
					slog.String("error", err.Error()),
				)
				resp.Status = "unhealthy"
				resp.Indexer = "failed"
				status = http.StatusServiceUnavailable
			} else {
				resp.Indexer = "ok"
			}
		}

		writeJSON(w, status, resp)
	}
}

// reloadHandler forces a re-read of the input document.
func reloadHandler(manager *configrefresh.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
		defer cancel()

		changed, err := manager.RefreshNow(ctx)
		if err != nil {
			problems := configrefresh.Problems(err)
			messages := make([]string, len(problems))
			for i, p := range problems {
				messages[i] = p.Error()
			}
			reqLogger.Warn("store reload failed", slog.Int("problems", len(problems)))
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"status": "error", "problems": messages})
			return
		}

		reqLogger.Info("store reload requested", slog.Bool("changed", changed))
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "changed": changed})
	}
}
