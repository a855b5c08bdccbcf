package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"breakupguide/internal/library"
)

// LibraryHandler shows purchased titles and streams new ones as they are recorded
type LibraryHandler struct {
	site    *Site
	library *library.Service
	logger  *log.Logger
}

func NewLibraryHandler(site *Site, lib *library.Service, logger *log.Logger) *LibraryHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &LibraryHandler{
		site:    site,
		library: lib,
		logger:  logger.With("component", "library"),
	}
}

// Show lists the signed-in user's titles, filtered by ?q= and ?filter=,
// and plays the one named by ?entry=
func (h *LibraryHandler) Show(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	owner := user.LibraryOwner()

	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	filter := q.Get("filter")
	if filter == "" {
		filter = library.FilterAll
	}

	all, err := h.library.All(r.Context(), owner)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to load library", err)
		return
	}

	data := LibraryViewData{
		Entries:    library.Filter(all, query, filter),
		Categories: library.Categories(all),
		Query:      query,
		Filter:     filter,
	}

	if id := q.Get("entry"); id != "" {
		entry, err := h.library.Entry(r.Context(), owner, id)
		switch {
		case err == nil:
			data.Player = newPlayer(entry.VideoURL, entry.BookTitle, true, h.logger)
		case errors.Is(err, library.ErrEntryNotFound):
			h.logger.Debug("library entry not found", "entry", id)
		default:
			h.logger.Warn("failed to load library entry", "entry", id, "error", err)
		}
	}

	data.Page = h.site.Page(w, r, "Library")
	h.site.render(w, "library.tmpl", data)
}

// Events streams the user's new library entries as server-sent events
func (h *LibraryHandler) Events(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	events, cancel, err := h.library.Subscribe(r.Context(), user.LibraryOwner())
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Library updates unavailable", "failed to subscribe to library updates", err)
		return
	}
	defer cancel()

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("streaming not supported", "error", err)
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("failed to encode library event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
