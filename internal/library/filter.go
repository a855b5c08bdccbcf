package library

import (
	"sort"
	"strings"

	"breakupguide/internal/models"
)

// Filter values understood by Filter besides a chapter ID
const (
	FilterAll    = "all"
	FilterRecent = "recent"
)

// Filter returns the entries whose title contains query (case-insensitive),
// narrowed by filter: "all", "recent" (newest first), or a chapter ID.
// The input slice is never modified.
func Filter(entries []models.LibraryEntry, query, filter string) []models.LibraryEntry {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]models.LibraryEntry, 0, len(entries))
	for _, e := range entries {
		if q != "" && !strings.Contains(strings.ToLower(e.BookTitle), q) {
			continue
		}
		switch filter {
		case "", FilterAll, FilterRecent:
		default:
			if e.ChapterID != filter {
				continue
			}
		}
		out = append(out, e)
	}

	if filter == FilterRecent {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].PurchasedAt.After(out[j].PurchasedAt)
		})
	}
	return out
}

// Categories lists the distinct chapter references in first-seen order
func Categories(entries []models.LibraryEntry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.ChapterID != "" && !seen[e.ChapterID] {
			seen[e.ChapterID] = true
			out = append(out, e.ChapterID)
		}
	}
	return out
}
