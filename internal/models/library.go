package models

import (
	"strconv"
	"time"
)

// Chapter references used for purchases that did not come from a chapter bundle
const (
	ChapterRefBundle = "current"
	ChapterRefSingle = "single"
)

// LibraryEntry is a purchased title. Entries are created at checkout and never updated.
type LibraryEntry struct {
	ID          string    `json:"id"`
	BookTitle   string    `json:"bookTitle"`
	ChapterID   string    `json:"chapterId"`
	VideoURL    string    `json:"videoUrl"`
	PurchasedAt time.Time `json:"purchasedAt"`
	Thumbnail   string    `json:"thumbnail"`
	OrderID     string    `json:"orderId,omitempty"`
}

// NewLibraryEntry builds the record appended to a library for a purchased item
func NewLibraryEntry(id string, item Item, chapterID, orderID string, at time.Time) LibraryEntry {
	return LibraryEntry{
		ID:          id,
		BookTitle:   item.Title,
		ChapterID:   chapterID,
		VideoURL:    item.VideoURL,
		PurchasedAt: at.UTC(),
		Thumbnail:   item.Thumbnail,
		OrderID:     orderID,
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
