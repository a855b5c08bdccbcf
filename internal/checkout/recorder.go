package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"breakupguide/internal/library"
	"breakupguide/internal/models"
)

// Recorder grants an order's items to its owner
type Recorder struct {
	library *library.Service
	now     func() time.Time
	newID   func() string
}

func NewRecorder(lib *library.Service) *Recorder {
	return &Recorder{library: lib, now: time.Now, newID: uuid.NewString}
}

// Entries builds one library entry per ordered item
func (r *Recorder) Entries(order *models.Order) []models.LibraryEntry {
	chapterRef := order.ChapterID
	if chapterRef == "" {
		chapterRef = models.ChapterRefBundle
	}
	at := r.now()
	entries := make([]models.LibraryEntry, 0, len(order.Items))
	for _, item := range order.Items {
		entries = append(entries, models.NewLibraryEntry(r.newID(), item, chapterRef, order.ID, at))
	}
	return entries
}

// Record appends the order's entries. Recording the same order twice adds nothing.
func (r *Recorder) Record(ctx context.Context, order *models.Order) ([]models.LibraryEntry, error) {
	done, err := r.library.Recorded(ctx, order.Owner, order.ID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, nil
	}
	entries := r.Entries(order)
	if err := r.library.Record(ctx, order.Owner, entries); err != nil {
		return nil, err
	}
	return entries, nil
}
