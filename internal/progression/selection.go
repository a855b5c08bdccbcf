package progression

import (
	"fmt"

	"breakupguide/internal/models"
)

// SelectionMode decides how answers change the selection
type SelectionMode string

const (
	// ModeToggle: yes adds the question's books that are not already
	// selected, no removes them. The selection never holds duplicates.
	ModeToggle SelectionMode = "toggle"
	// ModeAccumulate: yes appends every book of the question, duplicates
	// included; no leaves the selection unchanged.
	ModeAccumulate SelectionMode = "accumulate"
)

// ParseSelectionMode validates a configured mode. Empty means ModeToggle.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch SelectionMode(s) {
	case "", ModeToggle:
		return ModeToggle, nil
	case ModeAccumulate:
		return ModeAccumulate, nil
	}
	return "", fmt.Errorf("unknown selection mode %q", s)
}

// apply returns the selection after answering a question granting items.
// selected is never modified.
func (m SelectionMode) apply(selected, items []models.Item, yes bool) []models.Item {
	out := make([]models.Item, len(selected), len(selected)+len(items))
	copy(out, selected)

	if len(items) == 0 {
		return out
	}

	switch {
	case m == ModeAccumulate && yes:
		return append(out, items...)
	case m == ModeAccumulate:
		return out
	case yes:
		for _, it := range items {
			if !models.ContainsItem(out, it.ID) {
				out = append(out, it)
			}
		}
		return out
	default:
		kept := out[:0]
		for _, it := range out {
			if !models.ContainsItem(items, it.ID) {
				kept = append(kept, it)
			}
		}
		return kept
	}
}
