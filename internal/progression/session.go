// Package progression drives a visitor through one chapter: it presents the
// questions in order, turns yes/no answers into a selection of books, and
// records the resume point after every answer.
package progression

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"breakupguide/internal/catalog"
	"breakupguide/internal/models"
)

// State is the position of a session in its lifecycle
type State int

const (
	StateLoading State = iota
	StatePresenting
	StateSummary
	StateNotFound
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePresenting:
		return "presenting"
	case StateSummary:
		return "summary"
	case StateNotFound:
		return "not_found"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ChaptersRoute is where Skip sends the visitor
const ChaptersRoute = "/chapters"

var (
	ErrChapterNotFound   = catalog.ErrChapterNotFound
	ErrEmptySelection    = errors.New("no books selected")
	ErrInvalidTransition = errors.New("operation not allowed in current state")
)

// ChapterSource looks chapters up by ID
type ChapterSource interface {
	Chapter(id string) (*models.Chapter, error)
}

// ProgressStore persists the per-chapter resume index
type ProgressStore interface {
	LoadProgress(ctx context.Context) (models.ProgressMap, error)
	SaveProgress(ctx context.Context, p models.ProgressMap) error
}

// Handoff stages a confirmed selection for checkout and returns where to go next
type Handoff interface {
	Handoff(ctx context.Context, chapterID string, items []models.Item) (string, error)
}

// Options configure a session
type Options struct {
	Mode   SelectionMode
	Logger *log.Logger
}

// Session is one visit to one chapter. It is not safe for concurrent use;
// Registry serializes access per visitor and chapter.
type Session struct {
	chapterID string
	chapter   *models.Chapter
	store     ProgressStore
	mode      SelectionMode
	logger    *log.Logger

	state    State
	index    int
	selected []models.Item
}

// Start looks the chapter up and positions the session at the stored resume
// point. An unknown chapter returns ErrChapterNotFound together with a
// session parked in StateNotFound. Accumulated selections are never
// reconstructed: a resumed session always starts with an empty selection.
func Start(ctx context.Context, chapters ChapterSource, store ProgressStore, chapterID string, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Session{
		chapterID: chapterID,
		store:     store,
		mode:      opts.Mode,
		logger:    logger.With("chapter", chapterID),
		state:     StateLoading,
		selected:  []models.Item{},
	}
	if s.mode == "" {
		s.mode = ModeToggle
	}

	ch, err := chapters.Chapter(chapterID)
	if err != nil || ch == nil {
		s.state = StateNotFound
		return s, fmt.Errorf("%w: %s", ErrChapterNotFound, chapterID)
	}
	s.chapter = ch

	progress, err := store.LoadProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	idx := progress.Index(chapterID)
	if idx < 0 {
		idx = 0
	}
	if idx >= ch.QuestionCount() {
		s.state = StateSummary
		s.index = ch.QuestionCount()
		return s, nil
	}
	s.state = StatePresenting
	s.index = idx
	return s, nil
}

// Answer applies the answer to the current question, persists the new
// resume index and only then advances. When the save fails the session is
// left exactly as it was.
func (s *Session) Answer(ctx context.Context, yes bool) error {
	if s.state != StatePresenting {
		return fmt.Errorf("answer in %s: %w", s.state, ErrInvalidTransition)
	}

	q := &s.chapter.Questions[s.index]
	next := s.mode.apply(s.selected, q.Items, yes)

	if err := s.saveIndex(ctx, s.index+1); err != nil {
		return err
	}

	s.selected = next
	s.index++
	if s.index >= s.chapter.QuestionCount() {
		s.state = StateSummary
		s.logger.Debug("chapter complete", "selected", len(s.selected))
	}
	return nil
}

// Back returns to the previous question. The selection is kept as is.
func (s *Session) Back(ctx context.Context) error {
	if s.state != StatePresenting || s.index == 0 {
		return fmt.Errorf("back in %s at %d: %w", s.state, s.index, ErrInvalidTransition)
	}
	if err := s.saveIndex(ctx, s.index-1); err != nil {
		return err
	}
	s.index--
	return nil
}

func (s *Session) saveIndex(ctx context.Context, idx int) error {
	progress, err := s.store.LoadProgress(ctx)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	progress = progress.Clone()
	progress[s.chapterID] = idx
	if err := s.store.SaveProgress(ctx, progress); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// ConfirmPurchase hands the selection to checkout and returns the redirect
func (s *Session) ConfirmPurchase(ctx context.Context, h Handoff) (string, error) {
	if s.state != StateSummary {
		return "", fmt.Errorf("confirm in %s: %w", s.state, ErrInvalidTransition)
	}
	if len(s.selected) == 0 {
		return "", ErrEmptySelection
	}
	return h.Handoff(ctx, s.chapterID, s.Selected())
}

// Skip discards the selection and returns the chapter list route
func (s *Session) Skip() string {
	s.selected = []models.Item{}
	return ChaptersRoute
}

func (s *Session) State() State             { return s.state }
func (s *Session) ChapterID() string        { return s.chapterID }
func (s *Session) Chapter() *models.Chapter { return s.chapter }
func (s *Session) Mode() SelectionMode      { return s.mode }

// Index is the 0-based position of the current question
func (s *Session) Index() int { return s.index }

// Question returns the question being presented, or nil outside StatePresenting
func (s *Session) Question() *models.Question {
	if s.state != StatePresenting {
		return nil
	}
	return &s.chapter.Questions[s.index]
}

// Selected returns a copy of the current selection
func (s *Session) Selected() []models.Item {
	out := make([]models.Item, len(s.selected))
	copy(out, s.selected)
	return out
}
