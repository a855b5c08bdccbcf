package handlers

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"breakupguide/internal/catalog"
	"breakupguide/internal/checkout"
	"breakupguide/internal/models"
	"breakupguide/internal/progression"
	"breakupguide/internal/video"
)

// FunnelHandler serves the chapter questionnaire and the browsing pages
type FunnelHandler struct {
	site     *Site
	catalog  *catalog.Catalog
	registry *progression.Registry
	mode     progression.SelectionMode
	price    int64
	currency string
	support  string
	intro    *PlayerView
	logger   *log.Logger
}

// FunnelOptions carry the pricing shown on chapter summaries, the contact
// address on the legal pages and the video on the home page
type FunnelOptions struct {
	Mode             progression.SelectionMode
	BundlePriceCents int64
	Currency         string
	SupportEmail     string
	IntroVideoURL    string
}

func NewFunnelHandler(site *Site, cat *catalog.Catalog, registry *progression.Registry, opts FunnelOptions, logger *log.Logger) *FunnelHandler {
	if logger == nil {
		logger = log.Default()
	}
	if opts.BundlePriceCents <= 0 {
		opts.BundlePriceCents = checkout.DefaultBundlePriceCents
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.SupportEmail == "" {
		opts.SupportEmail = defaultSupportEmail
	}
	h := &FunnelHandler{
		site:     site,
		catalog:  cat,
		registry: registry,
		mode:     opts.Mode,
		price:    opts.BundlePriceCents,
		currency: opts.Currency,
		support:  opts.SupportEmail,
		logger:   logger.With("component", "funnel"),
	}
	if opts.IntroVideoURL != "" {
		h.intro = newPlayer(opts.IntroVideoURL, introTitle, false, h.logger)
	}
	return h
}

// Home shows the landing page with a resume link
func (h *FunnelHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.site.renderError(w, r, http.StatusNotFound, "Page not found", "We couldn't find that page.", "/")
		return
	}

	progress, err := h.site.State(r).LoadProgress(r.Context())
	if err != nil {
		h.logger.Warn("failed to load progress", "error", err)
		progress = models.ProgressMap{}
	}

	completed := 0
	for _, ch := range h.catalog.Chapters() {
		if progress.Completed(ch) {
			completed++
		}
	}

	resume := h.catalog.ResumeChapter(progress)
	data := HomeViewData{
		Page:      h.site.Page(w, r, "Home"),
		Resume:    resume,
		Completed: completed,
		Total:     len(h.catalog.Chapters()),
		Intro:     h.intro,
	}
	if resume != nil {
		data.Started = progress.Index(resume.ID) > 0
	}
	h.site.render(w, "home.tmpl", data)
}

// Chapters lists every chapter with its completion
func (h *FunnelHandler) Chapters(w http.ResponseWriter, r *http.Request) {
	progress, err := h.site.State(r).LoadProgress(r.Context())
	if err != nil {
		h.logger.Warn("failed to load progress", "error", err)
		progress = models.ProgressMap{}
	}

	rows := make([]ChapterRow, 0, len(h.catalog.Chapters()))
	for _, ch := range h.catalog.Chapters() {
		answered := progress.Index(ch.ID)
		if answered > ch.QuestionCount() {
			answered = ch.QuestionCount()
		}
		rows = append(rows, ChapterRow{
			Chapter:   ch,
			Answered:  answered,
			Total:     ch.QuestionCount(),
			Percent:   progress.Percent(ch),
			Completed: progress.Completed(ch),
		})
	}

	h.site.render(w, "chapters.tmpl", ChaptersViewData{
		Page:     h.site.Page(w, r, "Chapters"),
		Chapters: rows,
	})
}

// withSession runs fn against the visitor's session for the chapter in the
// path. Unknown chapters are sent back to the chapter list.
func (h *FunnelHandler) withSession(w http.ResponseWriter, r *http.Request, fn func(*progression.Session) error) (string, bool) {
	chapterID := r.PathValue("id")
	state := h.site.State(r)
	start := func() (*progression.Session, error) {
		return progression.Start(r.Context(), h.catalog, state, chapterID, progression.Options{Mode: h.mode, Logger: h.logger})
	}

	err := h.registry.Do(VisitorID(r.Context()), chapterID, start, func(s *progression.Session, err error) error {
		if err != nil {
			return err
		}
		return fn(s)
	})
	switch {
	case err == nil:
		return chapterID, true
	case errors.Is(err, progression.ErrChapterNotFound):
		redirectWithFlash(w, r, progression.ChaptersRoute, "That chapter doesn't exist.")
	case errors.Is(err, progression.ErrInvalidTransition):
		http.Redirect(w, r, "/chapters/"+chapterID, http.StatusSeeOther)
	case errors.Is(err, progression.ErrEmptySelection):
		redirectWithFlash(w, r, "/chapters/"+chapterID, "Nothing was selected in this chapter.")
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "chapter operation failed", err)
	}
	return chapterID, false
}

// Chapter shows the current question or the chapter summary
func (h *FunnelHandler) Chapter(w http.ResponseWriter, r *http.Request) {
	var data ChapterViewData
	_, ok := h.withSession(w, r, func(s *progression.Session) error {
		ch := s.Chapter()
		total := ch.QuestionCount()
		data = ChapterViewData{
			Chapter:     ch,
			Question:    s.Question(),
			Number:      s.Index() + 1,
			Total:       total,
			CanBack:     s.Question() != nil && s.Index() > 0,
			Selected:    s.Selected(),
			BundlePrice: models.FormatAmount(h.price),
			Currency:    h.currency,
		}
		if total > 0 {
			data.Percent = s.Index() * 100 / total
		} else {
			data.Percent = 100
		}
		return nil
	})
	if !ok {
		return
	}
	data.Page = h.site.Page(w, r, data.Chapter.Title)
	h.site.render(w, "chapter.tmpl", data)
}

// Answer records a yes/no answer
func (h *FunnelHandler) Answer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "failed to parse answer form", err)
		return
	}
	var yes bool
	switch r.FormValue("answer") {
	case "yes":
		yes = true
	case "no":
	default:
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	chapterID, ok := h.withSession(w, r, func(s *progression.Session) error {
		return s.Answer(r.Context(), yes)
	})
	if ok {
		http.Redirect(w, r, "/chapters/"+chapterID, http.StatusSeeOther)
	}
}

// Back returns to the previous question
func (h *FunnelHandler) Back(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := h.withSession(w, r, func(s *progression.Session) error {
		return s.Back(r.Context())
	})
	if ok {
		http.Redirect(w, r, "/chapters/"+chapterID, http.StatusSeeOther)
	}
}

// Confirm stages the selection as the checkout bundle
func (h *FunnelHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var target string
	chapterID, ok := h.withSession(w, r, func(s *progression.Session) error {
		var err error
		target, err = s.ConfirmPurchase(r.Context(), checkout.NewHandoff(h.site.State(r)))
		return err
	})
	if !ok {
		return
	}
	h.registry.Forget(VisitorID(r.Context()), chapterID)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Skip drops the selection and returns to the chapter list
func (h *FunnelHandler) Skip(w http.ResponseWriter, r *http.Request) {
	var target string
	chapterID, ok := h.withSession(w, r, func(s *progression.Session) error {
		target = s.Skip()
		return nil
	})
	if !ok {
		return
	}
	h.registry.Forget(VisitorID(r.Context()), chapterID)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Restart clears the chapter's resume point so it begins at question one
func (h *FunnelHandler) Restart(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("id")
	if _, err := h.catalog.Chapter(chapterID); err != nil {
		redirectWithFlash(w, r, progression.ChaptersRoute, "That chapter doesn't exist.")
		return
	}

	state := h.site.State(r)
	progress, err := state.LoadProgress(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to load progress", err)
		return
	}
	progress = progress.Clone()
	delete(progress, chapterID)
	if err := state.SaveProgress(r.Context(), progress); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to reset progress", err)
		return
	}

	h.registry.Forget(VisitorID(r.Context()), chapterID)
	http.Redirect(w, r, "/chapters/"+chapterID, http.StatusSeeOther)
}

// Books lists the titles that can be bought one at a time
func (h *FunnelHandler) Books(w http.ResponseWriter, r *http.Request) {
	h.site.render(w, "books.tmpl", BooksViewData{
		Page:     h.site.Page(w, r, "Audio-books"),
		Books:    h.catalog.Books(),
		Currency: h.currency,
	})
}

// Freebies lists the free videos and plays the one named by ?play=
func (h *FunnelHandler) Freebies(w http.ResponseWriter, r *http.Request) {
	items := h.catalog.Freebies()
	data := FreebiesViewData{Items: items}

	if id := r.URL.Query().Get("play"); id != "" {
		for _, it := range items {
			if it.ID == id {
				data.Player = newPlayer(it.VideoURL, it.Title, true, h.logger)
				break
			}
		}
	}

	data.Page = h.site.Page(w, r, "Freebies")
	h.site.render(w, "freebies.tmpl", data)
}

// ShowSettings renders the preferences form
func (h *FunnelHandler) ShowSettings(w http.ResponseWriter, r *http.Request) {
	h.site.render(w, "settings.tmpl", SettingsViewData{
		Page:   h.site.Page(w, r, "Settings"),
		Colors: models.Colors(),
	})
}

// SaveSettings stores the preferences form
func (h *FunnelHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "failed to parse settings form", err)
		return
	}

	settings := models.DefaultSettings()
	settings.SoundEnabled = r.FormValue("sound") == "on"
	if c := models.Color(r.FormValue("color")); c.Valid() {
		settings.PrimaryColor = c
	}

	if err := h.site.State(r).SaveSettings(r.Context(), settings); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to save settings", err)
		return
	}
	redirectWithFlash(w, r, "/settings", "Settings saved.")
}

// Terms shows the terms and conditions
func (h *FunnelHandler) Terms(w http.ResponseWriter, r *http.Request) {
	h.site.render(w, "terms.tmpl", h.legal(w, r, "Terms & Conditions"))
}

// Privacy shows the privacy policy
func (h *FunnelHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	h.site.render(w, "privacy.tmpl", h.legal(w, r, "Privacy Policy"))
}

func (h *FunnelHandler) legal(w http.ResponseWriter, r *http.Request, title string) LegalViewData {
	return LegalViewData{
		Page:         h.site.Page(w, r, title),
		Updated:      legalUpdated,
		SupportEmail: h.support,
	}
}

// newPlayer builds the player view for a video URL. Unplayable URLs are
// logged and produce no player.
func newPlayer(rawURL, title string, autoplay bool, logger *log.Logger) *PlayerView {
	embed, err := video.New(rawURL, title)
	if err != nil {
		logger.Warn("unplayable video", "url", rawURL, "error", err)
		return nil
	}
	return &PlayerView{
		Title:     embed.Title,
		VideoID:   embed.VideoID,
		EmbedURL:  embed.EmbedURL(video.PlayerOptions{Autoplay: autoplay}),
		Thumbnail: embed.ThumbnailURL(),
	}
}
