package handlers

import (
	"breakupguide/internal/checkout"
	"breakupguide/internal/models"
	"breakupguide/internal/service"
)

// Page holds the fields the shared header and footer read
type Page struct {
	Title     string
	User      *models.User
	Settings  models.Settings
	CSRFToken string
	Flash     string
}

type HomeViewData struct {
	Page
	Resume    *models.Chapter
	Started   bool
	Completed int
	Total     int
	Intro     *PlayerView
}

type ChapterRow struct {
	Chapter   *models.Chapter
	Answered  int
	Total     int
	Percent   int
	Completed bool
}

type ChaptersViewData struct {
	Page
	Chapters []ChapterRow
}

type ChapterViewData struct {
	Page
	Chapter     *models.Chapter
	Question    *models.Question
	Number      int
	Total       int
	Percent     int
	CanBack     bool
	Selected    []models.Item
	BundlePrice string
	Currency    string
}

type BooksViewData struct {
	Page
	Books    []models.Item
	Currency string
}

// PlayerView is an embedded video ready to render
type PlayerView struct {
	Title     string
	VideoID   string
	EmbedURL  string
	Thumbnail string
}

type FreebiesViewData struct {
	Page
	Items  []models.Item
	Player *PlayerView
}

type CheckoutViewData struct {
	Page
	Cart      *checkout.Cart
	Providers []string
}

type LibraryViewData struct {
	Page
	Entries    []models.LibraryEntry
	Categories []string
	Query      string
	Filter     string
	Player     *PlayerView
}

type SettingsViewData struct {
	Page
	Colors []models.Color
}

type LoginViewData struct {
	Page
	OAuthProviders []OAuthProviderView
	Error          string
	Email          string
	Next           string
}

type RegisterViewData struct {
	Page
	OAuthProviders []OAuthProviderView
	Error          string
	Email          string
	Name           string
	Next           string
}

type ErrorViewData struct {
	Page
	Heading  string
	Message  string
	RetryURL string
}

type AdminViewData struct {
	Page
	Stats  *service.Stats
	Orders []models.Order
}

type LegalViewData struct {
	Page
	Updated      string
	SupportEmail string
}
