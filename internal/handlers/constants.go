package handlers

import "time"

const (
	ErrInvalidFormData     = "Invalid form data"
	ErrUnauthorized        = "Unauthorized"
	ErrForbidden           = "Forbidden"
	ErrNotFound            = "Not found"
	ErrInternalServerError = "Internal server error"

	flashCookieName = "flash"
	flashTTL        = time.Minute

	sseHeartbeat = 15 * time.Second

	adminRoute = "/admin"

	introTitle          = "Watch The Introductory Video"
	defaultSupportEmail = "support@example.com"
	legalUpdated        = "July 1, 2025"
)
