package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"breakupguide/internal/models"
	"breakupguide/internal/repository"
	"breakupguide/internal/service"
)

const (
	adminRecentOrders = 50
	maxBackupUpload   = 10 << 20
)

// AdminHandler serves the database management pages for admin accounts
type AdminHandler struct {
	site          *Site
	backupService *service.BackupService
	orderRepo     *repository.OrderRepository
	logger        *log.Logger
}

func NewAdminHandler(site *Site, backupService *service.BackupService, orderRepo *repository.OrderRepository, logger *log.Logger) *AdminHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &AdminHandler{
		site:          site,
		backupService: backupService,
		orderRepo:     orderRepo,
		logger:        logger.With("component", "admin"),
	}
}

// ShowDashboard shows table counts and the most recent orders
func (h *AdminHandler) ShowDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.backupService.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to get database stats", "error", err)
		stats = &service.Stats{}
	}

	orders, err := h.orderRepo.All(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to list orders", err)
		return
	}
	// All is oldest first
	recent := make([]models.Order, 0, adminRecentOrders)
	for i := len(orders) - 1; i >= 0 && len(recent) < adminRecentOrders; i-- {
		recent = append(recent, orders[i])
	}

	h.site.render(w, "admin.tmpl", AdminViewData{
		Page:   h.site.Page(w, r, "Admin"),
		Stats:  stats,
		Orders: recent,
	})
}

// ExportDatabase streams a JSON backup as a file download
func (h *AdminHandler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	filename := fmt.Sprintf("breakupguide_backup_%s.json", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if _, err := h.backupService.Export(r.Context(), w); err != nil {
		// Headers may be gone already; the partial body is unusable either way
		h.logger.Error("failed to export database", "error", err)
		return
	}
	h.logger.Info("database exported", "admin", user.Email)
}

// ImportDatabase restores an uploaded backup, optionally clearing the
// database first
func (h *AdminHandler) ImportDatabase(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxBackupUpload); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("backup_file")
	if err != nil {
		redirectWithFlash(w, r, adminRoute, "Please select a backup file.")
		return
	}
	defer file.Close()

	clearData := r.FormValue("clear_data") == "true"
	if clearData {
		h.logger.Warn("admin requested database clear before import", "admin", user.Email)
		if err := h.backupService.Clear(r.Context()); err != nil {
			h.logger.Error("failed to clear database", "error", err)
			redirectWithFlash(w, r, adminRoute, "Failed to clear database: "+err.Error())
			return
		}
	}

	if err := h.backupService.Import(r.Context(), file); err != nil {
		h.logger.Error("failed to import database", "error", err)
		redirectWithFlash(w, r, adminRoute, "Failed to import database: "+err.Error())
		return
	}

	h.logger.Info("database imported", "admin", user.Email, "clear_data", clearData)
	if clearData {
		// Clearing removed every session, including this one
		redirectWithFlash(w, r, "/login", "Database imported. Please sign in again.")
		return
	}
	redirectWithFlash(w, r, adminRoute, "Database imported successfully.")
}
