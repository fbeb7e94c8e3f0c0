package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/ataccountancy/intake-portal/internal/httpx"
	"github.com/ataccountancy/intake-portal/internal/models"
	"github.com/ataccountancy/intake-portal/internal/status"
)

// AdminHandler serves the staff dashboard API. Every route is mounted behind
// the admin gate; handlers assume an authorized caller.
type AdminHandler struct{ DB *gorm.DB }

func NewAdminHandler(db *gorm.DB) *AdminHandler { return &AdminHandler{DB: db} }

// ListApplications: GET /api/admin/applications — newest first.
func (h *AdminHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	var apps []models.Application
	if err := h.DB.Order("created_at desc, id desc").Find(&apps).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_applications", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": apps, "total": len(apps)})
}

// ListCompanies: GET /api/admin/companies — nested submissions with their
// directors and PSCs, newest first.
func (h *AdminHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	var companies []models.Company
	err := h.DB.Preload("Directors").Preload("PSCs").
		Order("created_at desc, id desc").Find(&companies).Error
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_companies", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": companies, "total": len(companies)})
}

// UpdateStatus: POST /api/admin/applications/{id}/status — single-record,
// single-field update checked against the transition table. Concurrent edits
// to the same record are last-writer-wins.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	target, err := status.Parse(req.Status)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_status", map[string]string{"status": req.Status})
		return
	}
	var app models.Application
	if err := h.DB.First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_application", nil)
		return
	}
	current, err := status.Parse(app.Status)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "corrupt_status", map[string]string{"status": app.Status})
		return
	}
	if !current.CanTransitionTo(target) {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "illegal_transition",
			map[string]string{"from": current.String(), "to": target.String()})
		return
	}
	if err := h.DB.Model(&app).Update("status", target.String()).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_status", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": app.ID, "status": target.String()})
}

// BulkDelete: POST /api/admin/applications/delete — removes all selected
// rows in one request. Irreversible; the client must set confirm explicitly.
// A partial outcome is reported as one aggregate error without reconciling
// which subset succeeded.
func (h *AdminHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs     []uint `json:"ids"`
		Confirm bool   `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if !req.Confirm {
		httpx.JSONError(w, http.StatusBadRequest, "confirmation_required", nil)
		return
	}
	if len(req.IDs) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "empty_selection", nil)
		return
	}
	res := h.DB.Where("id IN ?", req.IDs).Delete(&models.Application{})
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "delete_failed", nil)
		return
	}
	if res.RowsAffected != int64(len(req.IDs)) {
		httpx.JSONError(w, http.StatusConflict, "partial_delete",
			map[string]int64{"requested": int64(len(req.IDs)), "deleted": res.RowsAffected})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"deleted": res.RowsAffected})
}
