package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ataccountancy/intake-portal/internal/apperr"
	"github.com/ataccountancy/intake-portal/internal/httpx"
	"github.com/ataccountancy/intake-portal/internal/services"
)

// maxUploadBytes bounds one multipart submission, documents included.
// Enforced with MaxBytesReader: an oversized body fails parsing instead of
// spooling to disk and being read back truncated.
const maxUploadBytes = 20 << 20

// ApplyHandler receives public intake submissions. No authentication: the
// form is applicant-facing.
type ApplyHandler struct {
	Svc *services.SubmissionService
}

func NewApplyHandler(svc *services.SubmissionService) *ApplyHandler {
	return &ApplyHandler{Svc: svc}
}

// CreateApplication: POST /api/applications — multipart form with scalar
// fields plus "passport" and "bill" file parts.
func (h *ApplyHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.JSONError(w, requestErrorStatus(err), "invalid_form", nil)
		return
	}
	form := services.ApplicationForm{
		FullName:    r.FormValue("full_name"),
		Email:       r.FormValue("email"),
		Phone:       r.FormValue("phone"),
		Address:     r.FormValue("address"),
		CompanyName: r.FormValue("company_name"),
		Notes:       r.FormValue("notes"),
	}
	var err error
	if form.Passport, err = fileInput(r, "passport"); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_file", map[string]string{"passport": err.Error()})
		return
	}
	if form.Bill, err = fileInput(r, "bill"); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_file", map[string]string{"bill": err.Error()})
		return
	}
	app, err := h.Svc.SubmitApplication(r.Context(), form)
	if err != nil {
		writeSubmissionError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": app.ID, "status": app.Status})
}

// CreateCompany: POST /api/companies — multipart form carrying the company
// fields plus indexed director and PSC parts: directors.0.home_address,
// directors.0.ni_number, directors.0.passport (file), directors.0.brp (file),
// pscs.0.name, pscs.0.address, pscs.0.nature_of_control, and so on.
func (h *ApplyHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.JSONError(w, requestErrorStatus(err), "invalid_form", nil)
		return
	}
	form := services.CompanyForm{
		CompanyName:      r.FormValue("company_name"),
		OfficeAddress:    r.FormValue("office_address"),
		BusinessActivity: r.FormValue("business_activity"),
		ContactName:      r.FormValue("contact_name"),
		ContactEmail:     r.FormValue("contact_email"),
	}
	for i := 0; ; i++ {
		prefix := fmt.Sprintf("directors.%d.", i)
		if !hasPart(r, prefix+"home_address") && !hasPart(r, prefix+"ni_number") &&
			!hasFile(r, prefix+"passport") && !hasFile(r, prefix+"brp") {
			break
		}
		dir := services.DirectorForm{
			HomeAddress: r.FormValue(prefix + "home_address"),
			NINumber:    r.FormValue(prefix + "ni_number"),
		}
		var err error
		if dir.Passport, err = fileInput(r, prefix+"passport"); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_file", map[string]string{prefix + "passport": err.Error()})
			return
		}
		if dir.BRP, err = fileInput(r, prefix+"brp"); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_file", map[string]string{prefix + "brp": err.Error()})
			return
		}
		form.Directors = append(form.Directors, dir)
	}
	for i := 0; ; i++ {
		prefix := fmt.Sprintf("pscs.%d.", i)
		if !hasPart(r, prefix+"name") {
			break
		}
		form.PSCs = append(form.PSCs, services.PSCForm{
			Name:            r.FormValue(prefix + "name"),
			Address:         r.FormValue(prefix + "address"),
			NatureOfControl: r.FormValue(prefix + "nature_of_control"),
		})
	}
	company, err := h.Svc.SubmitCompany(r.Context(), form)
	if err != nil {
		writeSubmissionError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":        company.ID,
		"directors": len(company.Directors),
		"pscs":      len(company.PSCs),
	})
}

// hasPart reports whether the scalar field was sent at all, even empty, so a
// blank required field still reaches validation instead of ending the scan.
func hasPart(r *http.Request, field string) bool {
	if r.MultipartForm == nil {
		return false
	}
	_, ok := r.MultipartForm.Value[field]
	return ok
}

func hasFile(r *http.Request, field string) bool {
	if r.MultipartForm == nil {
		return false
	}
	fhs, ok := r.MultipartForm.File[field]
	return ok && len(fhs) > 0
}

// requestErrorStatus distinguishes an oversized body from a malformed one.
func requestErrorStatus(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// fileInput reads one multipart file into memory; absent files return nil.
// The body is already bounded by MaxBytesReader, so the read is complete,
// never a truncation.
func fileInput(r *http.Request, field string) (*services.FileInput, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &services.FileInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// writeSubmissionError maps workflow errors onto the response envelope. The
// applicant sees a single pass/fail outcome with a machine readable reason.
func writeSubmissionError(w http.ResponseWriter, err error) {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", verr.Violations)
		return
	}
	var uerr *apperr.UploadError
	if errors.As(err, &uerr) {
		httpx.JSONError(w, http.StatusBadGateway, "upload_failed", map[string]string{"file": uerr.Name})
		return
	}
	httpx.JSONError(w, http.StatusInternalServerError, "persistence_failed", nil)
}
