package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ataccountancy/intake-portal/internal/apperr"
	"github.com/ataccountancy/intake-portal/internal/models"
	"github.com/ataccountancy/intake-portal/internal/notify"
	"github.com/ataccountancy/intake-portal/internal/status"
	"github.com/ataccountancy/intake-portal/internal/storage"
	"github.com/ataccountancy/intake-portal/internal/validation"
)

// FileInput is one uploaded document as received from the form.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// ApplicationForm is the flat submission variant: one applicant, one company
// name, passport and proof-of-address documents.
type ApplicationForm struct {
	FullName    string
	Email       string
	Phone       string
	Address     string
	CompanyName string
	Notes       string
	Passport    *FileInput
	Bill        *FileInput
}

func (f ApplicationForm) schema() validation.Schema {
	return validation.Schema{
		Fields: []validation.FieldRule{
			{Name: "full_name", Value: f.FullName, Required: true},
			{Name: "email", Value: f.Email, Required: true, Email: true},
			{Name: "company_name", Value: f.CompanyName, Required: true},
		},
		Files: []validation.FileRule{
			{Name: "passport", Present: f.Passport != nil, Required: true},
			{Name: "bill", Present: f.Bill != nil, Required: true},
		},
	}
}

// CompanyForm is the nested submission variant: a company plus its directors
// and persons with significant control.
type CompanyForm struct {
	CompanyName      string
	OfficeAddress    string
	BusinessActivity string
	ContactName      string
	ContactEmail     string
	Directors        []DirectorForm
	PSCs             []PSCForm
}

type DirectorForm struct {
	HomeAddress string
	NINumber    string
	Passport    *FileInput
	BRP         *FileInput
}

type PSCForm struct {
	Name            string
	Address         string
	NatureOfControl string
}

func (f CompanyForm) schema() validation.Schema {
	s := validation.Schema{
		Fields: []validation.FieldRule{
			{Name: "company_name", Value: f.CompanyName, Required: true},
			{Name: "office_address", Value: f.OfficeAddress, Required: true},
			{Name: "business_activity", Value: f.BusinessActivity, Required: true},
			{Name: "contact_email", Value: f.ContactEmail, Email: true},
		},
	}
	for i, d := range f.Directors {
		s.Fields = append(s.Fields,
			validation.FieldRule{Name: fmt.Sprintf("directors.%d.home_address", i), Value: d.HomeAddress, Required: true},
			validation.FieldRule{Name: fmt.Sprintf("directors.%d.ni_number", i), Value: d.NINumber, Required: true},
		)
	}
	for i, p := range f.PSCs {
		s.Fields = append(s.Fields,
			validation.FieldRule{Name: fmt.Sprintf("pscs.%d.name", i), Value: p.Name, Required: true},
		)
	}
	return s
}

// SubmissionService turns a filled-out form into durable rows and a
// best-effort staff notification. Steps run strictly in sequence: validate,
// upload documents, insert records, notify. Validation and upload failures
// leave no trace in the record store.
type SubmissionService struct {
	db       *gorm.DB
	store    storage.Store
	notifier notify.Notifier
	log      zerolog.Logger
}

func NewSubmissionService(db *gorm.DB, store storage.Store, notifier notify.Notifier, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{db: db, store: store, notifier: notifier, log: log}
}

// SubmitApplication runs the flat variant and returns the created row.
// Resubmission is not deduplicated: every call creates a distinct record.
func (s *SubmissionService) SubmitApplication(ctx context.Context, form ApplicationForm) (*models.Application, error) {
	if v := form.schema().Check(); !v.Empty() {
		return nil, &apperr.ValidationError{Violations: v}
	}
	passportURL, err := s.upload(ctx, "passport", form.Passport)
	if err != nil {
		return nil, err
	}
	billURL, err := s.upload(ctx, "bill", form.Bill)
	if err != nil {
		return nil, err
	}
	app := models.Application{
		FullName:    strings.TrimSpace(form.FullName),
		Email:       strings.TrimSpace(form.Email),
		Phone:       strings.TrimSpace(form.Phone),
		Address:     strings.TrimSpace(form.Address),
		CompanyName: strings.TrimSpace(form.CompanyName),
		Notes:       strings.TrimSpace(form.Notes),
		PassportURL: passportURL,
		BillURL:     billURL,
		Status:      status.Default().String(),
	}
	if err := s.db.WithContext(ctx).Create(&app).Error; err != nil {
		return nil, &apperr.PersistenceError{Op: "application", Err: err}
	}
	s.notify(ctx, app.ID, notify.ApplicationEmail{
		CompanyName: app.CompanyName,
		FullName:    app.FullName,
		Email:       app.Email,
		Phone:       app.Phone,
		Address:     app.Address,
		Notes:       app.Notes,
		PassportURL: app.PassportURL,
		BillURL:     app.BillURL,
	})
	return &app, nil
}

// SubmitCompany writes the company first, then each director and each PSC
// sequentially. A failed child insert stops the sequence; rows already
// written for this submission are kept. There is no cross-row transaction in
// this flow.
func (s *SubmissionService) SubmitCompany(ctx context.Context, form CompanyForm) (*models.Company, error) {
	if v := form.schema().Check(); !v.Empty() {
		return nil, &apperr.ValidationError{Violations: v}
	}

	// All uploads happen before the first insert so a storage failure cannot
	// leave a half-written company behind.
	type directorDocs struct {
		passportURL string
		brpURL      string
	}
	docs := make([]directorDocs, len(form.Directors))
	for i, d := range form.Directors {
		var err error
		if docs[i].passportURL, err = s.uploadOptional(ctx, fmt.Sprintf("directors.%d.passport", i), d.Passport); err != nil {
			return nil, err
		}
		if docs[i].brpURL, err = s.uploadOptional(ctx, fmt.Sprintf("directors.%d.brp", i), d.BRP); err != nil {
			return nil, err
		}
	}

	company := models.Company{
		CompanyName:      strings.TrimSpace(form.CompanyName),
		OfficeAddress:    strings.TrimSpace(form.OfficeAddress),
		BusinessActivity: strings.TrimSpace(form.BusinessActivity),
	}
	if err := s.db.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, &apperr.PersistenceError{Op: "company", Err: err}
	}
	for i, d := range form.Directors {
		dir := models.Director{
			CompanyID:   company.ID,
			HomeAddress: strings.TrimSpace(d.HomeAddress),
			NINumber:    strings.TrimSpace(d.NINumber),
			PassportURL: docs[i].passportURL,
			BRPURL:      docs[i].brpURL,
		}
		if err := s.db.WithContext(ctx).Create(&dir).Error; err != nil {
			return nil, &apperr.PersistenceError{Op: "director", Err: err}
		}
		company.Directors = append(company.Directors, dir)
	}
	for _, p := range form.PSCs {
		row := models.PSC{
			CompanyID:       company.ID,
			Name:            strings.TrimSpace(p.Name),
			Address:         strings.TrimSpace(p.Address),
			NatureOfControl: strings.TrimSpace(p.NatureOfControl),
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, &apperr.PersistenceError{Op: "psc", Err: err}
		}
		company.PSCs = append(company.PSCs, row)
	}

	s.notify(ctx, company.ID, notify.ApplicationEmail{
		CompanyName: company.CompanyName,
		FullName:    strings.TrimSpace(form.ContactName),
		Email:       strings.TrimSpace(form.ContactEmail),
		Address:     company.OfficeAddress,
		Notes:       company.BusinessActivity,
	})
	return &company, nil
}

// upload stores one required file and returns its public URL.
func (s *SubmissionService) upload(ctx context.Context, field string, f *FileInput) (string, error) {
	name := storage.ObjectName(f.Name)
	if err := s.store.Save(ctx, name, f.ContentType, f.Data); err != nil {
		return "", &apperr.UploadError{Name: field, Err: err}
	}
	return s.store.PublicURL(name), nil
}

func (s *SubmissionService) uploadOptional(ctx context.Context, field string, f *FileInput) (string, error) {
	if f == nil {
		return "", nil
	}
	return s.upload(ctx, field, f)
}

// notify delivers the staff email. Failures are logged and swallowed: the
// applicant's data is already durable at this point, so the reported outcome
// of the submission does not change.
func (s *SubmissionService) notify(ctx context.Context, recordID uint, msg notify.ApplicationEmail) {
	if err := s.notifier.Send(ctx, msg); err != nil {
		nerr := &apperr.NotificationError{Err: err}
		s.log.Error().Err(nerr).
			Uint("record_id", recordID).
			Str("company", msg.CompanyName).
			Msg("notification failed")
	}
}
