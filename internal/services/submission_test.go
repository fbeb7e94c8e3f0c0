package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ataccountancy/intake-portal/internal/apperr"
	"github.com/ataccountancy/intake-portal/internal/models"
	"github.com/ataccountancy/intake-portal/internal/notify"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Application{}, &models.Company{}, &models.Director{}, &models.PSC{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// memStore records saves in memory; fail makes every upload fail.
type memStore struct {
	saved int
	fail  bool
}

func (m *memStore) Save(_ context.Context, name, _ string, _ []byte) error {
	if m.fail {
		return errors.New("bucket unavailable")
	}
	m.saved++
	return nil
}

func (m *memStore) PublicURL(name string) string { return "https://docs.test/" + name }

// recordingNotifier captures every payload and can observe database state at
// send time through the onSend hook.
type recordingNotifier struct {
	sent   []notify.ApplicationEmail
	err    error
	onSend func()
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.ApplicationEmail) error {
	if n.onSend != nil {
		n.onSend()
	}
	n.sent = append(n.sent, msg)
	return n.err
}

func pdf(name string) *FileInput {
	return &FileInput{Name: name, ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func validApplicationForm() ApplicationForm {
	return ApplicationForm{
		FullName:    "Jane Doe",
		Email:       "jane@x.com",
		CompanyName: "Acme Ltd",
		Passport:    pdf("p.pdf"),
		Bill:        pdf("b.pdf"),
	}
}

func countRows[T any](t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var model T
	var n int64
	if err := db.Model(&model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestSubmitApplicationMissingFileNoWrites(t *testing.T) {
	db := setupTestDB(t)
	store := &memStore{}
	notifier := &recordingNotifier{}
	svc := NewSubmissionService(db, store, notifier, zerolog.Nop())

	form := validApplicationForm()
	form.Passport = nil
	_, err := svc.SubmitApplication(context.Background(), form)

	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Violations["passport"] != "file_required" {
		t.Fatalf("expected passport violation, got %v", verr.Violations)
	}
	if n := countRows[models.Application](t, db); n != 0 {
		t.Fatalf("expected zero rows after validation failure, got %d", n)
	}
	if store.saved != 0 {
		t.Fatalf("expected zero uploads, got %d", store.saved)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no notification, got %d", len(notifier.sent))
	}
}

func TestSubmitApplicationMissingFieldsReportedTogether(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSubmissionService(db, &memStore{}, &recordingNotifier{}, zerolog.Nop())

	_, err := svc.SubmitApplication(context.Background(), ApplicationForm{Email: "not-an-email"})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for field, code := range map[string]string{
		"full_name":    "required",
		"email":        "invalid_email",
		"company_name": "required",
		"passport":     "file_required",
		"bill":         "file_required",
	} {
		if verr.Violations[field] != code {
			t.Errorf("field %s: got %q want %q", field, verr.Violations[field], code)
		}
	}
}

func TestSubmitApplicationUploadFailureAborts(t *testing.T) {
	db := setupTestDB(t)
	store := &memStore{fail: true}
	notifier := &recordingNotifier{}
	svc := NewSubmissionService(db, store, notifier, zerolog.Nop())

	_, err := svc.SubmitApplication(context.Background(), validApplicationForm())
	var uerr *apperr.UploadError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if uerr.Name != "passport" {
		t.Fatalf("expected failure on passport (first upload), got %s", uerr.Name)
	}
	if n := countRows[models.Application](t, db); n != 0 {
		t.Fatalf("expected zero rows after upload failure, got %d", n)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no notification after upload failure")
	}
}

func TestSubmitApplicationSuccess(t *testing.T) {
	db := setupTestDB(t)
	store := &memStore{}
	notifier := &recordingNotifier{}
	// Capture how many rows exist at the moment the notification goes out:
	// it must fire strictly after the insert.
	notifier.onSend = func() {
		if n := countRows[models.Application](t, db); n != 1 {
			t.Errorf("notification sent with %d rows persisted, want 1", n)
		}
	}
	svc := NewSubmissionService(db, store, notifier, zerolog.Nop())

	app, err := svc.SubmitApplication(context.Background(), validApplicationForm())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if app.Status != "pending" {
		t.Fatalf("expected pending status, got %q", app.Status)
	}
	if app.PassportURL == "" || app.BillURL == "" {
		t.Fatalf("expected both document urls, got %q %q", app.PassportURL, app.BillURL)
	}
	if store.saved != 2 {
		t.Fatalf("expected 2 uploads, got %d", store.saved)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifier.sent))
	}
	sent := notifier.sent[0]
	if sent.CompanyName != "Acme Ltd" || sent.FullName != "Jane Doe" || sent.Email != "jane@x.com" {
		t.Fatalf("unexpected notification payload: %+v", sent)
	}
	if sent.PassportURL != app.PassportURL || sent.BillURL != app.BillURL {
		t.Fatalf("notification must reference the stored urls: %+v", sent)
	}
}

func TestSubmitApplicationNotificationFailureIsNonFatal(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	svc := NewSubmissionService(db, &memStore{}, notifier, zerolog.Nop())

	app, err := svc.SubmitApplication(context.Background(), validApplicationForm())
	if err != nil {
		t.Fatalf("notification failure must not fail the submission: %v", err)
	}
	if app.ID == 0 {
		t.Fatal("expected persisted application")
	}
	if n := countRows[models.Application](t, db); n != 1 {
		t.Fatalf("expected the row to stay, got %d", n)
	}
}

func TestSubmitApplicationNoDedup(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSubmissionService(db, &memStore{}, &recordingNotifier{}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := svc.SubmitApplication(context.Background(), validApplicationForm()); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if n := countRows[models.Application](t, db); n != 2 {
		t.Fatalf("resubmission must create a distinct record, got %d rows", n)
	}
}

func validCompanyForm() CompanyForm {
	return CompanyForm{
		CompanyName:      "Acme Ltd",
		OfficeAddress:    "1 High Street, London",
		BusinessActivity: "Consulting",
		Directors: []DirectorForm{
			{HomeAddress: "2 Low Street", NINumber: "QQ123456C", Passport: pdf("d1-passport.pdf")},
		},
		PSCs: []PSCForm{
			{Name: "John Roe", Address: "3 Mid Street", NatureOfControl: "75% shares"},
		},
	}
}

func TestSubmitCompanySuccess(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	svc := NewSubmissionService(db, &memStore{}, notifier, zerolog.Nop())

	company, err := svc.SubmitCompany(context.Background(), validCompanyForm())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if company.ID == 0 {
		t.Fatal("expected generated company id")
	}
	var dirs []models.Director
	if err := db.Where("company_id = ?", company.ID).Find(&dirs).Error; err != nil || len(dirs) != 1 {
		t.Fatalf("expected one director for company %d: %v %v", company.ID, dirs, err)
	}
	if dirs[0].PassportURL == "" {
		t.Fatal("expected director passport url")
	}
	var pscs []models.PSC
	if err := db.Where("company_id = ?", company.ID).Find(&pscs).Error; err != nil || len(pscs) != 1 {
		t.Fatalf("expected one psc for company %d: %v %v", company.ID, pscs, err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].CompanyName != "Acme Ltd" {
		t.Fatalf("expected one notification for the company, got %+v", notifier.sent)
	}
}

func TestSubmitCompanyValidatesChildren(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSubmissionService(db, &memStore{}, &recordingNotifier{}, zerolog.Nop())

	form := validCompanyForm()
	form.Directors[0].NINumber = ""
	form.PSCs[0].Name = " "
	_, err := svc.SubmitCompany(context.Background(), form)

	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Violations["directors.0.ni_number"] != "required" {
		t.Fatalf("expected director violation, got %v", verr.Violations)
	}
	if verr.Violations["pscs.0.name"] != "required" {
		t.Fatalf("expected psc violation, got %v", verr.Violations)
	}
	if n := countRows[models.Company](t, db); n != 0 {
		t.Fatalf("expected zero companies, got %d", n)
	}
}

// A failed director insert keeps the already-written company row: the
// workflow stops at the failure and does not roll back.
func TestSubmitCompanyDirectorFailureKeepsCompany(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrator().DropTable(&models.Director{}); err != nil {
		t.Fatalf("drop directors: %v", err)
	}
	notifier := &recordingNotifier{}
	svc := NewSubmissionService(db, &memStore{}, notifier, zerolog.Nop())

	_, err := svc.SubmitCompany(context.Background(), validCompanyForm())
	var perr *apperr.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if perr.Op != "director" {
		t.Fatalf("expected failure at director step, got %s", perr.Op)
	}
	if n := countRows[models.Company](t, db); n != 1 {
		t.Fatalf("company row must survive the child failure, got %d", n)
	}
	if n := countRows[models.PSC](t, db); n != 0 {
		t.Fatalf("psc inserts must not run after the failure, got %d", n)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("no notification on a failed submission")
	}
}

// A failed PSC insert keeps the company and all directors written before it.
func TestSubmitCompanyPSCFailureKeepsPriorRows(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrator().DropTable(&models.PSC{}); err != nil {
		t.Fatalf("drop pscs: %v", err)
	}
	svc := NewSubmissionService(db, &memStore{}, &recordingNotifier{}, zerolog.Nop())

	_, err := svc.SubmitCompany(context.Background(), validCompanyForm())
	var perr *apperr.PersistenceError
	if !errors.As(err, &perr) || perr.Op != "psc" {
		t.Fatalf("expected psc PersistenceError, got %v", err)
	}
	if n := countRows[models.Company](t, db); n != 1 {
		t.Fatalf("expected company kept, got %d", n)
	}
	if n := countRows[models.Director](t, db); n != 1 {
		t.Fatalf("expected director kept, got %d", n)
	}
}

func TestSubmitCompanyUploadFailureNoWrites(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSubmissionService(db, &memStore{fail: true}, &recordingNotifier{}, zerolog.Nop())

	_, err := svc.SubmitCompany(context.Background(), validCompanyForm())
	var uerr *apperr.UploadError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if n := countRows[models.Company](t, db); n != 0 {
		t.Fatalf("uploads run before any insert; expected zero companies, got %d", n)
	}
}
