package main

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/ataccountancy/intake-portal/internal/auth"
	"github.com/ataccountancy/intake-portal/internal/config"
	"github.com/ataccountancy/intake-portal/internal/handlers"
	"github.com/ataccountancy/intake-portal/internal/httpx"
	"github.com/ataccountancy/intake-portal/internal/models"
	"github.com/ataccountancy/intake-portal/internal/services"
)

// App is the main application handler with all routes configured.
type App struct {
	mux *http.ServeMux
	db  *gorm.DB
}

func NewApp(db *gorm.DB, cfg config.Config, svc *services.SubmissionService) *App {
	a := &App{mux: http.NewServeMux(), db: db}

	apply := handlers.NewApplyHandler(svc)
	ah := handlers.NewAuthHandler(db)
	admin := handlers.NewAdminHandler(db)

	// Public intake routes
	a.mux.HandleFunc("POST /api/applications", apply.CreateApplication)
	a.mux.HandleFunc("POST /api/companies", apply.CreateCompany)

	// Session routes
	a.mux.HandleFunc("POST /api/login", ah.Login)
	a.mux.HandleFunc("POST /api/logout", ah.Logout)
	a.mux.Handle("GET /api/session", a.requireAuth(http.HandlerFunc(ah.Session)))

	// Admin dashboard routes (auth + admin role)
	a.mux.Handle("GET /api/admin/applications",
		a.requireAuth(a.requireAdmin(http.HandlerFunc(admin.ListApplications))))
	a.mux.Handle("GET /api/admin/companies",
		a.requireAuth(a.requireAdmin(http.HandlerFunc(admin.ListCompanies))))
	a.mux.Handle("POST /api/admin/applications/{id}/status",
		a.requireAuth(a.requireAdmin(http.HandlerFunc(admin.UpdateStatus))))
	a.mux.Handle("POST /api/admin/applications/delete",
		a.requireAuth(a.requireAdmin(http.HandlerFunc(admin.BulkDelete))))

	// Uploaded documents, when stored on disk
	if cfg.StorageDriver == "disk" {
		a.mux.Handle("GET /uploads/",
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.StorageDir))))
	}
	return a
}

// ServeHTTP implements http.Handler with the session middleware applied.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(a.mux).ServeHTTP(w, r)
}

// requireAuth rejects requests without a valid session referring to an
// existing user.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		var count int64
		if err := a.db.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil || count == 0 {
			// Stale session for a removed user.
			auth.ClearSession(w)
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin re-checks the role on every request; revoking the admin role
// locks the dashboard out without waiting for the session to expire. The
// response carries no application data.
func (a *App) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || handlers.RoleOf(a.db, uid) != models.RoleAdmin {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
