package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ataccountancy/intake-portal/internal/models"
)

var passwordRe = regexp.MustCompile(`(password=)([^\s]+)`)

// ConnectAndMigrate opens the database with bounded retry and brings the
// schema up to date. MIGRATIONS=1 runs the SQL migrations in ./migrations via
// golang-migrate; otherwise AutoMigrate keeps dev environments current.
func ConnectAndMigrate(dsn string, log zerolog.Logger) (*gorm.DB, error) {
	dsn = NormalizeDSN(dsn)
	if dsn == "" {
		return nil, errors.New("empty DATABASE_DSN")
	}
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var conn *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("retrying db connection")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after retries: %w", err)
	}
	if pingErr := conn.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping: %w", pingErr)
	}

	masked := passwordRe.ReplaceAllString(dsn, `${1}***`)
	log.Info().Str("dsn", masked).Msg("database connected")

	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations: %w", err)
		}
	} else if err := AutoMigrate(conn); err != nil {
		return nil, err
	}

	for _, table := range []string{"applications", "companies", "users"} {
		if !conn.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}

	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seedAdmin(conn, log)
	}
	return conn, nil
}

// AutoMigrate creates or updates every table of the portal. Also used by the
// sqlite-backed tests.
func AutoMigrate(conn *gorm.DB) error {
	for _, m := range []any{
		&models.User{}, &models.UserRole{},
		&models.Application{},
		&models.Company{}, &models.Director{}, &models.PSC{},
	} {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// seedAdmin creates the initial operator from ADMIN_EMAIL / ADMIN_PASSWORD.
// Idempotent: an existing user with that email is left untouched.
func seedAdmin(conn *gorm.DB, log zerolog.Logger) {
	email := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	pass := os.Getenv("ADMIN_PASSWORD")
	if email == "" || pass == "" {
		return
	}
	var existing models.User
	if err := conn.Where("email = ?", email).First(&existing).Error; err == nil {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("seed admin: hash password")
		return
	}
	user := models.User{Email: email, Password: string(hash)}
	if err := conn.Create(&user).Error; err != nil {
		log.Error().Err(err).Msg("seed admin: create user")
		return
	}
	if err := conn.Create(&models.UserRole{UserID: user.ID, Role: models.RoleAdmin}).Error; err != nil {
		log.Error().Err(err).Msg("seed admin: assign role")
		return
	}
	log.Info().Str("email", email).Msg("seeded admin user")
}

func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
