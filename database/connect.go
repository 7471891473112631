package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/rpupo63/blog-backend/models"
)

// Options configures Open.
type Options struct {
	// URL selects the driver: postgres:// or postgresql:// (or a key=value DSN
	// containing host=) for postgres, sqlite:<path> for sqlite.
	URL string
	// ReadURL, when set, registers a read replica.
	ReadURL       string
	Logger        zerolog.Logger
	SlowThreshold time.Duration
}

// Open connects to the primary database and, optionally, a read replica.
func Open(opts Options) (*gorm.DB, error) {
	dialector, err := dialectorFor(opts.URL)
	if err != nil {
		return nil, err
	}

	slow := opts.SlowThreshold
	if slow == 0 {
		slow = 10 * time.Second
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		Logger: logger.New(gormLogWriter{opts.Logger}, logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if opts.ReadURL != "" {
		replica, err := dialectorFor(opts.ReadURL)
		if err != nil {
			return nil, fmt.Errorf("read replica: %w", err)
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{replica},
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, fmt.Errorf("register read replica: %w", err)
		}
	}

	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		return nil, fmt.Errorf("error testing database connection: %w", err)
	}

	return db, nil
}

func dialectorFor(url string) (gorm.Dialector, error) {
	switch {
	case url == "":
		return sqlite.Open("blog.db"), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"), strings.Contains(url, "host="):
		return postgres.New(postgres.Config{
			DSN:                  url,
			PreferSimpleProtocol: true,
		}), nil
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://")), nil
	case strings.HasPrefix(url, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite:")), nil
	default:
		return nil, fmt.Errorf("unsupported database url %q", url)
	}
}

// Migrate creates or updates every table, including the post_tags join table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// gormLogWriter routes gorm's logger output through zerolog.
type gormLogWriter struct {
	logger zerolog.Logger
}

func (w gormLogWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn().Str("component", "gorm").Msgf(format, args...)
}
