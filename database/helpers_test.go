package database

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rpupo63/blog-backend/models"
)

func setupTestDB(t *testing.T) Database {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return New(db)
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func createPost(t *testing.T, d Database, title, content string, tags ...string) models.Post {
	t.Helper()
	ctx := context.Background()

	var post models.Post
	err := d.Transaction(ctx, func(tx Database) error {
		ensured, err := tx.TagRepo().EnsureTags(ctx, tags)
		if err != nil {
			return err
		}
		slug, err := tx.PostRepo().UniqueSlug(ctx, title)
		if err != nil {
			return err
		}
		post = models.Post{Title: title, Content: content, Slug: slug, Tags: ensured}
		return tx.PostRepo().Create(ctx, &post)
	})
	require.NoError(t, err)
	return post
}

func createCategory(t *testing.T, d Database, name, slug string) models.Category {
	t.Helper()
	category := models.Category{Name: name, Slug: slug}
	require.NoError(t, d.CategoryRepo().Create(context.Background(), &category))
	return category
}
