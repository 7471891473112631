package api

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/models"
	"github.com/rpupo63/blog-backend/services"
)

func postBody(title string, categoryID uint, tags ...string) map[string]any {
	return map[string]any{
		"title":       title,
		"content":     "Some content that is long enough.",
		"category_id": categoryID,
		"tags":        tags,
	}
}

func TestCreatePost_RequiresEditor(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Backend", "backend")
	reader := env.createUser(t, "reader@example.com", models.RoleUser)
	editor := env.createUser(t, "editor@example.com", models.RoleEditor)

	rec := env.do(t, http.MethodPost, "/api/v1/posts", "", postBody("Hello World", category.ID))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/posts", env.tokenFor(t, reader), postBody("Hello World", category.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/posts", env.tokenFor(t, editor), postBody("Hello World", category.ID, "Go", "go", "web"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := decode[models.Post](t, rec)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Len(t, post.Tags, 2)
	require.NotNil(t, post.Category)
	assert.Equal(t, "backend", post.Category.Slug)
	require.NotNil(t, post.User)
	assert.Equal(t, editor.ID, post.User.ID)
}

func TestCreatePost_SlugCollision(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Backend", "backend")
	token := env.tokenFor(t, env.createUser(t, "editor@example.com", models.RoleEditor))

	rec := env.do(t, http.MethodPost, "/api/v1/posts", token, postBody("Hello World", category.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/posts", token, postBody("Hello World!!", category.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "hello-world-2", decode[models.Post](t, rec).Slug)

	rec = env.do(t, http.MethodGet, "/api/v1/posts/post/hello-world-2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!!", decode[models.Post](t, rec).Title)

	// Same title and content as the first post.
	rec = env.do(t, http.MethodPost, "/api/v1/posts", token, postBody("Hello World", category.ID))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreatePost_Validation(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Backend", "backend")
	token := env.tokenFor(t, env.createUser(t, "editor@example.com", models.RoleEditor))

	tests := map[string]map[string]any{
		"short title":      postBody("Hey", category.ID),
		"blocked word":     postBody("Buy SPAM today", category.ID),
		"missing category": {"title": "Valid title", "content": "Long enough content"},
		"unknown category": postBody("Valid title", 9999),
		"short content":    {"title": "Valid title", "content": "short", "category_id": category.ID},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/posts", token, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	var count int64
	require.NoError(t, env.gorm.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func multipartPost(t *testing.T, fields map[string][]string, imageType string, image []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, writer.WriteField(key, v))
		}
	}
	if image != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="image"; filename="cover.png"`)
		header.Set("Content-Type", imageType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestCreatePost_MultipartWithImage(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Backend", "backend")
	token := env.tokenFor(t, env.createUser(t, "editor@example.com", models.RoleEditor))

	body, contentType := multipartPost(t, map[string][]string{
		"title":       {"Form Post"},
		"content":     {"Posted from a multipart form."},
		"category_id": {fmt.Sprint(category.ID)},
		"tags":        {"go,web", "testing"},
	}, "image/png", []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.serve(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := decode[models.Post](t, rec)
	assert.Len(t, post.Tags, 3)
	require.NotNil(t, post.ImageURL)
	assert.Regexp(t, `^/media/[0-9a-f]{32}\.png$`, *post.ImageURL)

	_, err := os.Stat(filepath.Join(env.mediaDir, path.Base(*post.ImageURL)))
	assert.NoError(t, err)

	rec = env.do(t, http.MethodGet, *post.ImageURL, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
}

func TestCreatePost_ImageDiscardedOnFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, env.createUser(t, "editor@example.com", models.RoleEditor))

	body, contentType := multipartPost(t, map[string][]string{
		"title":       {"Orphan Post"},
		"content":     {"This category does not exist."},
		"category_id": {"9999"},
	}, "image/png", []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.serve(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	entries, err := os.ReadDir(env.mediaDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListPosts(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Backend", "backend")
	token := env.tokenFor(t, env.createUser(t, "editor@example.com", models.RoleEditor))

	titles := []string{"Alpha post", "Bravo post", "Charlie news", "Delta post", "Echo post", "Foxtrot post", "Golf post"}
	for _, title := range titles {
		rec := env.do(t, http.MethodPost, "/api/v1/posts", token, postBody(title, category.ID))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[PaginatedPosts](t, rec)
	assert.EqualValues(t, 7, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 5, page.PerPage)
	assert.Len(t, page.Items, 5)
	assert.False(t, page.HasPrev)
	assert.True(t, page.HasNext)
	assert.Nil(t, page.Search)

	rec = env.do(t, http.MethodGet, "/api/v1/posts?page=99&per_page=3&order_by=title&direction=desc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[PaginatedPosts](t, rec)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, "title", page.OrderBy)
	assert.Equal(t, "desc", page.Direction)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Alpha post", page.Items[0].Title)

	rec = env.do(t, http.MethodGet, "/api/v1/posts?search=POST&per_page=100", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[PaginatedPosts](t, rec)
	assert.EqualValues(t, 6, page.Total)
	assert.Equal(t, 50, page.PerPage)
	require.NotNil(t, page.Search)

	rec = env.do(t, http.MethodGet, "/api/v1/posts?text=news", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[PaginatedPosts](t, rec).Total)

	rec = env.do(t, http.MethodGet, "/api/v1/posts?search=nothing-here", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[PaginatedPosts](t, rec)
	assert.EqualValues(t, 0, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 0, page.TotalPages)
	assert.NotNil(t, page.Items)
}

func TestListPosts_BadQuery(t *testing.T) {
	env := newTestEnv(t)

	for _, query := range []string{"search=a", "search=50%25", "search=drop;table", "page=abc", "per_page=1.5"} {
		t.Run(query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/posts?"+query, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetPost(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Backend", "backend")
	token := env.tokenFor(t, env.createUser(t, "editor@example.com", models.RoleEditor))

	rec := env.do(t, http.MethodPost, "/api/v1/posts", token, postBody("Readable post", category.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Post](t, rec)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", created.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.Content, decode[models.Post](t, rec).Content)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d?include_content=false", created.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": float64(created.ID), "title": "Readable post"}, decode[map[string]any](t, rec))

	rec = env.do(t, http.MethodGet, "/api/v1/posts/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/posts/post/no-such-slug", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostsByTags(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Backend", "backend")
	token := env.tokenFor(t, env.createUser(t, "editor@example.com", models.RoleEditor))

	for title, tags := range map[string][]string{
		"Go in practice":  {"go"},
		"Python tricks":   {"python"},
		"Web with Go":     {"go", "web"},
		"Untagged thingy": nil,
	} {
		rec := env.do(t, http.MethodPost, "/api/v1/posts", token, postBody(title, category.ID, tags...))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/api/v1/posts/by-tags?tags=GO&tags=web", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	posts := decode[[]models.Post](t, rec)
	require.Len(t, posts, 2)
	assert.Greater(t, posts[0].ID, posts[1].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/posts/by-tags", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDeletePost(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Backend", "backend")
	editor := env.tokenFor(t, env.createUser(t, "editor@example.com", models.RoleEditor))
	admin := env.tokenFor(t, env.createUser(t, "admin@example.com", models.RoleAdmin))

	rec := env.do(t, http.MethodPost, "/api/v1/posts", editor, postBody("Original title", category.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Post](t, rec)
	path := fmt.Sprintf("/api/v1/posts/%d", created.ID)

	rec = env.do(t, http.MethodPut, path, editor, map[string]string{"title": "Renamed title"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Post](t, rec)
	assert.Equal(t, "Renamed title", updated.Title)
	assert.Equal(t, "original-title", updated.Slug)

	rec = env.do(t, http.MethodPut, path, editor, map[string]string{"title": "no"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/posts/9999", editor, map[string]string{"title": "Renamed title"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, path, editor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var links int64
	require.NoError(t, env.gorm.Table("post_tags").Where("post_id = ?", created.ID).Count(&links).Error)
	assert.Zero(t, links)
}

// A failed insert inside the request transaction must roll back and surface
// as a generic 500.
func TestCreateTag_PersistenceFailureRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store, err := services.NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)
	router := newRouter(database.New(gdb), withConfig(testConfig()), withStartupTime(time.Now()), withFileStore(store))

	token, _, err := services.NewTokenIssuer(testSecret).Issue(1, time.Hour)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hashed_password", "role", "is_active", "created_at"}).
			AddRow(1, "editor@example.com", "x", "editor", true, time.Now()))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "tags"`)).
		WillReturnError(errors.New("disk I/O failure"))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tags", bytes.NewBufferString(`{"name":"golang"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}
