package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rpupo63/blog-backend/config"
	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/models"
	"github.com/rpupo63/blog-backend/services"
)

const testSecret = "test-secret"

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type testEnv struct {
	router   *chi.Mux
	db       database.Database
	gorm     *gorm.DB
	mediaDir string
	tokens   *services.TokenIssuer
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                      "test",
		Port:                     "0",
		JWTSecret:                testSecret,
		AccessTokenExpireMinutes: 60 * 24 * 7,
		LoginTokenExpireMinutes:  60 * 24 * 7,
		StorageDriver:            "local",
		MediaURLPrefix:           "/media",
		MaxUploadMB:              1,
		AllowedOrigins:           "*",
		BlockedTitleWords:        "forbidden, spam",
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	gdb := openTestDB(t)
	db := database.New(gdb)

	mediaDir := t.TempDir()
	store, err := services.NewLocalStore(mediaDir, cfg.MediaURLPrefix)
	require.NoError(t, err)

	proxies, err := cfg.TrustedProxyNets()
	require.NoError(t, err)

	router := newRouter(db, withConfig(cfg), withStartupTime(time.Now()), withFileStore(store), withTrustedProxies(proxies))
	return &testEnv{
		router:   router,
		db:       db,
		gorm:     gdb,
		mediaDir: mediaDir,
		tokens:   services.NewTokenIssuer(testSecret),
	}
}

func (e *testEnv) createUser(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()

	hashed, err := services.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{Email: email, HashedPassword: hashed, Role: role, IsActive: true}
	require.NoError(t, e.db.UserRepo().Create(context.Background(), user))
	return user
}

func (e *testEnv) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, _, err := e.tokens.Issue(user.ID, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) createCategory(t *testing.T, name, slug string) models.Category {
	t.Helper()
	category := models.Category{Name: name, Slug: slug}
	require.NoError(t, e.db.CategoryRepo().Create(context.Background(), &category))
	return category
}

// do sends body as JSON unless it is already a reader.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.serve(req)
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func newFormRequest(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
