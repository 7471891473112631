package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpupo63/blog-backend/models"
	"github.com/rpupo63/blog-backend/services"
)

func uploadRequest(t *testing.T, path, token, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("note", "ignored"))

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func mediaEntries(t *testing.T, env *testEnv) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(env.mediaDir)
	require.NoError(t, err)
	return entries
}

func TestSaveUpload(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, env.createUser(t, "reader@example.com", models.RoleUser))

	rec := env.serve(uploadRequest(t, "/api/v1/uploads/save", "", "a.png", "image/png", []byte("png")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.serve(uploadRequest(t, "/api/v1/uploads/save", token, "Photo.JPG", "image/jpeg", []byte("jpeg-bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored := decode[services.StoredFile](t, rec)
	assert.Regexp(t, `^[0-9a-f]{32}\.jpg$`, stored.Filename)
	assert.Equal(t, "image/jpeg", stored.ContentType)
	assert.Equal(t, "/media/"+stored.Filename, stored.URL)
	assert.Len(t, mediaEntries(t, env), 1)
}

func TestSaveUpload_ServedAsImage(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, env.createUser(t, "reader@example.com", models.RoleUser))

	rec := env.serve(uploadRequest(t, "/api/v1/uploads/save", token, "x.html", "image/png", []byte("<script>alert(1)</script>")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored := decode[services.StoredFile](t, rec)
	assert.Regexp(t, `\.png$`, stored.Filename)

	rec = env.do(t, http.MethodGet, stored.URL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestMediaRoutes_NoDirectoryListing(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, env.createUser(t, "reader@example.com", models.RoleUser))
	require.NoError(t, os.Mkdir(filepath.Join(env.mediaDir, "nested"), 0o755))

	rec := env.serve(uploadRequest(t, "/api/v1/uploads/save", token, "a.png", "image/png", []byte("png")))
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[services.StoredFile](t, rec)

	for _, path := range []string{"/media/", "/media/nested/"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), stored.Filename, path)
	}

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, stored.URL, "", nil).Code)
}

func TestSaveUpload_Rejected(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, env.createUser(t, "reader@example.com", models.RoleUser))

	rec := env.serve(uploadRequest(t, "/api/v1/uploads/save", token, "doc.pdf", "application/pdf", []byte("%PDF-1.7")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tooLarge := bytes.Repeat([]byte{0xff}, 1<<20+1)
	rec = env.serve(uploadRequest(t, "/api/v1/uploads/save", token, "big.png", "image/png", tooLarge))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Empty(t, mediaEntries(t, env))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/save", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec = env.serve(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadBytesAndFile(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(uploadRequest(t, "/api/v1/uploads/bytes", "", "notes.txt", "text/plain", []byte("twelve bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"filename": "uploaded_file", "size_bytes": float64(12)}, decode[map[string]any](t, rec))

	rec = env.serve(uploadRequest(t, "/api/v1/uploads/file", "", "notes.txt", "text/plain", []byte("hello")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"filename": "notes.txt", "content_type": "text/plain"}, decode[map[string]any](t, rec))

	assert.Empty(t, mediaEntries(t, env))
}
