package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/blog-backend/errs"
)

// allowedImageTypes maps accepted content types to their stored extension.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// extensionAliases are client extensions kept as-is for a content type.
var extensionAliases = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
}

// StoredFile describes an accepted upload.
type StoredFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
	Size        int64  `json:"-"`
}

// UploadGuard accepts image uploads into a FileStore. Disallowed types are
// rejected before any byte is written; oversized files are written, measured,
// then removed.
type UploadGuard struct {
	store    FileStore
	maxBytes int64
}

func NewUploadGuard(store FileStore, maxBytes int64) *UploadGuard {
	return &UploadGuard{store: store, maxBytes: maxBytes}
}

func (g *UploadGuard) MaxBytes() int64 {
	return g.maxBytes
}

// Save stores body under a fresh random name. The original extension is kept
// only when it matches the content type.
func (g *UploadGuard) Save(ctx context.Context, originalName, contentType string, body io.Reader) (StoredFile, error) {
	mediaType, defaultExt, err := allowedType(contentType)
	if err != nil {
		return StoredFile{}, err
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if !slices.Contains(extensionAliases[mediaType], ext) {
		ext = defaultExt
	}
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext

	// One byte past the limit is enough to know the file is too large.
	if _, err := g.store.Save(ctx, name, mediaType, io.LimitReader(body, g.maxBytes+1)); err != nil {
		return StoredFile{}, errs.NewStorageError("write", err)
	}

	size, err := g.store.Size(ctx, name)
	if err != nil {
		g.Discard(ctx, name)
		return StoredFile{}, errs.NewStorageError("stat", err)
	}
	if size > g.maxBytes {
		g.Discard(ctx, name)
		return StoredFile{}, errs.NewMaxBodySizeExceededError(g.maxBytes)
	}

	return StoredFile{
		Filename:    name,
		ContentType: mediaType,
		URL:         g.store.URL(name),
		Size:        size,
	}, nil
}

// Discard removes a stored file, logging failures.
func (g *UploadGuard) Discard(ctx context.Context, name string) {
	if err := g.store.Delete(ctx, name); err != nil {
		log.Error().Err(err).Str("file", name).Msg("failed to remove stored upload")
	}
}

func allowedType(contentType string) (string, string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", "", errs.NewInvalidFieldError("file", fmt.Sprintf("unreadable content type %q", contentType))
	}
	ext, ok := allowedImageTypes[mediaType]
	if !ok {
		return "", "", errs.NewInvalidFieldError("file", fmt.Sprintf("content type %s is not allowed", mediaType))
	}
	return mediaType, ext, nil
}
