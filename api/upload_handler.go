package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/blog-backend/errs"
	"github.com/rpupo63/blog-backend/services"
)

const uploadField = "file"

type uploadHandler struct {
	responder Responder
	logger    zerolog.Logger
	uploads   *services.UploadGuard
}

func newUploadHandler(uploads *services.UploadGuard) uploadHandler {
	logger := log.With().Str("handlerName", "uploadHandler").Logger()

	return uploadHandler{
		responder: NewResponder(logger),
		logger:    logger,
		uploads:   uploads,
	}
}

// filePart streams the multipart body up to the "file" part without buffering
// anything to memory or disk.
func filePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errs.NewInvalidContentTypeError(r.Header.Get("Content-Type"))
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errs.NewMissingRequiredFieldError(uploadField)
		}
		if err != nil {
			return nil, errs.NewMalformedPayloadError("multipart form", err)
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		part.Close()
	}
}

// uploadBytes reports the size of the uploaded file and keeps nothing.
func (h uploadHandler) uploadBytes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		part, err := filePart(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		defer part.Close()

		limit := h.uploads.MaxBytes()
		size, err := io.Copy(io.Discard, io.LimitReader(part, limit+1))
		if err != nil {
			h.responder.WriteError(w, errs.NewMalformedPayloadError("file", err))
			return
		}
		if size > limit {
			h.responder.WriteError(w, errs.NewMaxBodySizeExceededError(limit))
			return
		}

		h.responder.WriteJSON(w, map[string]any{
			"filename":   "uploaded_file",
			"size_bytes": size,
		})
	}
}

// uploadFile echoes the declared name and type of the uploaded file.
func (h uploadHandler) uploadFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		part, err := filePart(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		defer part.Close()

		h.responder.WriteJSON(w, map[string]any{
			"filename":     part.FileName(),
			"content_type": part.Header.Get("Content-Type"),
		})
	}
}

// saveFile stores an image through the upload guard
// @Summary Save image
// @Tags Uploads
// @Accept multipart/form-data
// @Param file formData file true "JPEG or PNG image"
// @Success 200 {object} services.StoredFile
// @Failure 400 {object} ErrorResponse "Type not allowed"
// @Failure 413 {object} ErrorResponse "File too large"
// @Router /api/v1/uploads/save [post]
func (h uploadHandler) saveFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		part, err := filePart(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		defer part.Close()

		stored, err := h.uploads.Save(r.Context(), part.FileName(), part.Header.Get("Content-Type"), part)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().Str("file", stored.Filename).Int64("size", stored.Size).Msg("upload stored")
		h.responder.WriteJSON(w, stored)
	}
}
