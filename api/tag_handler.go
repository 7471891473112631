package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/errs"
	"github.com/rpupo63/blog-backend/models"
)

const (
	minTagLength = 2
	maxTagLength = 30
)

type tagHandler struct {
	responder Responder
	logger    zerolog.Logger
	database  database.Database
}

func newTagHandler(db database.Database) tagHandler {
	logger := log.With().Str("handlerName", "tagHandler").Logger()

	return tagHandler{
		responder: NewResponder(logger),
		logger:    logger,
		database:  db,
	}
}

func (h tagHandler) readName(w http.ResponseWriter, r *http.Request) (string, error) {
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	name := models.NormalizeTagName(req.Name)
	if err := requireLength("name", name, minTagLength, maxTagLength); err != nil {
		return "", err
	}
	return name, nil
}

// listTags returns one page of tags
// @Summary List tags
// @Tags Tags
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(10)
// @Param order_by query string false "id or name" default(id)
// @Param direction query string false "asc or desc" default(asc)
// @Param search query string false "Name substring"
// @Success 200 {object} TagPage
// @Router /api/v1/tags [get]
func (h tagHandler) listTags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, err := queryInt(r, "page", 1)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		perPage, err := queryInt(r, "per_page", database.DefaultPerPage)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		result, err := h.database.TagRepo().List(r.Context(), database.TagQuery{
			PageRequest: database.PageRequest{
				Page:      page,
				PerPage:   perPage,
				OrderBy:   q.Get("order_by"),
				Direction: q.Get("direction"),
			},
			Search: strings.ToLower(strings.TrimSpace(q.Get("search"))),
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("list tags", "tag", err))
			return
		}

		h.responder.WriteJSON(w, TagPage{
			Total:   result.Total,
			Pages:   result.Pages,
			Page:    result.Page,
			PerPage: result.PerPage,
			Items:   result.Items,
		})
	}
}

func (h tagHandler) createTag() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := h.readName(w, r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var tag *models.Tag
		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			tag, err = tx.TagRepo().Create(r.Context(), name)
			return err
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("create tag", "tag", err))
			return
		}

		h.responder.WriteJSONStatus(w, http.StatusCreated, tag)
	}
}

func (h tagHandler) updateTag() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tagID, err := pathID(r, "tagID")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		name, err := h.readName(w, r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var tag *models.Tag
		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			tag, err = tx.TagRepo().Rename(r.Context(), tagID, name)
			return err
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("update tag", "tag", err))
			return
		}

		h.responder.WriteJSON(w, tag)
	}
}

// deleteTag removes a tag from every post that carries it, then the tag
func (h tagHandler) deleteTag() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tagID, err := pathID(r, "tagID")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			return tx.TagRepo().Delete(r.Context(), tagID)
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("delete tag", "tag", err))
			return
		}

		h.responder.WriteNoContent(w)
	}
}

func (h tagHandler) mostPopular() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usage, err := h.database.TagRepo().MostPopular(r.Context())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.responder.WriteError(w, errs.NewNotFoundError("no tag is in use"))
			return
		}
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find popular tag", "tag", err))
			return
		}
		h.responder.WriteJSON(w, usage)
	}
}
