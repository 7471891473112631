package api

import (
	"net/http"
	"strings"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/errs"
	"github.com/rpupo63/blog-backend/models"
)

const (
	minCategoryLength    = 2
	maxCategoryLength    = 100
	defaultCategoryLimit = 50
	maxCategoryLimit     = 100
)

type categoryHandler struct {
	responder Responder
	logger    zerolog.Logger
	database  database.Database
}

func newCategoryHandler(db database.Database) categoryHandler {
	logger := log.With().Str("handlerName", "categoryHandler").Logger()

	return categoryHandler{
		responder: NewResponder(logger),
		logger:    logger,
		database:  db,
	}
}

// validate checks the fields present in req; required makes both mandatory.
func (h categoryHandler) validate(req *categoryRequest, required bool) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
		if err := requireLength("name", name, minCategoryLength, maxCategoryLength); err != nil {
			return err
		}
	} else if required {
		return errs.NewMissingRequiredFieldError("name")
	}

	if req.Slug != nil {
		s := strings.TrimSpace(*req.Slug)
		req.Slug = &s
		if err := requireLength("slug", s, minCategoryLength, maxCategoryLength); err != nil {
			return err
		}
		if !slug.IsSlug(s) {
			return errs.NewInvalidFieldError("slug", "must be lowercase letters, digits and hyphens")
		}
	} else if required {
		return errs.NewMissingRequiredFieldError("slug")
	}
	return nil
}

// listCategories returns categories ordered by id
// @Summary List categories
// @Tags Categories
// @Param skip query int false "Rows to skip" default(0)
// @Param limit query int false "Rows to return (1-100)" default(50)
// @Success 200 {array} models.Category
// @Router /api/v1/categories [get]
func (h categoryHandler) listCategories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skip, err := queryInt(r, "skip", 0)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if skip < 0 {
			h.responder.WriteError(w, errs.NewInvalidFieldError("skip", "must not be negative"))
			return
		}
		limit, err := queryInt(r, "limit", defaultCategoryLimit)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if limit < 1 || limit > maxCategoryLimit {
			h.responder.WriteError(w, errs.NewInvalidFieldError("limit", "must be between 1 and 100"))
			return
		}

		categories, err := h.database.CategoryRepo().List(r.Context(), skip, limit)
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("list categories", "category", err))
			return
		}
		h.responder.WriteJSON(w, categories)
	}
}

func (h categoryHandler) getCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categoryID, err := pathID(r, "categoryID")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		category, err := h.database.CategoryRepo().FindByID(r.Context(), categoryID)
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find category", "category", err))
			return
		}
		h.responder.WriteJSON(w, category)
	}
}

func (h categoryHandler) createCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if err := h.validate(&req, true); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		category := &models.Category{Name: *req.Name, Slug: *req.Slug}
		err := h.database.Transaction(r.Context(), func(tx database.Database) error {
			return tx.CategoryRepo().Create(r.Context(), category)
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("create category", "category", err))
			return
		}

		h.responder.WriteJSONStatus(w, http.StatusCreated, category)
	}
}

func (h categoryHandler) updateCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categoryID, err := pathID(r, "categoryID")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var req categoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if err := h.validate(&req, false); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var category *models.Category
		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			category, err = tx.CategoryRepo().Update(r.Context(), categoryID, database.CategoryChanges{
				Name: req.Name,
				Slug: req.Slug,
			})
			return err
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("update category", "category", err))
			return
		}

		h.responder.WriteJSON(w, category)
	}
}

// deleteCategory removes a category; its posts stay with no category
// @Summary Delete category
// @Tags Categories
// @Param category_id path int true "Category ID"
// @Success 204
// @Failure 403 {object} ErrorResponse "Admin role required"
// @Failure 404 {object} ErrorResponse "Category not found"
// @Router /api/v1/categories/{category_id} [delete]
func (h categoryHandler) deleteCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categoryID, err := pathID(r, "categoryID")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			return tx.CategoryRepo().Delete(r.Context(), categoryID)
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("delete category", "category", err))
			return
		}

		h.logger.Info().Uint("categoryID", categoryID).Msg("category deleted")
		h.responder.WriteNoContent(w)
	}
}
