package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/errs"
	"github.com/rpupo63/blog-backend/models"
	"github.com/rpupo63/blog-backend/services"
)

const (
	minTitleLength   = 5
	maxTitleLength   = 100
	minContentLength = 10
	maxContentLength = 1000
	minSearchLength  = 2
	maxSearchLength  = 50

	multipartMemory = 8 << 20
)

var searchPattern = regexp.MustCompile(`^[\p{L}\p{N}_\s-]+$`)

type postHandler struct {
	responder    Responder
	logger       zerolog.Logger
	database     database.Database
	uploads      *services.UploadGuard
	blockedWords []string
}

func newPostHandler(db database.Database, uploads *services.UploadGuard, blockedWords []string) postHandler {
	logger := log.With().Str("handlerName", "postHandler").Logger()

	return postHandler{
		responder:    NewResponder(logger),
		logger:       logger,
		database:     db,
		uploads:      uploads,
		blockedWords: blockedWords,
	}
}

// postInput is a create request after it has been read from either a form or
// a JSON body.
type postInput struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	CategoryID *uint    `json:"category_id"`
	Tags       []string `json:"tags"`
}

func (h postHandler) validateTitle(title string) error {
	if err := requireLength("title", title, minTitleLength, maxTitleLength); err != nil {
		return err
	}
	lower := strings.ToLower(title)
	for _, word := range h.blockedWords {
		if word != "" && strings.Contains(lower, word) {
			return errs.NewInvalidFieldError("title", fmt.Sprintf("contains a prohibited word: '%s'", word))
		}
	}
	return nil
}

func (h postHandler) validateInput(in postInput) error {
	if err := h.validateTitle(in.Title); err != nil {
		return err
	}
	if err := requireLength("content", in.Content, minContentLength, maxContentLength); err != nil {
		return err
	}
	if in.CategoryID == nil {
		return errs.NewMissingRequiredFieldError("category_id")
	}
	if *in.CategoryID < 1 {
		return errs.NewInvalidFieldError("category_id", "must be a positive integer")
	}
	return nil
}

func validateSearch(search string) error {
	if n := utf8.RuneCountInString(search); n < minSearchLength || n > maxSearchLength {
		return errs.NewInvalidFieldError("search", fmt.Sprintf("must be between %d and %d characters", minSearchLength, maxSearchLength))
	}
	if !searchPattern.MatchString(search) {
		return errs.NewInvalidFieldError("search", "may only contain letters, digits, spaces, '_' and '-'")
	}
	return nil
}

// listPosts returns one page of posts, optionally filtered by title
// @Summary List posts
// @Tags Posts
// @Produce json
// @Param search query string false "Title substring (2-50 characters)"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(5)
// @Param order_by query string false "id or title" default(id)
// @Param direction query string false "asc or desc" default(asc)
// @Success 200 {object} PaginatedPosts
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/posts [get]
func (h postHandler) listPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		search := strings.TrimSpace(q.Get("search"))
		if search == "" {
			// deprecated alias
			search = strings.TrimSpace(q.Get("text"))
		}
		if search != "" {
			if err := validateSearch(search); err != nil {
				h.responder.WriteError(w, err)
				return
			}
		}

		page, err := queryInt(r, "page", 1)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		perPage, err := queryInt(r, "per_page", database.DefaultPostsPerPage)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		result, err := h.database.PostRepo().Search(r.Context(), database.PostQuery{
			PageRequest: database.PageRequest{
				Page:      page,
				PerPage:   perPage,
				OrderBy:   q.Get("order_by"),
				Direction: q.Get("direction"),
			},
			Search: search,
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("search posts", "post", err))
			return
		}

		h.responder.WriteJSON(w, newPaginatedPosts(result, search))
	}
}

func (h postHandler) postsByTags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := models.NormalizeTagNames(splitValues(r.URL.Query()["tags"]))
		if len(names) == 0 {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError("tags"))
			return
		}

		posts, err := h.database.PostRepo().ByTags(r.Context(), names)
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find posts by tags", "post", err))
			return
		}
		h.responder.WriteJSON(w, posts)
	}
}

func (h postHandler) writePost(w http.ResponseWriter, r *http.Request, post *models.Post) {
	includeContent, err := queryBool(r, "include_content", true)
	if err != nil {
		h.responder.WriteError(w, err)
		return
	}
	if !includeContent {
		h.responder.WriteJSON(w, post.Summary())
		return
	}
	h.responder.WriteJSON(w, post)
}

// getPost retrieves a post by id
// @Summary Get post
// @Tags Posts
// @Param post_id path int true "Post ID"
// @Param include_content query bool false "Return the full post" default(true)
// @Success 200 {object} models.Post
// @Failure 404 {object} ErrorResponse "Post not found"
// @Router /api/v1/posts/{post_id} [get]
func (h postHandler) getPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := pathID(r, "postID")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		post, err := h.database.PostRepo().FindByID(r.Context(), postID)
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find post", "post", err))
			return
		}
		h.writePost(w, r, post)
	}
}

func (h postHandler) getPostBySlug() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if slug == "" {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError("slug"))
			return
		}

		post, err := h.database.PostRepo().FindBySlug(r.Context(), slug)
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find post", "post", err))
			return
		}
		h.writePost(w, r, post)
	}
}

// readPostForm fills in from a multipart or urlencoded form and stores the
// optional image. The returned file, if any, must be discarded when the post
// is not created.
func (h postHandler) readPostForm(r *http.Request, multipart bool) (postInput, *services.StoredFile, error) {
	var in postInput
	if multipart {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return in, nil, errs.NewMaxBodySizeExceededError(h.uploads.MaxBytes())
			}
			return in, nil, errs.NewMalformedPayloadError("multipart form", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return in, nil, errs.NewMalformedPayloadError("form", err)
	}

	in.Title = r.PostForm.Get("title")
	in.Content = r.PostForm.Get("content")
	in.Tags = splitValues(r.PostForm["tags"])
	if raw := strings.TrimSpace(r.PostForm.Get("category_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return in, nil, errs.NewInvalidFieldError("category_id", "must be a positive integer")
		}
		categoryID := uint(id)
		in.CategoryID = &categoryID
	}

	if err := h.validateInput(in); err != nil {
		return in, nil, err
	}

	if !multipart || r.MultipartForm == nil {
		return in, nil, nil
	}
	headers := r.MultipartForm.File["image"]
	if len(headers) == 0 {
		return in, nil, nil
	}

	file, err := headers[0].Open()
	if err != nil {
		return in, nil, errs.NewMalformedPayloadError("image", err)
	}
	defer file.Close()

	stored, err := h.uploads.Save(r.Context(), headers[0].Filename, headers[0].Header.Get("Content-Type"), file)
	if err != nil {
		return in, nil, err
	}
	return in, &stored, nil
}

// createPost stores a new post with a unique slug. Accepts a multipart form
// with an optional image, or JSON.
// @Summary Create post
// @Tags Posts
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Success 201 {object} models.Post
// @Failure 400 {object} ErrorResponse "Invalid input or unknown category"
// @Failure 403 {object} ErrorResponse "Editor role required"
// @Failure 409 {object} ErrorResponse "Post already exists"
// @Failure 413 {object} ErrorResponse "Image too large"
// @Router /api/v1/posts [post]
func (h postHandler) createPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := ctxGetUser(r.Context())
		if err != nil {
			h.responder.WriteError(w, errs.NewMissingTokenError())
			return
		}

		var (
			in    postInput
			image *services.StoredFile
		)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "multipart/form-data":
			// Room for the image plus the text fields.
			r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+multipartMemory)
			in, image, err = h.readPostForm(r, true)
		case "application/x-www-form-urlencoded":
			in, image, err = h.readPostForm(r, false)
		case "application/json", "":
			if err = decodeJSON(w, r, &in); err == nil {
				err = h.validateInput(in)
			}
		default:
			err = errs.NewInvalidContentTypeError(mediaType)
		}
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		post := &models.Post{
			Title:      in.Title,
			Content:    in.Content,
			UserID:     &user.ID,
			CategoryID: in.CategoryID,
		}
		if image != nil {
			post.ImageURL = &image.URL
		}

		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			if _, err := tx.CategoryRepo().FindByID(r.Context(), *in.CategoryID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errs.NewInvalidFieldError("category_id", "category does not exist")
				}
				return err
			}

			tags, err := tx.TagRepo().EnsureTags(r.Context(), in.Tags)
			if err != nil {
				return err
			}
			post.Tags = tags

			if post.Slug, err = tx.PostRepo().UniqueSlug(r.Context(), post.Title); err != nil {
				return err
			}
			return tx.PostRepo().Create(r.Context(), post)
		})
		if err != nil {
			if image != nil {
				h.uploads.Discard(r.Context(), image.Filename)
			}
			h.responder.WriteError(w, wrapDatabaseError("create post", "post", err))
			return
		}

		created, err := h.database.PostRepo().FindByID(r.Context(), post.ID)
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find post", "post", err))
			return
		}

		h.logger.Info().Uint("postID", created.ID).Str("slug", created.Slug).Msg("post created")
		h.responder.WriteJSONStatus(w, http.StatusCreated, created)
	}
}

// updatePost edits title and content. The slug keeps its original value.
func (h postHandler) updatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := pathID(r, "postID")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var req postUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if req.Title != nil {
			if err := h.validateTitle(*req.Title); err != nil {
				h.responder.WriteError(w, err)
				return
			}
		}
		if req.Content != nil {
			if err := requireLength("content", *req.Content, minContentLength, maxContentLength); err != nil {
				h.responder.WriteError(w, err)
				return
			}
		}

		var post *models.Post
		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			post, err = tx.PostRepo().Update(r.Context(), postID, database.PostChanges{
				Title:   req.Title,
				Content: req.Content,
			})
			return err
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("update post", "post", err))
			return
		}

		h.responder.WriteJSON(w, post)
	}
}

func (h postHandler) deletePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := pathID(r, "postID")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			return tx.PostRepo().Delete(r.Context(), postID)
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("delete post", "post", err))
			return
		}

		h.logger.Info().Uint("postID", postID).Msg("post deleted")
		h.responder.WriteNoContent(w)
	}
}
