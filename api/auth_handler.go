package api

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/errs"
	"github.com/rpupo63/blog-backend/models"
	"github.com/rpupo63/blog-backend/services"
)

type authHandler struct {
	responder Responder
	logger    zerolog.Logger
	database  database.Database
	tokens    *services.TokenIssuer
	loginTTL  time.Duration
	accessTTL time.Duration
}

func newAuthHandler(db database.Database, tokens *services.TokenIssuer, loginTTL, accessTTL time.Duration) authHandler {
	logger := log.With().Str("handlerName", "authHandler").Logger()

	return authHandler{
		responder: NewResponder(logger),
		logger:    logger,
		database:  db,
		tokens:    tokens,
		loginTTL:  loginTTL,
		accessTTL: accessTTL,
	}
}

// validEmail accepts a bare address only, not "Name <addr>".
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// verifyCredentials returns the active user owning email and password. Every
// failure looks the same to the caller.
func (h authHandler) verifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := h.database.UserRepo().FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewInvalidCredentialsError()
	}
	if err != nil {
		return nil, wrapDatabaseError("find user", "user", err)
	}
	if !services.CheckPassword(user.HashedPassword, password) || !user.IsActive {
		return nil, errs.NewInvalidCredentialsError()
	}
	return user, nil
}

// register creates a user account with the default role
// @Summary Register
// @Tags Auth
// @Accept json
// @Produce json
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Email already registered"
// @Router /api/v1/auth/register [post]
func (h authHandler) register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		email := models.NormalizeEmail(req.Email)
		if email == "" {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError("email"))
			return
		}
		if !validEmail(email) {
			h.responder.WriteError(w, errs.NewInvalidFieldError("email", "not a valid email address"))
			return
		}
		if n := len(req.Password); n < services.MinPasswordLength || n > services.MaxPasswordLength {
			h.responder.WriteError(w, errs.NewInvalidFieldError("password", "must be between 6 and 72 characters"))
			return
		}

		hashed, err := services.HashPassword(req.Password)
		if err != nil {
			h.responder.WriteError(w, errs.NewInternalErrorWithCause("could not hash password", err))
			return
		}

		user := &models.User{
			Email:          email,
			HashedPassword: hashed,
			FullName:       req.FullName,
			Role:           models.RoleUser,
			IsActive:       true,
		}
		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			if _, err := tx.UserRepo().FindByEmail(r.Context(), email); err == nil {
				return errs.NewConflictError("email already registered")
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return tx.UserRepo().Create(r.Context(), user)
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("create user", "user", err))
			return
		}

		h.logger.Info().Uint("userID", user.ID).Msg("user registered")
		h.responder.WriteJSONStatus(w, http.StatusCreated, user)
	}
}

// login exchanges JSON credentials for a long lived token
// @Summary Login
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} tokenResponse
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Router /api/v1/auth/login [post]
func (h authHandler) login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		user, err := h.verifyCredentials(r.Context(), req.Email, req.Password)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		token, _, err := h.tokens.Issue(user.ID, h.loginTTL)
		if err != nil {
			h.responder.WriteError(w, errs.NewInternalErrorWithCause("could not issue token", err))
			return
		}

		h.responder.WriteJSON(w, tokenResponse{AccessToken: token, TokenType: "bearer", User: user})
	}
}

// token is the OAuth2 password-flow endpoint; it reads username and password
// from a form body.
func (h authHandler) token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		if err := r.ParseForm(); err != nil {
			h.responder.WriteError(w, errs.NewMalformedPayloadError("form", err))
			return
		}

		username := strings.TrimSpace(r.PostForm.Get("username"))
		password := r.PostForm.Get("password")
		if username == "" {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError("username"))
			return
		}
		if password == "" {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError("password"))
			return
		}

		user, err := h.verifyCredentials(r.Context(), username, password)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		token, _, err := h.tokens.Issue(user.ID, h.accessTTL)
		if err != nil {
			h.responder.WriteError(w, errs.NewInternalErrorWithCause("could not issue token", err))
			return
		}

		h.responder.WriteJSON(w, tokenResponse{AccessToken: token, TokenType: "bearer"})
	}
}

func (h authHandler) me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := ctxGetUser(r.Context())
		if err != nil {
			h.responder.WriteError(w, errs.NewMissingTokenError())
			return
		}
		h.responder.WriteJSON(w, user)
	}
}

// setRole changes the role of another user
// @Summary Set user role
// @Tags Auth
// @Param user_id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse "Invalid role"
// @Failure 403 {object} ErrorResponse "Admin role required"
// @Failure 404 {object} ErrorResponse "User not found"
// @Router /api/v1/auth/role/{user_id} [put]
func (h authHandler) setRole() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathID(r, "userID")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		role, err := models.ParseRole(req.Role)
		if err != nil {
			h.responder.WriteError(w, errs.NewInvalidFieldError("role", "must be one of user, editor, admin"))
			return
		}

		var user *models.User
		err = h.database.Transaction(r.Context(), func(tx database.Database) error {
			user, err = tx.UserRepo().SetRole(r.Context(), userID, role)
			return err
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("update role", "user", err))
			return
		}

		h.logger.Info().Uint("userID", user.ID).Str("role", string(role)).Msg("role changed")
		h.responder.WriteJSON(w, user)
	}
}
