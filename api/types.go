package api

import (
	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/models"
)

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	authHandler     authHandler
	postHandler     postHandler
	tagHandler      tagHandler
	categoryHandler categoryHandler
	uploadHandler   uploadHandler
	adminHandler    adminHandler
	healthHandler   healthHandler
}

// ErrorResponse represents an error response from the API
// @Description Error response structure
type ErrorResponse struct {
	Error   string `json:"error" example:"Internal Server Error"`
	Status  string `json:"status" example:"error"`
	Field   string `json:"field,omitempty" example:"title"`
	Details string `json:"details,omitempty" example:"Additional error details"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user,omitempty"`
}

type postUpdateRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// PaginatedPosts is one page of a post listing plus the parameters that
// produced it.
type PaginatedPosts struct {
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"total_pages"`
	HasPrev    bool          `json:"has_prev"`
	HasNext    bool          `json:"has_next"`
	OrderBy    string        `json:"order_by"`
	Direction  string        `json:"direction"`
	Search     *string       `json:"search"`
	Items      []models.Post `json:"items"`
}

func newPaginatedPosts(result database.PageResult[models.Post], search string) PaginatedPosts {
	page := PaginatedPosts{
		Page:       result.Page,
		PerPage:    result.PerPage,
		Total:      result.Total,
		TotalPages: result.Pages,
		HasPrev:    result.HasPrev(),
		HasNext:    result.HasNext(),
		OrderBy:    result.OrderBy,
		Direction:  result.Direction,
		Items:      result.Items,
	}
	if search != "" {
		page.Search = &search
	}
	return page
}

type TagPage struct {
	Total   int64        `json:"total"`
	Pages   int          `json:"pages"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Items   []models.Tag `json:"items"`
}

type tagRequest struct {
	Name string `json:"name"`
}

type categoryRequest struct {
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

type blockedIPRequest struct {
	IP string `json:"ip"`
}
