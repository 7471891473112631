package api

import (
	"time"

	"github.com/rpupo63/blog-backend/config"
	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/services"
)

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(database database.Database, cfg *config.Config, tokens *services.TokenIssuer, uploads *services.UploadGuard, blocklist *ipBlocklist, startupTime time.Time) *routeHandlers {
	return &routeHandlers{
		authHandler:     newAuthHandler(database, tokens, cfg.LoginTokenTTL(), cfg.AccessTokenTTL()),
		postHandler:     newPostHandler(database, uploads, cfg.TitleBlocklist()),
		tagHandler:      newTagHandler(database),
		categoryHandler: newCategoryHandler(database),
		uploadHandler:   newUploadHandler(uploads),
		adminHandler:    newAdminHandler(blocklist),
		healthHandler:   newHealthHandler(database, startupTime),
	}
}
