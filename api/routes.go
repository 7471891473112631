package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rpupo63/blog-backend/models"
)

// setupRoutes mounts the versioned API. Reads are public unless noted; every
// write needs at least the role named on its group.
func setupRoutes(r chi.Router, handlers *routeHandlers, auth authMiddleware) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handlers.authHandler.register())
			r.Post("/login", handlers.authHandler.login())
			r.Post("/token", handlers.authHandler.token())

			r.Group(func(r chi.Router) {
				r.Use(auth.authenticate)
				r.Get("/me", handlers.authHandler.me())
				r.With(auth.requireRole(models.RoleAdmin)).Put("/role/{userID}", handlers.authHandler.setRole())
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", handlers.postHandler.listPosts())
			r.Get("/by-tags", handlers.postHandler.postsByTags())
			r.Get("/post/{slug}", handlers.postHandler.getPostBySlug())
			r.Get("/{postID}", handlers.postHandler.getPost())

			r.Group(func(r chi.Router) {
				r.Use(auth.authenticate)
				r.With(auth.requireRole(models.RoleEditor)).Post("/", handlers.postHandler.createPost())
				r.With(auth.requireRole(models.RoleEditor)).Put("/{postID}", handlers.postHandler.updatePost())
				r.With(auth.requireRole(models.RoleAdmin)).Delete("/{postID}", handlers.postHandler.deletePost())
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", handlers.tagHandler.listTags())

			r.Group(func(r chi.Router) {
				r.Use(auth.authenticate)
				r.Get("/popular/top", handlers.tagHandler.mostPopular())
				r.Delete("/{tagID}", handlers.tagHandler.deleteTag())
				r.With(auth.requireRole(models.RoleEditor)).Post("/", handlers.tagHandler.createTag())
				r.With(auth.requireRole(models.RoleEditor)).Put("/{tagID}", handlers.tagHandler.updateTag())
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", handlers.categoryHandler.listCategories())
			r.Get("/{categoryID}", handlers.categoryHandler.getCategory())

			r.Group(func(r chi.Router) {
				r.Use(auth.authenticate)
				r.With(auth.requireRole(models.RoleEditor)).Post("/", handlers.categoryHandler.createCategory())
				r.With(auth.requireRole(models.RoleEditor)).Put("/{categoryID}", handlers.categoryHandler.updateCategory())
				r.With(auth.requireRole(models.RoleAdmin)).Delete("/{categoryID}", handlers.categoryHandler.deleteCategory())
			})
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/bytes", handlers.uploadHandler.uploadBytes())
			r.Post("/file", handlers.uploadHandler.uploadFile())
			r.With(auth.authenticate).Post("/save", handlers.uploadHandler.saveFile())
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.authenticate)
			r.Use(auth.requireRole(models.RoleAdmin))
			r.Get("/blocked-ips", handlers.adminHandler.listBlockedIPs())
			r.Post("/blocked-ips", handlers.adminHandler.blockIP())
			r.Delete("/blocked-ips/{ip}", handlers.adminHandler.unblockIP())
		})
	})

	r.Get("/healthz", handlers.healthHandler.healthz())
}

// setupMediaRoutes serves stored uploads when they live on local disk.
func setupMediaRoutes(r chi.Router, prefix, dir string) {
	prefix = "/" + strings.Trim(prefix, "/")
	fs := http.StripPrefix(prefix, http.FileServer(filesOnly{http.Dir(dir)}))
	r.Get(prefix+"/*", fs.ServeHTTP)
}

// filesOnly hides directories so the media mount never lists stored names.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
