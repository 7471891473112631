package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/rpupo63/blog-backend/models"
)

const (
	DefaultPostsPerPage = 5
	MaxPostsPerPage     = 50
)

var postOrdering = Ordering{
	Columns: map[string]string{
		"id":    "id",
		"title": "LOWER(title)",
	},
	DefaultKey: "id",
	TieBreaker: "id",
}

var postPreloads = []string{"Tags", "Category", "User"}

// PostQuery filters and orders a post listing. Search matches a case-insensitive
// substring of the title.
type PostQuery struct {
	PageRequest
	Search string
}

// PostChanges holds the editable fields of a post; nil fields are left alone.
type PostChanges struct {
	Title   *string
	Content *string
}

type PostRepo struct {
	db *gorm.DB
}

func NewPostRepo(db *gorm.DB) *PostRepo {
	return &PostRepo{db}
}

func (r *PostRepo) preloaded(ctx context.Context) *gorm.DB {
	tx := r.db.WithContext(ctx)
	for _, p := range postPreloads {
		tx = tx.Preload(p)
	}
	return tx
}

func (r *PostRepo) Search(ctx context.Context, q PostQuery) (PageResult[models.Post], error) {
	query := r.db.WithContext(ctx)
	if q.Search != "" {
		query = query.Where("LOWER(title) LIKE ? ESCAPE '\\'", containsPattern(q.Search))
	}
	return Paginate[models.Post](query, q.PageRequest, postOrdering, DefaultPostsPerPage, MaxPostsPerPage, postPreloads...)
}

// ByTags returns posts carrying any of the named tags, newest id first.
func (r *PostRepo) ByTags(ctx context.Context, names []string) ([]models.Post, error) {
	names = models.NormalizeTagNames(names)
	posts := []models.Post{}
	if len(names) == 0 {
		return posts, nil
	}

	tagged := r.db.Session(&gorm.Session{NewDB: true}).
		Table("post_tags").
		Select("post_tags.post_id").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("tags.name IN ?", names)

	err := r.preloaded(ctx).
		Where("id IN (?)", tagged).
		Order("id desc").
		Find(&posts).Error
	return posts, err
}

func (r *PostRepo) FindByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.preloaded(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *PostRepo) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	if err := r.preloaded(ctx).Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// UniqueSlug derives a slug from title that no stored post uses yet.
func (r *PostRepo) UniqueSlug(ctx context.Context, title string) (string, error) {
	base := BaseSlug(title)

	var taken []string
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("slug LIKE ? ESCAPE '\\'", escapeLike(base)+"%").
		Pluck("slug", &taken).Error
	if err != nil {
		return "", err
	}
	return NextAvailableSlug(base, taken), nil
}

// Create inserts the post and its tag links. Tags must already exist.
func (r *PostRepo) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit("Tags.*").Create(post).Error
}

// Update applies changes without touching the slug.
func (r *PostRepo) Update(ctx context.Context, id uint, changes PostChanges) (*models.Post, error) {
	post, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if changes.Title != nil {
		updates["title"] = *changes.Title
	}
	if changes.Content != nil {
		updates["content"] = *changes.Content
	}
	if len(updates) == 0 {
		return post, nil
	}

	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// Delete removes the post together with its tag links.
func (r *PostRepo) Delete(ctx context.Context, id uint) error {
	var post models.Post
	tx := r.db.WithContext(ctx)
	if err := tx.First(&post, id).Error; err != nil {
		return err
	}
	if err := tx.Model(&post).Association("Tags").Clear(); err != nil {
		return err
	}
	return tx.Delete(&post).Error
}

// ClearCategory detaches every post from the category.
func (r *PostRepo) ClearCategory(ctx context.Context, categoryID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("category_id = ?", categoryID).
		Update("category_id", nil).Error
}
