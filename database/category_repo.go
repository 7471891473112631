package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/rpupo63/blog-backend/models"
)

// CategoryChanges holds editable fields; nil fields are left alone.
type CategoryChanges struct {
	Name *string
	Slug *string
}

type CategoryRepo struct {
	db *gorm.DB
}

func NewCategoryRepo(db *gorm.DB) *CategoryRepo {
	return &CategoryRepo{db}
}

func (r *CategoryRepo) List(ctx context.Context, skip, limit int) ([]models.Category, error) {
	categories := []models.Category{}
	err := r.db.WithContext(ctx).
		Order("id").
		Offset(skip).
		Limit(limit).
		Find(&categories).Error
	return categories, err
}

func (r *CategoryRepo) FindByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepo) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepo) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *CategoryRepo) Update(ctx context.Context, id uint, changes CategoryChanges) (*models.Category, error) {
	category, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.Name != nil {
		category.Name = *changes.Name
	}
	if changes.Slug != nil {
		category.Slug = *changes.Slug
	}
	if err := r.db.WithContext(ctx).Save(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// Delete removes the category after detaching its posts, which keep existing
// with no category.
func (r *CategoryRepo) Delete(ctx context.Context, id uint) error {
	category, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := NewPostRepo(r.db).ClearCategory(ctx, category.ID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(category).Error
}
