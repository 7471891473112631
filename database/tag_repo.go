package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/rpupo63/blog-backend/models"
)

var tagOrdering = Ordering{
	Columns: map[string]string{
		"id":   "id",
		"name": "name",
	},
	DefaultKey: "id",
	TieBreaker: "id",
}

type TagQuery struct {
	PageRequest
	Search string
}

// TagUsage is a tag with the number of posts that carry it.
type TagUsage struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Uses int64  `json:"uses"`
}

type TagRepo struct {
	db *gorm.DB
}

func NewTagRepo(db *gorm.DB) *TagRepo {
	return &TagRepo{db}
}

func (r *TagRepo) List(ctx context.Context, q TagQuery) (PageResult[models.Tag], error) {
	query := r.db.WithContext(ctx)
	if q.Search != "" {
		query = query.Where("LOWER(name) LIKE ? ESCAPE '\\'", containsPattern(q.Search))
	}
	return Paginate[models.Tag](query, q.PageRequest, tagOrdering, DefaultPerPage, MaxPerPage)
}

func (r *TagRepo) FindByID(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *TagRepo) FindByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	err := r.db.WithContext(ctx).
		Where("name = ?", models.NormalizeTagName(name)).
		First(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// Create inserts a tag; a name already in use surfaces as gorm.ErrDuplicatedKey.
func (r *TagRepo) Create(ctx context.Context, name string) (*models.Tag, error) {
	tag := models.Tag{Name: models.NormalizeTagName(name)}
	if err := r.db.WithContext(ctx).Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *TagRepo) Rename(ctx context.Context, id uint, name string) (*models.Tag, error) {
	tag, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tag.Name = models.NormalizeTagName(name)
	if err := r.db.WithContext(ctx).Save(tag).Error; err != nil {
		return nil, err
	}
	return tag, nil
}

// Delete removes the tag and every post membership it had.
func (r *TagRepo) Delete(ctx context.Context, id uint) error {
	tx := r.db.WithContext(ctx)
	tag, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM post_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
		return err
	}
	return tx.Delete(tag).Error
}

// EnsureTags returns the tags for names, creating the ones that do not exist.
// Names are matched after normalisation, so "Go" and "go" are one tag.
func (r *TagRepo) EnsureTags(ctx context.Context, names []string) ([]models.Tag, error) {
	names = models.NormalizeTagNames(names)
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var tag models.Tag
		err := r.db.WithContext(ctx).
			Where(models.Tag{Name: name}).
			FirstOrCreate(&tag).Error
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// MostPopular returns the tag attached to the most posts; ties go to the lowest
// id. gorm.ErrRecordNotFound when no tag is in use.
func (r *TagRepo) MostPopular(ctx context.Context) (*TagUsage, error) {
	var usage TagUsage
	res := r.db.WithContext(ctx).
		Table("tags").
		Select("tags.id AS id, tags.name AS name, COUNT(post_tags.post_id) AS uses").
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Group("tags.id, tags.name").
		Order("uses DESC, tags.id ASC").
		Limit(1).
		Scan(&usage)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &usage, nil
}
