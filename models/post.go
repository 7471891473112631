package models

import "time"

// Post is a blog entry. Slug is assigned once at creation and never changes.
type Post struct {
	ID         uint      `json:"id" db:"id" gorm:"column:id;primaryKey"`
	Title      string    `json:"title" db:"title" gorm:"column:title;type:varchar(100);not null;index;uniqueIndex:unique_post_title"`
	Slug       string    `json:"slug" db:"slug" gorm:"column:slug;type:varchar(150);not null;uniqueIndex"`
	Content    string    `json:"content" db:"content" gorm:"column:content;type:text;not null;uniqueIndex:unique_post_title"`
	ImageURL   *string   `json:"image_url" db:"image_url" gorm:"column:image_url;type:varchar(300)"`
	CreatedAt  time.Time `json:"created_at" db:"created_at" gorm:"column:created_at"`
	UserID     *uint     `json:"user_id" db:"user_id" gorm:"column:user_id;index"`
	CategoryID *uint     `json:"category_id" db:"category_id" gorm:"column:category_id;index"`

	User     *User     `json:"author,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
	Category *Category `json:"category" gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`
	Tags     []Tag     `json:"tags" gorm:"many2many:post_tags;constraint:OnDelete:CASCADE"`
}

// PostSummary is the reduced view returned when content is not requested.
type PostSummary struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func (p Post) Summary() PostSummary {
	return PostSummary{ID: p.ID, Title: p.Title}
}
