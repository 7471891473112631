package models

type Category struct {
	ID   uint   `json:"id" db:"id" gorm:"column:id;primaryKey"`
	Name string `json:"name" db:"name" gorm:"column:name;type:varchar(100);not null;uniqueIndex"`
	Slug string `json:"slug" db:"slug" gorm:"column:slug;type:varchar(100);not null;uniqueIndex"`
}

// All returns every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Tag{},
		&Post{},
	}
}
