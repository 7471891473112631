package models

import "strings"

// Tag is a free-form label shared between posts. Names are stored normalised.
type Tag struct {
	ID   uint   `json:"id" db:"id" gorm:"column:id;primaryKey"`
	Name string `json:"name" db:"name" gorm:"column:name;type:varchar(50);not null;uniqueIndex"`
}

// NormalizeTagName trims and lower-cases a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeTagNames normalises every name, dropping empties and duplicates while
// keeping first-seen order.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		name := NormalizeTagName(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
