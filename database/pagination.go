package database

import (
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// PageRequest is an unsanitised page/sort request as received from a client.
type PageRequest struct {
	Page      int
	PerPage   int
	OrderBy   string
	Direction string
}

// PageResult is one page of a filtered, ordered query.
type PageResult[T any] struct {
	Items   []T
	Total   int64
	Page    int
	PerPage int
	Pages   int
	OrderBy string
	// Direction is "asc" or "desc".
	Direction string
}

func (p PageResult[T]) HasPrev() bool {
	return p.Page > 1
}

func (p PageResult[T]) HasNext() bool {
	return p.Page < p.Pages
}

// SanitizePage clamps page to at least 1 and perPage to [1, maxPerPage],
// substituting defaultPerPage for non-positive values.
func SanitizePage(page, perPage, defaultPerPage, maxPerPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// Ordering is an allow-list of sortable keys mapped to SQL expressions.
// TieBreaker is a unique column appended to every non-unique sort so pages
// stay stable.
type Ordering struct {
	Columns    map[string]string
	DefaultKey string
	TieBreaker string
}

// Resolve maps a client key and direction onto the allow-list. Unknown keys use
// the default key; anything other than "desc" sorts ascending.
func (o Ordering) Resolve(orderBy, direction string) (key, dir, clause string) {
	key = strings.ToLower(strings.TrimSpace(orderBy))
	expr, ok := o.Columns[key]
	if !ok {
		key = o.DefaultKey
		expr = o.Columns[key]
	}
	dir = NormalizeDirection(direction)
	clause = expr + " " + dir
	if o.TieBreaker != "" && expr != o.TieBreaker {
		clause += ", " + o.TieBreaker + " " + dir
	}
	return key, dir, clause
}

func NormalizeDirection(direction string) string {
	if strings.EqualFold(strings.TrimSpace(direction), "desc") {
		return "desc"
	}
	return "asc"
}

// Paginate counts the filtered query, clamps the page to the last one and loads
// that page. query must already carry its filters; preloads apply only to the
// item load.
func Paginate[T any](query *gorm.DB, req PageRequest, ordering Ordering, defaultPerPage, maxPerPage int, preloads ...string) (PageResult[T], error) {
	page, perPage := SanitizePage(req.Page, req.PerPage, defaultPerPage, maxPerPage)
	key, dir, order := ordering.Resolve(req.OrderBy, req.Direction)

	result := PageResult[T]{
		Items:     []T{},
		Page:      page,
		PerPage:   perPage,
		OrderBy:   key,
		Direction: dir,
	}

	base := query.Model(new(T)).Session(&gorm.Session{})
	if err := base.Count(&result.Total).Error; err != nil {
		return result, err
	}

	if result.Total == 0 {
		result.Page = 1
		return result, nil
	}

	result.Pages = int((result.Total + int64(perPage) - 1) / int64(perPage))
	if result.Page > result.Pages {
		result.Page = result.Pages
	}

	find := base
	for _, p := range preloads {
		find = find.Preload(p)
	}
	err := find.Order(order).
		Offset((result.Page - 1) * perPage).
		Limit(perPage).
		Find(&result.Items).Error
	return result, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards; pair with ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// containsPattern builds a case-insensitive substring pattern for
// "LOWER(col) LIKE ? ESCAPE '\'".
func containsPattern(s string) string {
	return "%" + escapeLike(strings.ToLower(s)) + "%"
}
