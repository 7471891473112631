package database

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

const (
	fallbackSlug  = "post"
	maxBaseLength = 140
)

// BaseSlug is the URL-safe form of title: lower-case, hyphen separated,
// transliterated. Titles with no usable characters become "post".
func BaseSlug(title string) string {
	base := slug.Make(title)
	if len(base) > maxBaseLength {
		base = strings.Trim(base[:maxBaseLength], "-")
	}
	if base == "" {
		return fallbackSlug
	}
	return base
}

// NextAvailableSlug returns base if it is not taken, otherwise the first of
// base-2, base-3, ... that is not taken.
func NextAvailableSlug(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		used[s] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}
