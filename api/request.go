package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/rpupo63/blog-backend/errs"
)

const maxJSONBodyBytes = 1 << 20

// decodeJSON reads a single JSON document from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errs.NewMaxBodySizeExceededError(maxErr.Limit)
		}
		return errs.NewInvalidJSONError(err)
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, key string) (uint, error) {
	raw := chi.URLParam(r, key)
	if raw == "" {
		return 0, errs.NewMissingRequiredFieldError(key)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errs.NewInvalidFieldError(key, "must be a positive integer")
	}
	return uint(id), nil
}

// queryInt returns def when the parameter is absent and a 400 when it is not
// an integer.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.NewInvalidFieldError(key, "must be an integer")
	}
	return v, nil
}

func queryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errs.NewInvalidFieldError(key, "must be true or false")
	}
	return v, nil
}

// requireLength checks the character count of value, treating an empty value
// as missing.
func requireLength(field, value string, min, max int) error {
	if strings.TrimSpace(value) == "" {
		return errs.NewMissingRequiredFieldError(field)
	}
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return errs.NewInvalidFieldError(field, fmt.Sprintf("must be between %d and %d characters", min, max))
	}
	return nil
}

// splitValues flattens repeated and comma separated values.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
