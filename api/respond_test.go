package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rpupo63/blog-backend/errs"
)

func TestWriteError_KeepsCausesOutOfBody(t *testing.T) {
	responder := NewResponder(zerolog.Nop())

	tests := []struct {
		name   string
		err    error
		status int
		hidden string
	}{
		{
			name:   "unique violation",
			err:    errs.NewDatabaseError("create", "post", errors.New("UNIQUE constraint failed: posts.slug")),
			status: http.StatusConflict,
			hidden: "UNIQUE constraint",
		},
		{
			name:   "foreign key violation",
			err:    errs.NewDatabaseError("create", "post", errors.New(`violates foreign key constraint "fk_posts_category"`)),
			status: http.StatusBadRequest,
			hidden: "fk_posts_category",
		},
		{
			name:   "connection failure",
			err:    errs.NewDatabaseError("list", "posts", errors.New("dial tcp 10.0.0.3:5432: connection refused")),
			status: http.StatusInternalServerError,
			hidden: "10.0.0.3",
		},
		{
			name:   "bad json",
			err:    errs.NewInvalidJSONError(errors.New("invalid character 'x' looking for beginning of value")),
			status: http.StatusBadRequest,
			hidden: "invalid character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			responder.WriteError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), tt.hidden)
			assert.NotContains(t, decode[map[string]any](t, rec), "cause")
		})
	}
}
