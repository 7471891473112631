package api

import (
	"context"
	"errors"

	"github.com/rpupo63/blog-backend/models"
)

type keyType string

const (
	userKey      keyType = "user"
	requestIDKey keyType = "requestID"
)

// ctxWithUser adds the authenticated user to the context
func ctxWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// ctxGetUser retrieves the authenticated user from the context
func ctxGetUser(ctx context.Context) (*models.User, error) {
	user, ok := ctx.Value(userKey).(*models.User)
	if !ok || user == nil {
		return nil, errors.New("user not found in context")
	}
	return user, nil
}

func ctxWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func ctxGetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}
