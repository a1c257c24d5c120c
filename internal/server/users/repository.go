// Package users keeps the demo server's accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/authpipe/internal/server/models"
)

type Repository interface {
	// Create stores user and assigns its ID. A taken username yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, userName string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}
