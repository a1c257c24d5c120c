// Package services contains server-side business logic. UserService
// handles registration, login, logout and refresh-token rotation.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/common"
	"github.com/dmitrijs2005/authpipe/internal/server/auth"
	"github.com/dmitrijs2005/authpipe/internal/server/config"
	"github.com/dmitrijs2005/authpipe/internal/server/models"
	"github.com/dmitrijs2005/authpipe/internal/server/refreshtokens"
	"github.com/dmitrijs2005/authpipe/internal/server/users"
	"golang.org/x/crypto/bcrypt"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type UserService struct {
	users                        users.Repository
	refreshTokens                refreshtokens.Repository
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	bcryptCost                   int
	now                          func() time.Time
}

func NewUserService(u users.Repository, rt refreshtokens.Repository, cfg *config.Config) *UserService {
	return &UserService{
		users:                        u,
		refreshTokens:                rt,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		bcryptCost:                   bcrypt.DefaultCost,
		now:                          time.Now,
	}
}

// Register creates a user with a bcrypt hash of password.
func (s *UserService) Register(ctx context.Context, username string, password []byte) (*models.User, error) {
	if username == "" || len(password) == 0 {
		return nil, fmt.Errorf("%w: username and password required", common.ErrorInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, &models.User{UserName: username, PasswordHash: hash})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login checks the password and issues a new TokenPair.
func (s *UserService) Login(ctx context.Context, username string, password []byte) (*TokenPair, error) {
	user, err := s.users.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, password) != nil {
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.newTokenPair(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshTokens.Create(ctx, user.ID, pair.RefreshToken, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// RefreshToken validates a refresh token, rotates it and returns a fresh
// TokenPair. Unknown or already-rotated tokens yield common.ErrorUnauthorized;
// expired ones yield common.ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrorUnauthorized
	}

	token, err := s.refreshTokens.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expired(s.now()) {
		_ = s.refreshTokens.Delete(ctx, refreshToken)
		return nil, common.ErrRefreshTokenExpired
	}

	pair, err := s.newTokenPair(token.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshTokens.Rotate(ctx, refreshToken, token.UserID, pair.RefreshToken, s.refreshTokenValidityDuration); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error rotating refresh token: %w", err)
	}
	return pair, nil
}

// Logout revokes refreshToken. Unknown tokens are ignored.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refreshTokens.Delete(ctx, refreshToken)
}

// Authenticate returns the user an access token was issued to.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *UserService) newTokenPair(userID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
