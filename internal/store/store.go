// Package store provides database operations using GORM.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/agenthub-platform/agenthub/internal/model"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// Store wraps GORM DB for database operations.
type Store struct {
	db *gorm.DB
}

// New creates a new Store with the given GORM DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying GORM DB for advanced queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// --- Users ---

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

// --- Access Tokens ---

func (s *Store) CreateAccessToken(ctx context.Context, token *model.AccessToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

// GetUserByTokenHash resolves a hashed bearer token to its user.
// Expired tokens resolve to ErrNotFound.
func (s *Store) GetUserByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	var token model.AccessToken
	err := s.db.WithContext(ctx).
		Preload("User").
		First(&token, "token_hash = ? AND expires_at > ?", tokenHash, time.Now()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if token.User == nil {
		return nil, ErrNotFound
	}
	return token.User, nil
}

func (s *Store) DeleteExpiredAccessTokens(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&model.AccessToken{}, "expires_at < ?", time.Now()).Error
}
