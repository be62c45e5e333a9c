package repositories

import (
	"context"
	"errors"
	"time"

	"taskhub/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Create reports ErrDuplicateKey when the username or email is taken.
func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return classify("create user", r.db.WithContext(ctx).Create(user).Error)
}

func (r *GormUserRepository) findOne(ctx context.Context, op, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return &user, nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, "find user", "id = ?", id)
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "find user by email", "email = ?", email)
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "find user by username", "username = ?", username)
}

func (r *GormUserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", now).Error
	return classify("touch last login", err)
}

type TokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	FindValid(ctx context.Context, refreshToken uuid.UUID) (*models.Token, error)
	Revoke(ctx context.Context, refreshToken uuid.UUID) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type GormTokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *GormTokenRepository {
	return &GormTokenRepository{db: db}
}

func (r *GormTokenRepository) Create(ctx context.Context, token *models.Token) error {
	return classify("create token", r.db.WithContext(ctx).Create(token).Error)
}

// FindValid returns nil, nil for unknown or expired refresh tokens.
func (r *GormTokenRepository) FindValid(ctx context.Context, refreshToken uuid.UUID) (*models.Token, error) {
	var token models.Token
	err := r.db.WithContext(ctx).
		Where("refresh_token = ? AND expires_at > ?", refreshToken, time.Now()).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find token", err)
	}
	return &token, nil
}

func (r *GormTokenRepository) Revoke(ctx context.Context, refreshToken uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("refresh_token = ?", refreshToken).Delete(&models.Token{})
	if res.Error != nil {
		return false, classify("revoke token", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&models.Token{})
	if res.Error != nil {
		return 0, classify("delete expired tokens", res.Error)
	}
	return res.RowsAffected, nil
}
