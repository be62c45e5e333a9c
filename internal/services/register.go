package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"
)

type RegistrationRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=50"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8,max=72"`
	FirstName  string `json:"first_name" binding:"required,min=1,max=50"`
	LastName   string `json:"last_name" binding:"required,min=1,max=50"`
	Department string `json:"department,omitempty" binding:"max=100"`
	Position   string `json:"position,omitempty" binding:"max=100"`
}

type RegisterService interface {
	RegisterUser(ctx context.Context, req RegistrationRequest) (*models.User, error)
}

type RegisterServiceImpl struct {
	users       repositories.UserRepository
	credentials CredentialStore
	logger      *slog.Logger
}

func NewRegisterService(users repositories.UserRepository, credentials CredentialStore, logger *slog.Logger) *RegisterServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterServiceImpl{users: users, credentials: credentials, logger: logger}
}

func (s *RegisterServiceImpl) RegisterUser(ctx context.Context, req RegistrationRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if err := s.checkAvailable(ctx, req.Email, req.Username); err != nil {
		return nil, err
	}

	hash, err := s.credentials.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   hash,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Department: strings.TrimSpace(req.Department),
		Position:   strings.TrimSpace(req.Position),
		IsActive:   true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			// Lost a race with a concurrent registration; report which field.
			if availErr := s.checkAvailable(ctx, req.Email, req.Username); availErr != nil {
				return nil, availErr
			}
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID.String()))
	return user, nil
}

func (s *RegisterServiceImpl) checkAvailable(ctx context.Context, email, username string) error {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}

	existing, err = s.users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrUsernameTaken
	}
	return nil
}
