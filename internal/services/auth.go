package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AccessClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

func NewTokenManager(config TokenConfig) *TokenManager {
	if config.AccessTTL <= 0 {
		config.AccessTTL = 15 * time.Minute
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{config: config, now: time.Now}
}

func (m *TokenManager) IssueAccessToken(userID uuid.UUID) (string, error) {
	now := m.now()
	claims := AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
}

// ParseAccessToken verifies signature, issuer and expiry and returns the user
// the token was issued to.
func (m *TokenManager) ParseAccessToken(token string) (uuid.UUID, error) {
	var claims AccessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(m.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := uuid.FromString(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad user_id claim", ErrInvalidToken)
	}
	return userID, nil
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type AuthServiceImpl struct {
	users       repositories.UserRepository
	tokens      repositories.TokenRepository
	credentials CredentialStore
	manager     *TokenManager
	logger      *slog.Logger
}

func NewAuthService(users repositories.UserRepository, tokens repositories.TokenRepository, credentials CredentialStore, manager *TokenManager, logger *slog.Logger) *AuthServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthServiceImpl{
		users:       users,
		tokens:      tokens,
		credentials: credentials,
		manager:     manager,
		logger:      logger,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !s.credentials.Verify(password, user.Password) {
		return nil, nil, ErrInvalidLogin
	}
	if !user.IsActive {
		return nil, nil, ErrAccountSuspended
	}

	pair, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("update last login", slog.String("user_id", user.ID.String()), slog.Any("error", err))
	} else {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token is revoked so each refresh token works once.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	id, err := uuid.FromString(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	token, err := s.tokens.FindValid(ctx, id)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.tokens.Revoke(ctx, id)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, ErrInvalidToken
	}
	return s.issue(ctx, token.UserId)
}

// Logout revokes the refresh token. Unknown tokens are not an error.
func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	id, err := uuid.FromString(refreshToken)
	if err != nil {
		return nil
	}
	_, err = s.tokens.Revoke(ctx, id)
	return err
}

func (s *AuthServiceImpl) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *AuthServiceImpl) issue(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	accessToken, err := s.manager.IssueAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	token := &models.Token{
		UserId:       userID,
		RefreshToken: refreshID,
		ExpiresAt:    time.Now().Add(s.manager.config.RefreshTTL),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshID.String(),
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.manager.config.AccessTTL.Seconds()),
	}, nil
}

