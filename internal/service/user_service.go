package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/rs/zerolog"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

type SignupRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"`
}

type UserService struct {
	users  domain.UserStore
	hasher PasswordHasher
	tokens domain.TokenIssuer
	logger *zerolog.Logger
}

func NewUserService(users domain.UserStore, hasher PasswordHasher, tokens domain.TokenIssuer, logger *zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

func (s *UserService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, domain.InvalidInput("username is required")
	}
	if utf8.RuneCountInString(req.Password) < models.MinPasswordLength {
		return nil, domain.InvalidInput("password must be at least %d characters", models.MinPasswordLength)
	}
	email := strings.TrimSpace(req.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, domain.InvalidInput("invalid email")
		}
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, domain.InvalidInput("username taken")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:       username,
		Email:          email,
		PasswordHash:   hash,
		TelegramChatID: req.TelegramChatID,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// lost a race on the unique index
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, domain.InvalidInput("username taken")
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user signed up")
	return user, nil
}

// Login returns an access token for valid credentials. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrUnauthorized
		}
		return "", nil, err
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return "", nil, domain.ErrUnauthorized
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetUserByID(ctx, id)
}
