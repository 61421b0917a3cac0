package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

// tokenBytes is the entropy of a bearer token; tokens are its hex encoding.
const tokenBytes = 16

// Service issues and resolves opaque bearer tokens. A user holds at most one
// token: logging in again invalidates the previous one.
type Service struct {
	users  interfaces.UserStore
	tokens interfaces.TokenStore
	log    *logger.Logger
}

func NewService(users interfaces.UserStore, tokens interfaces.TokenStore, log *logger.Logger) *Service {
	return &Service{users: users, tokens: tokens, log: log.With("component", "auth")}
}

// Login checks the password and issues a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *types.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, types.ErrNotFound) {
		return "", nil, ErrUnknownEmail
	}
	if err != nil {
		return "", nil, err
	}
	if !CheckPassword(user.Password, password) {
		s.log.Info("login rejected", "user_id", user.ID)
		return "", nil, ErrWrongPassword
	}

	token, err := NewToken()
	if err != nil {
		return "", nil, err
	}
	if err := s.tokens.ReplaceToken(ctx, user.ID, token); err != nil {
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}
	s.log.Info("login", "user_id", user.ID)
	return token, user, nil
}

// Authenticate resolves a bearer token. An optional "Bearer " prefix is accepted.
func (s *Service) Authenticate(ctx context.Context, token string) (*types.User, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrMissingToken
	}
	user, err := s.tokens.GetUserByToken(ctx, token)
	if errors.Is(err, types.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// NewToken returns a random 32 character hex token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword returns the bcrypt hash stored in users.password.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches a stored bcrypt hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
