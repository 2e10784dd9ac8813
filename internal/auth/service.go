// Package auth implements registration, login, and bearer-token
// issuance/verification for the API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/storage"
)

// Claims is the token payload: user id (subject), username, and role.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users  *storage.UserRepository
	store  *storage.Store
	secret []byte
	ttl    time.Duration
	cost   int
	log    *log.Logger
}

func NewService(users *storage.UserRepository, store *storage.Store, secret string, ttl time.Duration, bcryptCost int, logger *log.Logger) *Service {
	return &Service{
		users:  users,
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcryptCost,
		log:    logger.WithComponent(log.ComponentAuth),
	}
}

// Register creates a new user and returns it with a fresh token. The
// snapshot is saved immediately so a registration survives a crash before
// the next periodic save.
func (s *Service) Register(ctx context.Context, username, password, email string) (*core.User, string, error) {
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, "", core.ErrUsernameTaken
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, "", fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, username, string(hash), email, core.RoleUser)
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	s.store.SaveBestEffort(ctx)

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	s.log.InfoContext(ctx, "User registered",
		log.FieldUserID, user.ID,
		log.FieldUsername, user.Username,
		log.FieldOperation, log.OpRegister)

	return user, token, nil
}

// Login verifies credentials. Both unknown-username and wrong-password
// yield the same error so callers cannot enumerate accounts.
func (s *Service) Login(ctx context.Context, username, password string) (*core.User, string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		return nil, "", core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", core.ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	s.log.InfoContext(ctx, "User logged in",
		log.FieldUserID, user.ID,
		log.FieldUsername, user.Username,
		log.FieldOperation, log.OpLogin)

	return user, token, nil
}

// HashPassword hashes a password at the configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// GenerateToken issues a signed bearer token for the user.
func (s *Service) GenerateToken(user *core.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken decodes a bearer token. Any failure (expired, malformed,
// bad signature) yields the same uniform error with no further detail.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, core.ErrInvalidToken
	}
	return claims, nil
}

// UserID returns the numeric user id carried in the claims subject.
func (c *Claims) UserID() (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(c.Subject, "%d", &id); err != nil {
		return 0, core.ErrInvalidToken
	}
	return id, nil
}
