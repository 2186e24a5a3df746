// Package auth registers users and issues and revokes session tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Brownie44l1/leuko-api/internal/repositories/sql/user"
	"github.com/Brownie44l1/leuko-api/pkg/cache"
	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const TokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMissingFields      = errors.New("first name, email and password are required")
)

type Authenticator interface {
	Register(req *RegisterRequest) error
	Login(req *LoginRequest) (*LoginResponse, error)
	Logout(token string) error
	Verify(token string) (*Claims, error)
}

type Service struct {
	users   user.Repository
	secret  []byte
	revoked *cache.Cache
	now     func() time.Time
}

func NewService(users user.Repository, secret string, revoked *cache.Cache) *Service {
	return &Service{users: users, secret: []byte(secret), revoked: revoked, now: time.Now}
}

// Username is the display name derived from a registration.
func Username(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func (s *Service) Register(req *RegisterRequest) error {
	email := strings.TrimSpace(req.Email)
	username := Username(req.FirstName, req.LastName)
	if username == "" || email == "" || req.Password == "" {
		return ErrMissingFields
	}

	if _, err := s.users.GetByUsername(username); err == nil {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	} else if !errors.Is(err, user.ErrNotFound) {
		return err
	}
	if _, err := s.users.GetByEmail(email); err == nil {
		return fmt.Errorf("%w: %s", ErrUserExists, email)
	} else if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if _, err := s.users.Create(&user.User{Username: username, Email: email, PasswordHash: string(hashed)}); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	log.Info().Msgf("User %s registered successfully", email)
	return nil
}

func (s *Service) Login(req *LoginRequest) (*LoginResponse, error) {
	u, err := s.users.GetByEmail(strings.TrimSpace(req.Email))
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	claims := &Claims{
		Email:    u.Email,
		Username: u.Username,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(TokenTTL).Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	log.Info().Msgf("User %s logged in successfully", u.Email)
	return &LoginResponse{Email: u.Email, Username: u.Username, Token: token}, nil
}

// Logout revokes token for the rest of its lifetime.
func (s *Service) Logout(token string) error {
	claims, err := s.Verify(token)
	if err != nil {
		return err
	}
	ttl := time.Unix(claims.ExpiresAt, 0).Sub(s.now())
	if err := s.revoked.Set([]byte(token), []byte{1}, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Verify parses token. Revoked tokens are rejected like expired ones.
func (s *Service) Verify(token string) (*Claims, error) {
	if token == "" || s.revoked.Has([]byte(token)) {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyToken satisfies middleware.TokenVerifier.
func (s *Service) VerifyToken(token string) error {
	_, err := s.Verify(token)
	return err
}
