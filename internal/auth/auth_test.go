package auth

import (
	"testing"
	"time"

	"github.com/Brownie44l1/leuko-api/internal/repositories/sql/user"
	"github.com/Brownie44l1/leuko-api/pkg/cache"
	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) Create(u *user.User) (uint, error) {
	args := m.Called(u)
	return args.Get(0).(uint), args.Error(1)
}

func (m *mockUsers) GetByEmail(email string) (*user.User, error) {
	args := m.Called(email)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockUsers) GetByUsername(username string) (*user.User, error) {
	args := m.Called(username)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func newService(users user.Repository) *Service {
	return NewService(users, "test-secret", cache.New("revoked", 1<<20))
}

func TestUsername(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Username("Ada", "Lovelace"))
	assert.Equal(t, "Ada", Username(" Ada ", ""))
	assert.Equal(t, "", Username("", ""))
}

func TestRegister(t *testing.T) {
	users := &mockUsers{}
	users.On("GetByUsername", "Ada Lovelace").Return(nil, user.ErrNotFound)
	users.On("GetByEmail", "ada@example.com").Return(nil, user.ErrNotFound)
	users.On("Create", mock.MatchedBy(func(u *user.User) bool {
		return u.Username == "Ada Lovelace" && u.Email == "ada@example.com" &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")) == nil
	})).Return(uint(1), nil)

	err := newService(users).Register(&RegisterRequest{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "s3cret"})
	require.NoError(t, err)
	users.AssertExpectations(t)
}

func TestRegisterDuplicate(t *testing.T) {
	users := &mockUsers{}
	users.On("GetByUsername", "Ada Lovelace").Return(&user.User{ID: 1}, nil)

	err := newService(users).Register(&RegisterRequest{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrUserExists)
	users.AssertNotCalled(t, "Create", mock.Anything)

	users = &mockUsers{}
	users.On("GetByUsername", "Grace Hopper").Return(nil, user.ErrNotFound)
	users.On("GetByEmail", "ada@example.com").Return(&user.User{ID: 1}, nil)
	err = newService(users).Register(&RegisterRequest{FirstName: "Grace", LastName: "Hopper", Email: "ada@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterMissingFields(t *testing.T) {
	err := newService(&mockUsers{}).Register(&RegisterRequest{Email: "a@b.c", Password: "x"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func registeredUser(t *testing.T) *user.User {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &user.User{ID: 1, Username: "Ada Lovelace", Email: "ada@example.com", PasswordHash: string(hash)}
}

func TestLoginIssuesToken(t *testing.T) {
	users := &mockUsers{}
	users.On("GetByEmail", "ada@example.com").Return(registeredUser(t), nil)
	svc := newService(users)

	resp, err := svc.Login(&LoginRequest{Email: "ada@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", resp.Username)

	claims, err := svc.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.InDelta(t, time.Now().Add(TokenTTL).Unix(), claims.ExpiresAt, 5)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	users := &mockUsers{}
	users.On("GetByEmail", "ada@example.com").Return(registeredUser(t), nil)
	users.On("GetByEmail", "nobody@example.com").Return(nil, user.ErrNotFound)
	svc := newService(users)

	_, err := svc.Login(&LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(&LoginRequest{Email: "nobody@example.com", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	users := &mockUsers{}
	users.On("GetByEmail", "ada@example.com").Return(registeredUser(t), nil)
	svc := newService(users)

	resp, err := svc.Login(&LoginRequest{Email: "ada@example.com", Password: "s3cret"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(resp.Token))
	_, err = svc.Verify(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, svc.Logout(resp.Token), ErrInvalidToken)
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := newService(&mockUsers{})

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Email: "x"}).SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Email:          "x",
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Hour).Unix()},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
