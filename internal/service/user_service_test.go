package service

import (
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserValidatesRole(t *testing.T) {
	db := openTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db))

	_, err := svc.CreateUser(testCtx(), CreateUserRequest{
		Email: "x@example.com", FirstName: "X", Password: "secret1", Role: "superuser",
	})
	assert.Error(t, err)

	user, err := svc.CreateUser(testCtx(), CreateUserRequest{
		Email: "x@example.com", FirstName: "X", Password: "secret1", Role: model.RoleApprover1,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleApprover1, user.Role)

	// Duplicate email rejected.
	_, err = svc.CreateUser(testCtx(), CreateUserRequest{
		Email: "x@example.com", FirstName: "Y", Password: "secret1", Role: model.RoleStaff,
	})
	assert.Error(t, err)
}

func TestLoginAndRefreshFlow(t *testing.T) {
	db := openTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db))

	_, err := svc.CreateUser(testCtx(), CreateUserRequest{
		Email: "login@example.com", FirstName: "L", Password: "secret1", Role: model.RoleStaff,
	})
	require.NoError(t, err)

	_, err = svc.Login(testCtx(), LoginUserRequest{Email: "login@example.com", Password: "wrong"})
	assert.Error(t, err)

	tokens, err := svc.Login(testCtx(), LoginUserRequest{Email: "login@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Token)
	assert.NotEmpty(t, tokens.RefreshToken)

	// Refresh rotates the token: the old one stops working.
	rotated, err := svc.Refresh(testCtx(), RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(testCtx(), RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.Error(t, err)

	// Logout revokes the current refresh token.
	require.NoError(t, svc.Logout(testCtx(), rotated.RefreshToken))
	_, err = svc.Refresh(testCtx(), RefreshTokenRequest{RefreshToken: rotated.RefreshToken})
	assert.Error(t, err)
}
