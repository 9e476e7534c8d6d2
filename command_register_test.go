package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesPendingAccount(t *testing.T) {
	_, repo := setupTestDB(t)
	notifier := &capturingNotifier{}
	handler := accounts.NewRegisterHandler(repo, notifier, devConfig())
	ctx := context.Background()

	var resp *accounts.RegisterResponse
	err := handler.Execute(ctx, accounts.RegisterMessage{
		Username: "gopher",
		Email:    "Gopher@Example.COM",
		Password: testPassword,
		OnResponse: func(r *accounts.RegisterResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)

	user := resp.User
	require.NotNil(t, user)
	assert.Equal(t, accounts.UserStatusPending, user.Status)
	assert.Equal(t, accounts.RoleMember, user.Role)
	assert.Empty(t, user.Email, "address is unconfirmed until the token is redeemed")
	assert.Equal(t, "gopher@example.com", user.PendingEmail)
	assert.NotEmpty(t, resp.EmailToken)
	assert.Equal(t, resp.EmailToken, user.EmailToken)

	// profile and session rows are co-created
	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, loaded.Profile)
	assert.NotNil(t, loaded.Session)

	sent := notifier.byKind(accounts.NotifyRegistered)
	require.Len(t, sent, 1)
	assert.Equal(t, "gopher@example.com", sent[0].To)
	assert.Contains(t, sent[0].Data["link"], resp.EmailToken)
}

func TestRegisterHidesTokenOutsideDevelopment(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewRegisterHandler(repo, nil, prodConfig())

	var resp *accounts.RegisterResponse
	err := handler.Execute(context.Background(), accounts.RegisterMessage{
		Username: "gopher",
		Email:    "gopher@example.com",
		Password: testPassword,
		OnResponse: func(r *accounts.RegisterResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Empty(t, resp.EmailToken)
	assert.NotEmpty(t, resp.User.EmailToken, "the token is still minted, just not echoed")
}

func TestRegisterRejectsConfirmedEmail(t *testing.T) {
	_, repo := setupTestDB(t)
	existing := seedUser(t, repo, accounts.UserStatusActive)
	handler := accounts.NewRegisterHandler(repo, nil, devConfig())

	err := handler.Execute(context.Background(), accounts.RegisterMessage{
		Username: "someone-else",
		Email:    existing.Email,
		Password: testPassword,
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeValidationFailure, richErr.TextCode)
	assert.Equal(t, "email", richErr.Metadata["field"])
	assert.Equal(t, "unique", richErr.Metadata["rule"])
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	_, repo := setupTestDB(t)
	existing := seedUser(t, repo, accounts.UserStatusActive)
	handler := accounts.NewRegisterHandler(repo, nil, devConfig())

	err := handler.Execute(context.Background(), accounts.RegisterMessage{
		Username: existing.Username,
		Email:    "fresh@example.com",
		Password: testPassword,
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeValidationFailure, richErr.TextCode)
	assert.Equal(t, "username", richErr.Metadata["field"])
	assert.Equal(t, "unique", richErr.Metadata["rule"])
}

func TestRegisterRejectsEmptyPassword(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewRegisterHandler(repo, nil, devConfig())

	err := handler.Execute(context.Background(), accounts.RegisterMessage{
		Username: "gopher",
		Email:    "gopher@example.com",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
}

func TestRegisterCancelledContext(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewRegisterHandler(repo, nil, devConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handler.Execute(ctx, accounts.RegisterMessage{
		Username: "gopher",
		Email:    "gopher@example.com",
		Password: testPassword,
	})
	require.Error(t, err)
}
