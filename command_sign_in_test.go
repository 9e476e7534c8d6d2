package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSignIn(t *testing.T) (accounts.RepositoryManager, accounts.TokenAuthority, *capturingSink, *accounts.SignInHandler) {
	t.Helper()
	_, repo := setupTestDB(t)
	authority := accounts.NewTokenAuthority(repo.Users(), repo.AuthTokens())
	sink := &capturingSink{}
	return repo, authority, sink, accounts.NewSignInHandler(repo, authority, sink)
}

func TestSignInByUsername(t *testing.T) {
	repo, authority, sink, handler := setupSignIn(t)
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	var resp *accounts.SignInResponse
	err := handler.Execute(ctx, accounts.SignInMessage{
		Identifier: user.Username,
		Password:   testPassword,
		Meta:       map[string]any{"ip": "203.0.113.7"},
		OnResponse: func(r *accounts.SignInResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)

	resolved, err := authority.Verify(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	require.NotNil(t, resolved.Session)
	assert.NotNil(t, resolved.Session.LoginAt)
	assert.Equal(t, "203.0.113.7", resolved.Session.Meta["ip"])

	events := sink.byType(accounts.ActivityEventSignInSuccess)
	require.Len(t, events, 1)
	assert.Equal(t, user.ID.String(), events[0].UserID)
	assert.Equal(t, "user", events[0].Actor.Type)
}

func TestSignInByConfirmedEmail(t *testing.T) {
	repo, _, _, handler := setupSignIn(t)
	user := seedUser(t, repo, accounts.UserStatusActive)

	var resp *accounts.SignInResponse
	err := handler.Execute(context.Background(), accounts.SignInMessage{
		Identifier: user.Email,
		Password:   testPassword,
		OnResponse: func(r *accounts.SignInResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)
}

func TestSignInWrongPasswordAndUnknownUserAreIndistinguishable(t *testing.T) {
	repo, _, sink, handler := setupSignIn(t)
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	wrongPassword := handler.Execute(ctx, accounts.SignInMessage{
		Identifier: user.Username,
		Password:   "wrong-password",
	})
	unknownUser := handler.Execute(ctx, accounts.SignInMessage{
		Identifier: "nobody-here",
		Password:   testPassword,
	})

	assert.ErrorIs(t, wrongPassword, accounts.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, accounts.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())

	// only the wrong password against a real account is recorded
	failures := sink.byType(accounts.ActivityEventSignInFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, user.ID.String(), failures[0].UserID)
	assert.Equal(t, "anonymous", failures[0].Actor.Type)
}

func TestSignInPendingEmailProbe(t *testing.T) {
	repo, _, _, handler := setupSignIn(t)
	seedUser(t, repo, accounts.UserStatusPending,
		withPendingEmail("waiting@example.com", accounts.NewToken()))

	err := handler.Execute(context.Background(), accounts.SignInMessage{
		Identifier: "waiting@example.com",
		Password:   testPassword,
	})
	assert.ErrorIs(t, err, accounts.ErrEmailNotValidated)
}

func TestSignInPendingAccountByUsername(t *testing.T) {
	repo, _, _, handler := setupSignIn(t)
	user := seedUser(t, repo, accounts.UserStatusPending,
		withPendingEmail("waiting@example.com", accounts.NewToken()))

	err := handler.Execute(context.Background(), accounts.SignInMessage{
		Identifier: user.Username,
		Password:   testPassword,
	})
	assert.ErrorIs(t, err, accounts.ErrEmailNotValidated)
}

func TestSignInSuspendedAccount(t *testing.T) {
	repo, _, _, handler := setupSignIn(t)
	user := seedUser(t, repo, accounts.UserStatusSuspended)

	err := handler.Execute(context.Background(), accounts.SignInMessage{
		Identifier: user.Username,
		Password:   testPassword,
	})
	assert.ErrorIs(t, err, accounts.ErrAccountNotActive)
}

func TestSignInDeletedAccountIsAllowed(t *testing.T) {
	repo, authority, _, handler := setupSignIn(t)
	user := seedUser(t, repo, accounts.UserStatusDeleted)
	ctx := context.Background()

	var resp *accounts.SignInResponse
	err := handler.Execute(ctx, accounts.SignInMessage{
		Identifier: user.Username,
		Password:   testPassword,
		OnResponse: func(r *accounts.SignInResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	resolved, err := authority.Verify(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, accounts.UserStatusDeleted, resolved.Status)
}

func TestSignInMergesSessionMeta(t *testing.T) {
	repo, _, _, handler := setupSignIn(t)
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	require.NoError(t, handler.Execute(ctx, accounts.SignInMessage{
		Identifier: user.Username,
		Password:   testPassword,
		Meta:       map[string]any{"device": "phone"},
	}))
	require.NoError(t, handler.Execute(ctx, accounts.SignInMessage{
		Identifier: user.Username,
		Password:   testPassword,
		Meta:       map[string]any{"locale": "en-US"},
	}))

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Session)
	assert.Equal(t, "phone", loaded.Session.Meta["device"])
	assert.Equal(t, "en-US", loaded.Session.Meta["locale"])
}
