package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTokenSignIn(t *testing.T) (accounts.RepositoryManager, accounts.TokenAuthority, *capturingSink, *accounts.TokenSignInHandler) {
	t.Helper()
	_, repo := setupTestDB(t)
	authority := accounts.NewTokenAuthority(repo.Users(), repo.AuthTokens())
	sink := &capturingSink{}
	return repo, authority, sink, accounts.NewTokenSignInHandler(repo, authority, sink)
}

func TestTokenSignInConsumesRecoveryToken(t *testing.T) {
	repo, authority, sink, handler := setupTokenSignIn(t)

	recovery := accounts.NewToken()
	user := seedUser(t, repo, accounts.UserStatusActive, withRecoveryToken(recovery))
	ctx := context.Background()

	var resp *accounts.TokenSignInResponse
	err := handler.Execute(ctx, accounts.TokenSignInMessage{
		Token: recovery,
		OnResponse: func(r *accounts.TokenSignInResponse) {
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

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.AuthenticationToken, "the recovery token is spent")

	// redeeming the token counts as a sign in
	require.NotNil(t, loaded.Session)
	assert.NotNil(t, loaded.Session.LoginAt)

	events := sink.byType(accounts.ActivityEventTokenSignIn)
	require.Len(t, events, 1)
	assert.Equal(t, user.ID.String(), events[0].UserID)
}

func TestTokenSignInSecondRedemptionFails(t *testing.T) {
	repo, _, _, handler := setupTokenSignIn(t)

	recovery := accounts.NewToken()
	seedUser(t, repo, accounts.UserStatusActive, withRecoveryToken(recovery))
	ctx := context.Background()

	require.NoError(t, handler.Execute(ctx, accounts.TokenSignInMessage{Token: recovery}))

	err := handler.Execute(ctx, accounts.TokenSignInMessage{Token: recovery})
	assert.ErrorIs(t, err, accounts.ErrInvalidToken)
}

func TestTokenSignInUnknownOrEmptyToken(t *testing.T) {
	_, _, _, handler := setupTokenSignIn(t)
	ctx := context.Background()

	err := handler.Execute(ctx, accounts.TokenSignInMessage{Token: accounts.NewToken()})
	assert.ErrorIs(t, err, accounts.ErrInvalidToken)

	err = handler.Execute(ctx, accounts.TokenSignInMessage{Token: ""})
	assert.ErrorIs(t, err, accounts.ErrInvalidToken)
}

func TestTokenSignInNonActiveAccount(t *testing.T) {
	repo, _, _, handler := setupTokenSignIn(t)

	recovery := accounts.NewToken()
	user := seedUser(t, repo, accounts.UserStatusSuspended, withRecoveryToken(recovery))
	ctx := context.Background()

	err := handler.Execute(ctx, accounts.TokenSignInMessage{Token: recovery})
	assert.ErrorIs(t, err, accounts.ErrAccountNotValidated)

	// the rejection leaves the token in place
	loaded, lerr := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, lerr)
	assert.Equal(t, recovery, loaded.AuthenticationToken)
}
