package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverPasswordMintsToken(t *testing.T) {
	_, repo := setupTestDB(t)
	notifier := &capturingNotifier{}
	sink := &capturingSink{}
	handler := accounts.NewRecoverPasswordHandler(repo, notifier, devConfig(), sink)

	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	var resp *accounts.RecoverPasswordResponse
	err := handler.Execute(ctx, accounts.RecoverPasswordMessage{
		Email: user.Email,
		OnResponse: func(r *accounts.RecoverPasswordResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.RecoveryToken)

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.RecoveryToken, loaded.AuthenticationToken)
	require.NotNil(t, loaded.RecoverRequestedAt)
	assert.WithinDuration(t, time.Now(), *loaded.RecoverRequestedAt, 5*time.Second)

	sent := notifier.byKind(accounts.NotifyPasswordRecovery)
	require.Len(t, sent, 1)
	assert.Equal(t, user.Email, sent[0].To)
	assert.Contains(t, sent[0].Data["link"], resp.RecoveryToken)

	events := sink.byType(accounts.ActivityEventRecoveryRequested)
	require.Len(t, events, 1)
	assert.Equal(t, user.ID.String(), events[0].UserID)
}

func TestRecoverPasswordCooldown(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewRecoverPasswordHandler(repo, nil, prodConfig(), nil)

	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	require.NoError(t, handler.Execute(ctx, accounts.RecoverPasswordMessage{Email: user.Email}))

	err := handler.Execute(ctx, accounts.RecoverPasswordMessage{Email: user.Email})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeTooMuchRequest, richErr.TextCode)
	assert.Equal(t, 429, richErr.Code)

	raw, ok := richErr.Metadata["nextRequest"].(string)
	require.True(t, ok)
	next, perr := time.Parse(time.RFC3339, raw)
	require.NoError(t, perr)
	assert.True(t, next.After(time.Now()))
}

func TestRecoverPasswordCooldownExpired(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewRecoverPasswordHandler(repo, nil, prodConfig(), nil)

	user := seedUser(t, repo, accounts.UserStatusActive,
		withRecoverRequestedAt(time.Now().Add(-2*time.Hour)))
	ctx := context.Background()

	require.NoError(t, handler.Execute(ctx, accounts.RecoverPasswordMessage{Email: user.Email}))

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.RecoverRequestedAt)
	assert.WithinDuration(t, time.Now(), *loaded.RecoverRequestedAt, 5*time.Second,
		"the window only moves forward")
}

func TestRecoverPasswordDevelopmentSkipsCooldown(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewRecoverPasswordHandler(repo, nil, devConfig(), nil)

	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	var first, second *accounts.RecoverPasswordResponse
	require.NoError(t, handler.Execute(ctx, accounts.RecoverPasswordMessage{
		Email:      user.Email,
		OnResponse: func(r *accounts.RecoverPasswordResponse) { first = r },
	}))
	require.NoError(t, handler.Execute(ctx, accounts.RecoverPasswordMessage{
		Email:      user.Email,
		OnResponse: func(r *accounts.RecoverPasswordResponse) { second = r },
	}))

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.RecoveryToken, second.RecoveryToken)

	// only the latest token redeems
	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.RecoveryToken, loaded.AuthenticationToken)
}

func TestRecoverPasswordUnknownEmail(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewRecoverPasswordHandler(repo, nil, devConfig(), nil)

	// an unknown address fails the same way as bad credentials so the
	// endpoint cannot be used to enumerate accounts
	err := handler.Execute(context.Background(), accounts.RecoverPasswordMessage{
		Email: "nobody@example.com",
	})
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestRecoverPasswordPendingEmail(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewRecoverPasswordHandler(repo, nil, devConfig(), nil)

	seedUser(t, repo, accounts.UserStatusPending,
		withPendingEmail("waiting@example.com", accounts.NewToken()))

	err := handler.Execute(context.Background(), accounts.RecoverPasswordMessage{
		Email: "waiting@example.com",
	})
	assert.ErrorIs(t, err, accounts.ErrEmailNotValidated)
}

func TestRecoverPasswordSuspendedAccount(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewRecoverPasswordHandler(repo, nil, devConfig(), nil)

	user := seedUser(t, repo, accounts.UserStatusSuspended)

	err := handler.Execute(context.Background(), accounts.RecoverPasswordMessage{
		Email: user.Email,
	})
	assert.ErrorIs(t, err, accounts.ErrAccountNotActive)
}
