package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSessionMetaMerges(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewUpdateSessionMetaHandler(repo)
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	require.NoError(t, handler.Execute(ctx, accounts.UpdateSessionMetaMessage{
		UserID: user.ID,
		Meta:   map[string]any{"theme": "dark", "lang": "en"},
	}))

	var resp *accounts.UpdateSessionMetaResponse
	require.NoError(t, handler.Execute(ctx, accounts.UpdateSessionMetaMessage{
		UserID: user.ID,
		Meta:   map[string]any{"theme": "light"},
		OnResponse: func(r *accounts.UpdateSessionMetaResponse) {
			resp = r
		},
	}))
	require.NotNil(t, resp)
	assert.True(t, resp.Success)

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Session)
	assert.Equal(t, "light", loaded.Session.Meta["theme"], "sent keys win")
	assert.Equal(t, "en", loaded.Session.Meta["lang"], "omitted keys survive")
}

func TestUpdateSessionMetaCreatesMissingSession(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewUpdateSessionMetaHandler(repo)
	ctx := context.Background()

	// a row inserted outside registration has no session yet
	user, err := repo.Users().Register(ctx, &accounts.User{
		ID:           uuid.New(),
		Username:     "sessionless",
		PasswordHash: testPasswordHash(t),
		Status:       accounts.UserStatusActive,
		Email:        "sessionless@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, handler.Execute(ctx, accounts.UpdateSessionMetaMessage{
		UserID: user.ID,
		Meta:   map[string]any{"device": "tablet"},
	}))

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Session)
	assert.Equal(t, "tablet", loaded.Session.Meta["device"])
}

func TestUpdateSessionMetaUnknownUser(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewUpdateSessionMetaHandler(repo)

	err := handler.Execute(context.Background(), accounts.UpdateSessionMetaMessage{
		UserID: uuid.New(),
		Meta:   map[string]any{"k": "v"},
	})
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)
}
