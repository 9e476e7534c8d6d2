package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestUpdateProfileFields(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewProfileHandler(repo, newMemStorage())
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	var resp *accounts.ProfileResponse
	err := handler.ExecuteUpdate(ctx, accounts.UpdateProfileMessage{
		UserID:    user.ID,
		Firstname: strptr("  Ada "),
		Lastname:  strptr("Lovelace"),
		City:      strptr("London"),
		Phone:     strptr("+1 202 456 1111"),
		Links: []accounts.ProfileLink{
			{Name: "site", Value: "https://ada.example.com"},
		},
		OnResponse: func(r *accounts.ProfileResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Ada", resp.Profile.Firstname)

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Profile)
	assert.Equal(t, "Ada", loaded.Profile.Firstname)
	assert.Equal(t, "Lovelace", loaded.Profile.Lastname)
	assert.Equal(t, "London", loaded.Profile.City)
	require.Len(t, loaded.Profile.Links, 1)
	assert.Equal(t, "site", loaded.Profile.Links[0].Name)
}

func TestUpdateProfileLeavesOmittedFieldsAlone(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewProfileHandler(repo, newMemStorage())
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	require.NoError(t, handler.ExecuteUpdate(ctx, accounts.UpdateProfileMessage{
		UserID:    user.ID,
		Firstname: strptr("Ada"),
	}))
	require.NoError(t, handler.ExecuteUpdate(ctx, accounts.UpdateProfileMessage{
		UserID:   user.ID,
		Lastname: strptr("Lovelace"),
	}))

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", loaded.Profile.Firstname)
	assert.Equal(t, "Lovelace", loaded.Profile.Lastname)
}

func TestUpdateProfileInvalidPhone(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewProfileHandler(repo, newMemStorage())
	user := seedUser(t, repo, accounts.UserStatusActive)

	err := handler.ExecuteUpdate(context.Background(), accounts.UpdateProfileMessage{
		UserID: user.ID,
		Phone:  strptr("not-a-phone"),
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeValidationFailure, richErr.TextCode)
	assert.Equal(t, "phone", richErr.Metadata["field"])
}

func TestUploadAvatar(t *testing.T) {
	_, repo := setupTestDB(t)
	storage := newMemStorage()
	handler := accounts.NewProfileHandler(repo, storage)
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	var resp *accounts.ProfileResponse
	err := handler.ExecuteUploadAvatar(ctx, accounts.UploadAvatarMessage{
		UserID:    user.ID,
		Data:      []byte{0x89, 0x50, 0x4e, 0x47},
		Extension: "PNG",
		OnResponse: func(r *accounts.ProfileResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.NotEmpty(t, resp.Profile.AvatarFile)
	assert.Contains(t, resp.Profile.Avatar, "https://cdn.example.com/")
	assert.Contains(t, resp.Profile.AvatarFile, ".png")
	assert.Contains(t, storage.files, resp.Profile.AvatarFile)

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Profile.Avatar, loaded.Profile.Avatar)
}

func TestUploadAvatarReplacesStaleFile(t *testing.T) {
	_, repo := setupTestDB(t)
	storage := newMemStorage()
	handler := accounts.NewProfileHandler(repo, storage)
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	var first *accounts.ProfileResponse
	require.NoError(t, handler.ExecuteUploadAvatar(ctx, accounts.UploadAvatarMessage{
		UserID:     user.ID,
		Data:       []byte("one"),
		Extension:  "jpg",
		OnResponse: func(r *accounts.ProfileResponse) { first = r },
	}))
	firstFile := first.Profile.AvatarFile

	require.NoError(t, handler.ExecuteUploadAvatar(ctx, accounts.UploadAvatarMessage{
		UserID:    user.ID,
		Data:      []byte("two"),
		Extension: "jpg",
	}))

	assert.Contains(t, storage.deleted, firstFile)
	assert.NotContains(t, storage.files, firstFile)
}

func TestUploadAvatarRejectsBadInput(t *testing.T) {
	_, repo := setupTestDB(t)
	handler := accounts.NewProfileHandler(repo, newMemStorage())
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	err := handler.ExecuteUploadAvatar(ctx, accounts.UploadAvatarMessage{
		UserID:    user.ID,
		Data:      []byte("data"),
		Extension: "exe",
	})
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "extension", richErr.Metadata["field"])

	err = handler.ExecuteUploadAvatar(ctx, accounts.UploadAvatarMessage{
		UserID:    user.ID,
		Extension: "png",
	})
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "data", richErr.Metadata["field"])
}

func TestUploadAvatarCleansUpOrphanedObject(t *testing.T) {
	_, repo := setupTestDB(t)
	storage := newMemStorage()
	handler := accounts.NewProfileHandler(repo, storage)

	err := handler.ExecuteUploadAvatar(context.Background(), accounts.UploadAvatarMessage{
		UserID:    uuid.New(),
		Data:      []byte("data"),
		Extension: "png",
	})
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)

	// the stored object was removed once the row update failed
	assert.Empty(t, storage.files)
	assert.Len(t, storage.deleted, 1)
}

func TestDeleteAvatar(t *testing.T) {
	_, repo := setupTestDB(t)
	storage := newMemStorage()
	handler := accounts.NewProfileHandler(repo, storage)
	user := seedUser(t, repo, accounts.UserStatusActive)
	ctx := context.Background()

	var uploaded *accounts.ProfileResponse
	require.NoError(t, handler.ExecuteUploadAvatar(ctx, accounts.UploadAvatarMessage{
		UserID:     user.ID,
		Data:       []byte("pic"),
		Extension:  "webp",
		OnResponse: func(r *accounts.ProfileResponse) { uploaded = r },
	}))

	require.NoError(t, handler.ExecuteDeleteAvatar(ctx, accounts.DeleteAvatarMessage{
		UserID: user.ID,
	}))

	loaded, err := repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Profile.Avatar)
	assert.Empty(t, loaded.Profile.AvatarFile)
	assert.Contains(t, storage.deleted, uploaded.Profile.AvatarFile)
}

func TestUploadAvatarStorageFailure(t *testing.T) {
	_, repo := setupTestDB(t)
	storage := newMemStorage()
	storage.failPut = true
	handler := accounts.NewProfileHandler(repo, storage)
	user := seedUser(t, repo, accounts.UserStatusActive)

	err := handler.ExecuteUploadAvatar(context.Background(), accounts.UploadAvatarMessage{
		UserID:    user.ID,
		Data:      []byte("pic"),
		Extension: "png",
	})
	require.Error(t, err)
}
