package accounts

import (
	"bytes"
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nrednav/cuid2"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

type UpdateProfileMessage struct {
	UserID     uuid.UUID     `json:"-"`
	Firstname  *string       `json:"firstname"`
	Lastname   *string       `json:"lastname"`
	Dob        *time.Time    `json:"dob"`
	Address    *string       `json:"address"`
	City       *string       `json:"city"`
	State      *string       `json:"state"`
	Zip        *string       `json:"zip"`
	Country    *string       `json:"country"`
	Phone      *string       `json:"phone"`
	Email      *string       `json:"email"`
	Links      []ProfileLink `json:"links"`
	OnResponse func(resp *ProfileResponse)
}

func (e UpdateProfileMessage) Type() string { return "profile.update" }

type UploadAvatarMessage struct {
	UserID     uuid.UUID `json:"-"`
	Data       []byte    `json:"data"`
	Extension  string    `json:"extension"`
	OnResponse func(resp *ProfileResponse)
}

func (e UploadAvatarMessage) Type() string { return "profile.upload_avatar" }

type DeleteAvatarMessage struct {
	UserID     uuid.UUID `json:"-"`
	OnResponse func(resp *ProfileResponse)
}

func (e DeleteAvatarMessage) Type() string { return "profile.delete_avatar" }

type ProfileResponse struct {
	Profile *Profile
	Success bool
}

// ProfileHandler maintains the biographical record hanging off each
// account. Avatar files live behind the FileStorage collaborator;
// the profile row keeps the storage path and the signed URL clients
// actually load.
type ProfileHandler struct {
	repo    RepositoryManager
	storage FileStorage
}

func NewProfileHandler(repo RepositoryManager, storage FileStorage) *ProfileHandler {
	return &ProfileHandler{
		repo:    repo,
		storage: storage,
	}
}

func (h *ProfileHandler) ExecuteUpdate(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.executeUpdate(ctx, event)
	}
}

func (h *ProfileHandler) executeUpdate(ctx context.Context, event UpdateProfileMessage) error {
	resp := &ProfileResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Phone != nil && *event.Phone != "" {
		if !isValidPhone(*event.Phone) {
			return ValidationFailure("phone", "phone")
		}
	}

	var profile *Profile

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		profile, err = h.loadProfileTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}

		applyString := func(dst *string, src *string) {
			if src != nil {
				*dst = strings.TrimSpace(*src)
			}
		}

		applyString(&profile.Firstname, event.Firstname)
		applyString(&profile.Lastname, event.Lastname)
		applyString(&profile.Address, event.Address)
		applyString(&profile.City, event.City)
		applyString(&profile.State, event.State)
		applyString(&profile.Zip, event.Zip)
		applyString(&profile.Country, event.Country)
		applyString(&profile.Phone, event.Phone)
		applyString(&profile.Email, event.Email)

		if event.Dob != nil {
			profile.Dob = event.Dob
		}
		if event.Links != nil {
			profile.Links = event.Links
		}

		_, err = tx.NewUpdate().
			Model(profile).
			Column("firstname", "lastname", "dob", "address", "city",
				"state", "zip", "country", "phone", "email", "links").
			Where("?TableAlias.id = ?", profile.ID).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	resp.Profile = profile
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ProfileHandler) ExecuteUploadAvatar(ctx context.Context, event UploadAvatarMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during avatar upload",
		)
	default:
		return h.executeUploadAvatar(ctx, event)
	}
}

func (h *ProfileHandler) executeUploadAvatar(ctx context.Context, event UploadAvatarMessage) error {
	resp := &ProfileResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	if h.storage == nil {
		return goerrors.New("file storage is not configured", goerrors.CategoryInternal)
	}

	if len(event.Data) == 0 {
		return ValidationFailure("data", "required")
	}

	ext := strings.TrimPrefix(strings.ToLower(event.Extension), ".")
	switch ext {
	case "png", "jpg", "jpeg", "gif", "webp":
	default:
		return ValidationFailure("extension", "image")
	}

	destName := "avatars/" + cuid2.Generate() + "." + ext
	path, signedURL, err := h.storage.MoveToSignedLocation(ctx, bytes.NewReader(event.Data), destName)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store avatar")
	}

	var profile *Profile
	var staleFile string

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		profile, err = h.loadProfileTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}

		staleFile = profile.AvatarFile
		profile.Avatar = signedURL
		profile.AvatarFile = path

		_, err = tx.NewUpdate().
			Model(profile).
			Column("avatar", "avatar_file").
			Where("?TableAlias.id = ?", profile.ID).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save avatar reference")
		}

		return nil
	})

	if err != nil {
		// the uploaded object is orphaned if the row update failed
		_ = h.storage.Delete(context.Background(), path)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "avatar upload transaction failed")
	}

	if staleFile != "" && staleFile != path {
		_ = h.storage.Delete(ctx, staleFile)
	}

	resp.Profile = profile
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ProfileHandler) ExecuteDeleteAvatar(ctx context.Context, event DeleteAvatarMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during avatar deletion",
		)
	default:
		return h.executeDeleteAvatar(ctx, event)
	}
}

func (h *ProfileHandler) executeDeleteAvatar(ctx context.Context, event DeleteAvatarMessage) error {
	resp := &ProfileResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var profile *Profile
	var staleFile string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		profile, err = h.loadProfileTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}

		staleFile = profile.AvatarFile
		profile.Avatar = ""
		profile.AvatarFile = ""

		_, err = tx.NewUpdate().
			Model(profile).
			Column("avatar", "avatar_file").
			Where("?TableAlias.id = ?", profile.ID).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear avatar reference")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "avatar deletion transaction failed")
	}

	if staleFile != "" && h.storage != nil {
		_ = h.storage.Delete(ctx, staleFile)
	}

	resp.Profile = profile
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ProfileHandler) loadProfileTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*Profile, error) {
	profile := &Profile{}
	err := tx.NewSelect().
		Model(profile).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load profile")
	}
	return profile, nil
}

func isValidPhone(phone string) bool {
	num, err := phonenumbers.Parse(phone, "US")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}
