package accounts

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// AdminController serves the administrative user API. Every route is
// mounted behind RequireAdmin.
type AdminController struct {
	Logger    Logger
	Repo      RepositoryManager
	Tokens    TokenAuthority
	Notifier  Notifier
	Config    Config
	Storage   FileStorage
	StateMach UserStateMachine
}

func NewAdminController(repo RepositoryManager, tokens TokenAuthority, notifier Notifier, config Config, storage FileStorage, sm UserStateMachine) *AdminController {
	if sm == nil {
		sm = NewUserStateMachine(repo.Users())
	}
	return &AdminController{
		Logger:    defLogger{},
		Repo:      repo,
		Tokens:    tokens,
		Notifier:  normalizeNotifier(notifier),
		Config:    config,
		Storage:   storage,
		StateMach: sm,
	}
}

// RegisterRoutes mounts the admin endpoints.
func (a *AdminController) RegisterRoutes(group RouteRegistrar, auth *AuthMiddleware) {
	admin := auth.RequireAdmin()

	group.Get("/admin/user", a.Index, admin)
	group.Post("/admin/user", a.Create, admin)
	group.Get("/admin/user/:id", a.Read, admin)
	group.Put("/admin/user/:id", a.Update, admin)
	group.Put("/admin/user/:id/status", a.SetStatus, admin)
	group.Delete("/admin/user/:id", a.Delete, admin)
	group.Post("/admin/user/:id/avatar", a.UploadAvatar, admin)
	group.Delete("/admin/user/:id/avatar", a.DeleteAvatar, admin)
}

func (a *AdminController) Index(ctx router.Context) error {
	users, _, err := a.Repo.Users().List(ctx.Context(), UserWithRelations())
	if err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"users":   users,
	})
}

func (a *AdminController) Read(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return RespondError(ctx, ErrUserNotFound)
	}

	user, err := a.Repo.Users().GetWithRelations(ctx.Context(), id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return RespondError(ctx, ErrUserNotFound)
		}
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// AdminCreatePayload is the admin creation body
type AdminCreatePayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Message  string `json:"message"`
}

func (r AdminCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 25)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Length(8, 100)),
		validation.Field(&r.Role, validation.Required),
	)
}

func (a *AdminController) Create(ctx router.Context) error {
	payload := new(AdminCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	actor := UserFromContext(ctx)

	var res *AdminUserResponse
	req := AdminCreateUserMessage{
		ActorID:  actor.ID,
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
		Message:  payload.Message,
		OnResponse: func(resp *AdminUserResponse) {
			res = resp
		},
	}

	handler := NewAdminUsersHandler(a.Repo, a.Tokens, a.StateMach, a.Notifier, a.Config)
	if err := handler.ExecuteCreate(ctx.Context(), req); err != nil {
		a.Logger.Error("admin create user error: %v", err)
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"success": true,
		"user":    res.User,
	})
}

// AdminUpdatePayload is the admin update body
type AdminUpdatePayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r AdminUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(3, 25)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Password, validation.Length(8, 100)),
	)
}

func (a *AdminController) Update(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return RespondError(ctx, ErrUserNotFound)
	}

	payload := new(AdminUpdatePayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	actor := UserFromContext(ctx)

	var res *AdminUserResponse
	req := AdminUpdateUserMessage{
		ActorID:  actor.ID,
		UserID:   id,
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
		OnResponse: func(resp *AdminUserResponse) {
			res = resp
		},
	}

	handler := NewAdminUsersHandler(a.Repo, a.Tokens, a.StateMach, a.Notifier, a.Config)
	if err := handler.ExecuteUpdate(ctx.Context(), req); err != nil {
		a.Logger.Error("admin update user error: %v", err)
		return RespondError(ctx, err)
	}

	body := map[string]any{
		"success": true,
		"user":    res.User,
	}
	if res.EmailToken != "" {
		body["emailToken"] = res.EmailToken
	}

	return ctx.JSON(router.StatusOK, body)
}

// AdminStatusPayload is the status change body
type AdminStatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (r AdminStatusPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required),
	)
}

func (a *AdminController) SetStatus(ctx router.Context) error {
	return a.setStatus(ctx, "")
}

// Delete is the admin removal: the account is parked in the deleted
// status and every bearer token dies, the row and its files stay.
func (a *AdminController) Delete(ctx router.Context) error {
	return a.setStatus(ctx, UserStatusDeleted)
}

func (a *AdminController) setStatus(ctx router.Context, forced UserStatus) error {
	id, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return RespondError(ctx, ErrUserNotFound)
	}

	payload := new(AdminStatusPayload)
	status := forced

	if forced == "" {
		if err := ctx.Bind(payload); err != nil {
			return RespondValidation(ctx, err)
		}
		if err := payload.Validate(); err != nil {
			return RespondValidation(ctx, err)
		}
		status = UserStatus(payload.Status)
	} else {
		// body is optional on delete, it may carry a message
		_ = ctx.Bind(payload)
	}

	actor := UserFromContext(ctx)

	var res *AdminUserResponse
	req := AdminSetUserStatusMessage{
		ActorID: actor.ID,
		UserID:  id,
		Status:  status,
		Message: payload.Message,
		OnResponse: func(resp *AdminUserResponse) {
			res = resp
		},
	}

	handler := NewAdminUsersHandler(a.Repo, a.Tokens, a.StateMach, a.Notifier, a.Config)
	if err := handler.ExecuteSetStatus(ctx.Context(), req); err != nil {
		a.Logger.Error("admin status change error: %v", err)
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"user":    res.User,
	})
}

func (a *AdminController) UploadAvatar(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return RespondError(ctx, ErrUserNotFound)
	}

	payload := new(UploadAvatarPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	var res *ProfileResponse
	req := UploadAvatarMessage{
		UserID:    id,
		Data:      payload.Data,
		Extension: payload.Extension,
		OnResponse: func(resp *ProfileResponse) {
			res = resp
		},
	}

	handler := NewProfileHandler(a.Repo, a.Storage)
	if err := handler.ExecuteUploadAvatar(ctx.Context(), req); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"profile": res.Profile,
	})
}

func (a *AdminController) DeleteAvatar(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return RespondError(ctx, ErrUserNotFound)
	}

	var res *ProfileResponse
	req := DeleteAvatarMessage{
		UserID: id,
		OnResponse: func(resp *ProfileResponse) {
			res = resp
		},
	}

	handler := NewProfileHandler(a.Repo, a.Storage)
	if err := handler.ExecuteDeleteAvatar(ctx.Context(), req); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"profile": res.Profile,
	})
}
