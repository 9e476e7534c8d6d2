package accounts

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-router"
)

// RouteRegistrar is the subset of the router used to mount endpoints.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) router.RouteInfo
}

// AccountsController serves the self service account API.
type AccountsController struct {
	Debug     bool
	Logger    Logger
	Repo      RepositoryManager
	Tokens    TokenAuthority
	Notifier  Notifier
	Config    Config
	Storage   FileStorage
	Activity  ActivitySink
	StateMach UserStateMachine
}

type AccountsControllerOption func(*AccountsController) *AccountsController

func NewAccountsController(opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in accounts controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenAuthority in accounts controller...")
	}

	if c.Notifier == nil {
		c.Notifier = NoopNotifier{}
	}

	if c.StateMach == nil {
		c.StateMach = NewUserStateMachine(c.Repo.Users(),
			WithStateMachineActivitySink(c.Activity),
			WithStateMachineLogger(c.Logger),
		)
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Repo = repo
		return c
	}
}

func WithControllerTokens(tokens TokenAuthority) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Tokens = tokens
		return c
	}
}

func WithControllerNotifier(n Notifier) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Notifier = n
		return c
	}
}

func WithControllerConfig(cfg Config) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Config = cfg
		return c
	}
}

func WithControllerStorage(fs FileStorage) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Storage = fs
		return c
	}
}

func WithControllerLogger(l Logger) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Logger = l
		return c
	}
}

func WithControllerActivitySink(s ActivitySink) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Activity = s
		return c
	}
}

// RegisterRoutes mounts the authentication and account endpoints.
func (a *AccountsController) RegisterRoutes(group RouteRegistrar, auth *AuthMiddleware) {
	group.Post("/authentication/register", a.Register)
	group.Post("/authentication/validate-email", a.ValidateEmail)
	group.Get("/authentication/validate-email/:token", a.ValidateEmailByParam)
	group.Post("/authentication", a.SignIn)
	group.Post("/authentication/token", a.TokenSignIn)
	group.Post("/authentication/recover", a.Recover)

	requireAuth := auth.RequireAuth()

	group.Get("/session", a.Session, optionalAuth(auth))
	group.Put("/session/meta", a.UpdateSessionMeta, requireAuth)
	group.Delete("/authentication", a.SignOut, requireAuth)
	group.Put("/authentication", a.UpdateAccount, requireAuth)
	group.Delete("/account", a.DeleteAccount, requireAuth)
	group.Post("/account/restore", a.RestoreAccount, requireAuth)
	group.Put("/profile", a.UpdateProfile, requireAuth)
	group.Post("/profile/avatar", a.UploadAvatar, requireAuth)
	group.Delete("/profile/avatar", a.DeleteAvatar, requireAuth)
}

func optionalAuth(auth *AuthMiddleware) router.MiddlewareFunc {
	optional := &AuthMiddleware{
		Tokens:   auth.Tokens,
		Logger:   auth.Logger,
		Optional: true,
	}
	return optional.RequireAuth()
}

// RegisterPayload is the registration body
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 25)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AccountsController) Register(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	if a.Debug {
		debugDump(a.Logger, "register payload", payload)
	}

	var res *RegisterResponse
	req := RegisterMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(resp *RegisterResponse) {
			res = resp
		},
	}

	handler := NewRegisterHandler(a.Repo, a.Notifier, a.Config)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register error: %v", err)
		return RespondError(ctx, err)
	}

	body := map[string]any{
		"success": true,
		"user":    res.User,
	}
	if res.EmailToken != "" {
		body["emailToken"] = res.EmailToken
	}

	return ctx.JSON(router.StatusCreated, body)
}

// ValidateEmailPayload carries the confirmation token
type ValidateEmailPayload struct {
	Token string `json:"token"`
}

func (r ValidateEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AccountsController) ValidateEmail(ctx router.Context) error {
	payload := new(ValidateEmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	return a.confirmEmail(ctx, payload.Token)
}

func (a *AccountsController) ValidateEmailByParam(ctx router.Context) error {
	return a.confirmEmail(ctx, ctx.Param("token", ""))
}

func (a *AccountsController) confirmEmail(ctx router.Context, token string) error {
	var res *ConfirmEmailResponse
	req := ConfirmEmailMessage{
		Token: token,
		OnResponse: func(resp *ConfirmEmailResponse) {
			res = resp
		},
	}

	handler := NewConfirmEmailHandler(a.Repo, a.Tokens, a.StateMach)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("email confirmation error: %v", err)
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"token":   res.Token,
		"user":    res.User,
	})
}

// SignInPayload is the credential body
type SignInPayload struct {
	Identifier string         `json:"identifier"`
	Password   string         `json:"password"`
	Meta       map[string]any `json:"meta"`
}

func (r SignInPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountsController) SignIn(ctx router.Context) error {
	payload := new(SignInPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	var res *SignInResponse
	req := SignInMessage{
		Identifier: payload.Identifier,
		Password:   payload.Password,
		Meta:       payload.Meta,
		OnResponse: func(resp *SignInResponse) {
			res = resp
		},
	}

	handler := NewSignInHandler(a.Repo, a.Tokens, a.Activity)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"token":   res.Token,
		"user":    res.User,
	})
}

// TokenSignInPayload carries a recovery token
type TokenSignInPayload struct {
	Token string `json:"token"`
}

func (r TokenSignInPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AccountsController) TokenSignIn(ctx router.Context) error {
	payload := new(TokenSignInPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	var res *TokenSignInResponse
	req := TokenSignInMessage{
		Token: payload.Token,
		OnResponse: func(resp *TokenSignInResponse) {
			res = resp
		},
	}

	handler := NewTokenSignInHandler(a.Repo, a.Tokens, a.Activity)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"token":   res.Token,
		"user":    res.User,
	})
}

// RecoverPayload names the account to recover
type RecoverPayload struct {
	Email string `json:"email"`
}

func (r RecoverPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountsController) Recover(ctx router.Context) error {
	payload := new(RecoverPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	var res *RecoverPasswordResponse
	req := RecoverPasswordMessage{
		Email: payload.Email,
		OnResponse: func(resp *RecoverPasswordResponse) {
			res = resp
		},
	}

	handler := NewRecoverPasswordHandler(a.Repo, a.Notifier, a.Config, a.Activity)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		return RespondError(ctx, err)
	}

	body := map[string]any{"success": true}
	if res.RecoveryToken != "" {
		body["authenticationToken"] = res.RecoveryToken
	}

	return ctx.JSON(router.StatusOK, body)
}

// Session is the silent auth probe: it never fails, it reports.
func (a *AccountsController) Session(ctx router.Context) error {
	user := UserFromContext(ctx)
	if user == nil {
		return ctx.JSON(router.StatusOK, map[string]any{
			"session": false,
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"session": true,
		"user":    user,
	})
}

func (a *AccountsController) SignOut(ctx router.Context) error {
	token := TokenFromContext(ctx)
	if err := a.Tokens.Revoke(ctx.Context(), token); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// UpdateAccountPayload carries self service credential changes
type UpdateAccountPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r UpdateAccountPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(3, 25)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Password, validation.Length(8, 100)),
	)
}

func (a *AccountsController) UpdateAccount(ctx router.Context) error {
	payload := new(UpdateAccountPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	user := UserFromContext(ctx)

	var res *UpdateAccountResponse
	req := UpdateAccountMessage{
		UserID:       user.ID,
		Username:     payload.Username,
		Email:        payload.Email,
		Password:     payload.Password,
		CurrentToken: TokenFromContext(ctx),
		OnResponse: func(resp *UpdateAccountResponse) {
			res = resp
		},
	}

	handler := NewUpdateAccountHandler(a.Repo, a.Tokens, a.Notifier, a.Config, a.Activity)
	if err := handler.Execute(ctx.Context(), req); err != nil {
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

func (a *AccountsController) DeleteAccount(ctx router.Context) error {
	user := UserFromContext(ctx)

	var res *AccountLifecycleResponse
	req := DeleteAccountMessage{
		UserID: user.ID,
		OnResponse: func(resp *AccountLifecycleResponse) {
			res = resp
		},
	}

	handler := NewAccountLifecycleHandler(a.Repo, a.StateMach)
	if err := handler.ExecuteDelete(ctx.Context(), req); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"user":    res.User,
	})
}

func (a *AccountsController) RestoreAccount(ctx router.Context) error {
	user := UserFromContext(ctx)

	var res *AccountLifecycleResponse
	req := RestoreAccountMessage{
		UserID:       user.ID,
		CurrentToken: TokenFromContext(ctx),
		OnResponse: func(resp *AccountLifecycleResponse) {
			res = resp
		},
	}

	handler := NewAccountLifecycleHandler(a.Repo, a.StateMach)
	if err := handler.ExecuteRestore(ctx.Context(), req); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"user":    res.User,
	})
}

func (a *AccountsController) UpdateSessionMeta(ctx router.Context) error {
	payload := new(UpdateSessionMetaMessage)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	user := UserFromContext(ctx)

	var res *UpdateSessionMetaResponse
	req := UpdateSessionMetaMessage{
		UserID: user.ID,
		Meta:   payload.Meta,
		OnResponse: func(resp *UpdateSessionMetaResponse) {
			res = resp
		},
	}

	handler := NewUpdateSessionMetaHandler(a.Repo)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"session": res.Session,
	})
}

func (a *AccountsController) UpdateProfile(ctx router.Context) error {
	payload := new(UpdateProfileMessage)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	user := UserFromContext(ctx)
	payload.UserID = user.ID

	var res *ProfileResponse
	payload.OnResponse = func(resp *ProfileResponse) {
		res = resp
	}

	handler := NewProfileHandler(a.Repo, a.Storage)
	if err := handler.ExecuteUpdate(ctx.Context(), *payload); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"profile": res.Profile,
	})
}

// UploadAvatarPayload carries the image bytes and their extension
type UploadAvatarPayload struct {
	Data      []byte `json:"data"`
	Extension string `json:"extension"`
}

func (r UploadAvatarPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Data, validation.Required),
		validation.Field(&r.Extension, validation.Required),
	)
}

func (a *AccountsController) UploadAvatar(ctx router.Context) error {
	payload := new(UploadAvatarPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	user := UserFromContext(ctx)

	var res *ProfileResponse
	req := UploadAvatarMessage{
		UserID:    user.ID,
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

func (a *AccountsController) DeleteAvatar(ctx router.Context) error {
	user := UserFromContext(ctx)

	var res *ProfileResponse
	req := DeleteAvatarMessage{
		UserID: user.ID,
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
