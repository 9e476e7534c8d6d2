package accounts

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// MailRequestController serves the contact threads. The public routes
// are token addressed so a guest without an account can open a thread
// and follow up on it; the admin routes list and work the queue.
type MailRequestController struct {
	Logger   Logger
	Repo     RepositoryManager
	Notifier Notifier
	Config   Config
}

func NewMailRequestController(repo RepositoryManager, notifier Notifier, config Config) *MailRequestController {
	return &MailRequestController{
		Logger:   defLogger{},
		Repo:     repo,
		Notifier: normalizeNotifier(notifier),
		Config:   config,
	}
}

// RegisterRoutes mounts the public thread endpoints plus the admin queue.
func (m *MailRequestController) RegisterRoutes(group RouteRegistrar, auth *AuthMiddleware) {
	maybeAuth := optionalAuth(auth)
	admin := auth.RequireAdmin()

	group.Post("/mail-requests", m.Create, maybeAuth)
	group.Get("/mail-requests/:token", m.Read, maybeAuth)
	group.Post("/mail-requests/:token/messages", m.Append, maybeAuth)

	group.Get("/admin/mail-requests", m.AdminIndex, admin)
	group.Post("/admin/mail-requests/:token/messages", m.AdminReply, admin)
	group.Post("/admin/mail-requests/:token/resolve", m.AdminResolve, admin)
}

// CreateMailRequestPayload opens a thread. Email is required for
// guests so replies have somewhere to go; signed in callers inherit
// their account email when they leave it blank.
type CreateMailRequestPayload struct {
	Subject string `json:"subject"`
	Type    string `json:"type"`
	Email   string `json:"email"`
	Content string `json:"content"`
}

func (r CreateMailRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Subject, validation.Required, validation.Length(3, 200)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Content, validation.Required),
	)
}

func (m *MailRequestController) Create(ctx router.Context) error {
	payload := new(CreateMailRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	req := CreateMailRequestMessage{
		Subject: payload.Subject,
		Kind:    MailRequestType(payload.Type),
		Email:   payload.Email,
		Content: payload.Content,
	}

	if user := UserFromContext(ctx); user != nil {
		id := user.ID
		req.UserID = &id
		req.Username = user.Username
		if req.Email == "" {
			req.Email = user.Email
		}
	}

	if req.Email == "" {
		return RespondValidation(ctx, validation.Errors{
			"email": ErrNoEmptyString,
		})
	}

	var res *MailRequestResponse
	req.OnResponse = func(resp *MailRequestResponse) {
		res = resp
	}

	handler := NewMailRequestHandler(m.Repo, m.Notifier, m.Config)
	if err := handler.ExecuteCreate(ctx.Context(), req); err != nil {
		m.Logger.Error("mail request create error: %v", err)
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"success": true,
		"request": res.Request,
	})
}

func (m *MailRequestController) Read(ctx router.Context) error {
	token := ctx.Param("token", "")

	request, err := m.Repo.MailRequests().FindByToken(ctx.Context(), token)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return RespondError(ctx, ErrInvalidToken)
		}
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"request": request,
	})
}

// AppendMailPayload is a follow up message on an existing thread.
type AppendMailPayload struct {
	Content string `json:"content"`
}

func (r AppendMailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}

func (m *MailRequestController) Append(ctx router.Context) error {
	return m.append(ctx, false)
}

func (m *MailRequestController) AdminReply(ctx router.Context) error {
	return m.append(ctx, true)
}

func (m *MailRequestController) append(ctx router.Context, fromAdmin bool) error {
	payload := new(AppendMailPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondValidation(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return RespondValidation(ctx, err)
	}

	req := AppendMailMessageMessage{
		Token:     ctx.Param("token", ""),
		Content:   payload.Content,
		FromAdmin: fromAdmin,
	}

	if user := UserFromContext(ctx); user != nil {
		id := user.ID
		req.FromUserID = &id
		req.FromName = user.Username
	}

	var res *MailRequestResponse
	req.OnResponse = func(resp *MailRequestResponse) {
		res = resp
	}

	handler := NewMailRequestHandler(m.Repo, m.Notifier, m.Config)
	if err := handler.ExecuteAppend(ctx.Context(), req); err != nil {
		m.Logger.Error("mail request reply error: %v", err)
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"request": res.Request,
	})
}

func (m *MailRequestController) AdminIndex(ctx router.Context) error {
	status := MailRequestStatus(ctx.Query("status", ""))
	if status == "" {
		status = MailRequestWaitingFromAdmin
	}

	requests, err := m.Repo.MailRequests().ListByStatus(ctx.Context(), status)
	if err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":  true,
		"requests": requests,
	})
}

func (m *MailRequestController) AdminResolve(ctx router.Context) error {
	var res *MailRequestResponse
	req := ResolveMailRequestMessage{
		Token: ctx.Param("token", ""),
		OnResponse: func(resp *MailRequestResponse) {
			res = resp
		},
	}

	handler := NewMailRequestHandler(m.Repo, m.Notifier, m.Config)
	if err := handler.ExecuteResolve(ctx.Context(), req); err != nil {
		m.Logger.Error("mail request resolve error: %v", err)
		return RespondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"request": res.Request,
	})
}
