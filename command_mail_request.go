package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CreateMailRequestMessage struct {
	Subject string          `json:"subject"`
	Kind    MailRequestType `json:"type"`
	Email   string          `json:"email"`
	Content string          `json:"content"`
	// UserID and Username are filled in when an authenticated user
	// opens the thread; guests only supply an email.
	UserID     *uuid.UUID `json:"-"`
	Username   string     `json:"-"`
	OnResponse func(resp *MailRequestResponse)
}

func (e CreateMailRequestMessage) Type() string { return "mail_request.create" }

type AppendMailMessageMessage struct {
	Token      string `json:"-"`
	Content    string `json:"content"`
	FromAdmin  bool   `json:"-"`
	FromUserID *uuid.UUID
	FromName   string
	OnResponse func(resp *MailRequestResponse)
}

func (e AppendMailMessageMessage) Type() string { return "mail_request.append" }

type ResolveMailRequestMessage struct {
	Token      string `json:"-"`
	OnResponse func(resp *MailRequestResponse)
}

func (e ResolveMailRequestMessage) Type() string { return "mail_request.resolve" }

type MailRequestResponse struct {
	Request *MailRequest
	Success bool
}

// MailRequestHandler runs the contact threads between users (or
// guests) and the administrators. Threads are addressed by an opaque
// token so a guest can follow up without an account; messages are
// append only.
type MailRequestHandler struct {
	repo     RepositoryManager
	notifier Notifier
	config   Config
}

func NewMailRequestHandler(repo RepositoryManager, notifier Notifier, config Config) *MailRequestHandler {
	return &MailRequestHandler{
		repo:     repo,
		notifier: normalizeNotifier(notifier),
		config:   config,
	}
}

func (h *MailRequestHandler) ExecuteCreate(ctx context.Context, event CreateMailRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during mail request creation",
		)
	default:
		return h.executeCreate(ctx, event)
	}
}

func (h *MailRequestHandler) executeCreate(ctx context.Context, event CreateMailRequestMessage) error {
	resp := &MailRequestResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	kind := event.Kind
	if kind == "" {
		kind = MailRequestOther
	}
	if !kind.IsValid() {
		return ValidationFailure("type", "enum")
	}

	if strings.TrimSpace(event.Content) == "" {
		return ValidationFailure("content", "required")
	}

	request := &MailRequest{
		ID:       uuid.New(),
		Subject:  strings.TrimSpace(event.Subject),
		Token:    NewToken(),
		Email:    strings.ToLower(strings.TrimSpace(event.Email)),
		Type:     kind,
		Status:   MailRequestWaitingFromAdmin,
		UserID:   event.UserID,
		Username: event.Username,
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if request, err = h.repo.MailRequests().CreateTx(ctx, tx, request); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create mail request")
		}

		message := &MailRequestMessage{
			ID:         uuid.New(),
			RequestID:  request.ID,
			Content:    event.Content,
			FromUserID: event.UserID,
			FromName:   h.fromName(event.Username, request.Email),
		}
		if _, err := h.repo.MailRequestMessages().CreateTx(ctx, tx, message); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create mail request message")
		}
		request.Messages = []*MailRequestMessage{message}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "mail request transaction failed")
	}

	if admin := h.config.GetAdminEmail(); admin != "" {
		h.notifier.SendLater(Notification{
			Kind:    NotifyMailRequestNew,
			To:      admin,
			Subject: "New contact request: " + request.Subject,
			Data: map[string]any{
				"from":    h.fromName(event.Username, request.Email),
				"type":    string(request.Type),
				"content": event.Content,
			},
		})
	}

	resp.Request = request
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *MailRequestHandler) ExecuteAppend(ctx context.Context, event AppendMailMessageMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during mail request reply",
		)
	default:
		return h.executeAppend(ctx, event)
	}
}

func (h *MailRequestHandler) executeAppend(ctx context.Context, event AppendMailMessageMessage) error {
	resp := &MailRequestResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if strings.TrimSpace(event.Content) == "" {
		return ValidationFailure("content", "required")
	}

	var request *MailRequest

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		request, err = h.repo.MailRequests().FindByTokenTx(ctx, tx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up mail request")
		}

		message := &MailRequestMessage{
			ID:         uuid.New(),
			RequestID:  request.ID,
			Content:    event.Content,
			FromUserID: event.FromUserID,
			FromName:   event.FromName,
		}
		if _, err := h.repo.MailRequestMessages().CreateTx(ctx, tx, message); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to append mail request message")
		}
		request.Messages = append(request.Messages, message)

		// the thread now waits on the other side
		request.Status = MailRequestWaitingFromAdmin
		if event.FromAdmin {
			request.Status = MailRequestWaitingFromUser
		}
		now := time.Now()
		request.UpdatedAt = &now

		_, err = tx.NewUpdate().
			Model(request).
			Column("status", "updated_at").
			Where("?TableAlias.id = ?", request.ID).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update mail request status")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "mail request reply transaction failed")
	}

	h.notifyAppend(request, event)

	resp.Request = request
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *MailRequestHandler) ExecuteResolve(ctx context.Context, event ResolveMailRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during mail request resolution",
		)
	default:
		return h.executeResolve(ctx, event)
	}
}

func (h *MailRequestHandler) executeResolve(ctx context.Context, event ResolveMailRequestMessage) error {
	resp := &MailRequestResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var request *MailRequest

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		request, err = h.repo.MailRequests().FindByTokenTx(ctx, tx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up mail request")
		}

		request.Status = MailRequestResolved
		now := time.Now()
		request.UpdatedAt = &now

		_, err = tx.NewUpdate().
			Model(request).
			Column("status", "updated_at").
			Where("?TableAlias.id = ?", request.ID).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve mail request")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "mail request resolution transaction failed")
	}

	resp.Request = request
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *MailRequestHandler) notifyAppend(request *MailRequest, event AppendMailMessageMessage) {
	if event.FromAdmin {
		if request.Email != "" {
			h.notifier.SendLater(Notification{
				Kind:    NotifyMailRequestMessage,
				To:      request.Email,
				Subject: "New reply: " + request.Subject,
				Data: map[string]any{
					"content": event.Content,
					"link":    h.config.GetFrontendURL() + "/mail-requests/" + request.Token,
				},
			})
		}
		return
	}

	if admin := h.config.GetAdminEmail(); admin != "" {
		h.notifier.SendLater(Notification{
			Kind:    NotifyMailRequestMessage,
			To:      admin,
			Subject: "New reply: " + request.Subject,
			Data: map[string]any{
				"from":    event.FromName,
				"content": event.Content,
			},
		})
	}
}

func (h *MailRequestHandler) fromName(username, email string) string {
	if username != "" {
		return username
	}
	return email
}
