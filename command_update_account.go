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

type UpdateAccountMessage struct {
	UserID   uuid.UUID `json:"-"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	// CurrentToken is the bearer token performing the request. It is
	// spared when a password change logs out every other device.
	CurrentToken string `json:"-"`
	OnResponse   func(resp *UpdateAccountResponse)
}

func (e UpdateAccountMessage) Type() string { return "account.update" }

type UpdateAccountResponse struct {
	User *User
	// EmailToken is only populated in development mode when the
	// update started an email change.
	EmailToken string
	Success    bool
}

// UpdateAccountHandler applies self service credential changes. An
// email change never touches the confirmed address directly: it parks
// the new one as pending behind a fresh confirmation token. A password
// change revokes every other bearer session.
type UpdateAccountHandler struct {
	repo     RepositoryManager
	tokens   TokenAuthority
	notifier Notifier
	config   Config
	activity ActivitySink
}

func NewUpdateAccountHandler(repo RepositoryManager, tokens TokenAuthority, notifier Notifier, config Config, sink ActivitySink) *UpdateAccountHandler {
	return &UpdateAccountHandler{
		repo:     repo,
		tokens:   tokens,
		notifier: normalizeNotifier(notifier),
		config:   config,
		activity: normalizeActivitySink(sink),
	}
}

func (h *UpdateAccountHandler) Execute(ctx context.Context, event UpdateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateAccountHandler) execute(ctx context.Context, event UpdateAccountMessage) error {
	resp := &UpdateAccountResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	var emailToken string
	var passwordChanged bool
	var emailChanged bool
	var pendingEmail string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetWithRelationsTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		columns := []string{}

		if username := strings.TrimSpace(event.Username); username != "" && username != user.Username {
			user.Username = username
			columns = append(columns, "username")
		}

		if email := strings.ToLower(strings.TrimSpace(event.Email)); email != "" && email != user.Email {
			if other, err := h.repo.Users().FindByEmailTx(ctx, tx, email); err == nil && other.ID != user.ID {
				return ValidationFailure("email", "unique")
			} else if err != nil && !repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
			}

			emailToken = NewToken()
			user.PendingEmail = email
			user.EmailToken = emailToken
			emailChanged = true
			pendingEmail = email
			columns = append(columns, "pending_email", "email_token")
		}

		// resubmitting the current password is a no-op, not a change;
		// rehashing it would log out every other device for nothing
		if event.Password != "" && ComparePasswordAndHash(event.Password, user.PasswordHash) != nil {
			hash, err := HashPassword(event.Password)
			if err != nil {
				var richErr *goerrors.Error
				if goerrors.As(err, &richErr) {
					return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
			}
			user.PasswordHash = hash
			passwordChanged = true
			columns = append(columns, "password_hash")
		}

		if len(columns) == 0 {
			return nil
		}

		if err := h.repo.Users().UpdateColumnsTx(ctx, tx, user, columns...); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
		}

		if passwordChanged {
			if err := h.tokens.RevokeAllTx(ctx, tx, user.ID, event.CurrentToken); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke bearer tokens")
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account update transaction failed")
	}

	if emailChanged {
		h.notifier.SendLater(Notification{
			Kind:    NotifyEmailValidation,
			To:      pendingEmail,
			Subject: "Confirm your new email address",
			Data: map[string]any{
				"username": user.Username,
				"link":     h.config.GetFrontendURL() + "/validate-email/" + emailToken,
			},
		})
	}

	if passwordChanged {
		_ = h.activity.Record(ctx, ActivityEvent{
			EventType:  ActivityEventPasswordChanged,
			Actor:      ActorRef{ID: user.ID.String(), Type: "user"},
			UserID:     user.ID.String(),
			OccurredAt: time.Now(),
		})
	}

	resp.User = user
	resp.Success = true
	if emailChanged && h.config.IsDevelopment() {
		resp.EmailToken = emailToken
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
