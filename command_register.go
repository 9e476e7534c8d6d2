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

type RegisterMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	OnResponse func(resp *RegisterResponse)
}

func (e RegisterMessage) Type() string { return "account.register" }

type RegisterResponse struct {
	User *User
	// EmailToken is only populated in development mode so local
	// clients can complete the confirmation without a mailbox.
	EmailToken string
	Success    bool
}

type RegisterHandler struct {
	repo     RepositoryManager
	notifier Notifier
	config   Config
}

func NewRegisterHandler(repo RepositoryManager, notifier Notifier, config Config) *RegisterHandler {
	return &RegisterHandler{
		repo:     repo,
		notifier: normalizeNotifier(notifier),
		config:   config,
	}
}

func (h *RegisterHandler) Execute(ctx context.Context, event RegisterMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterHandler) execute(ctx context.Context, event RegisterMessage) error {
	user := &User{}
	resp := &RegisterResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(event.Email))
	emailToken := NewToken()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// the address may already be confirmed on another account;
		// the pre-check keeps the common case friendly, the unique
		// constraint has the final word at confirmation time
		if _, err := h.repo.Users().FindByEmailTx(ctx, tx, email); err == nil {
			return ValidationFailure("email", "unique")
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Username = strings.TrimSpace(event.Username)
		user.PasswordHash = hash
		user.PendingEmail = email
		user.EmailToken = emailToken
		user.Role = RoleMember
		user.Status = UserStatusPending

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		profile := &Profile{ID: uuid.New(), UserID: user.ID}
		if _, err := h.repo.Profiles().CreateTx(ctx, tx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create profile")
		}
		user.Profile = profile

		session := &Session{ID: uuid.New(), UserID: user.ID}
		if _, err := h.repo.Sessions().CreateTx(ctx, tx, session); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create session")
		}
		user.Session = session

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "registration transaction failed")
	}

	h.notifier.SendLater(Notification{
		Kind:    NotifyRegistered,
		To:      email,
		Subject: "Welcome! Please confirm your email address",
		Data: map[string]any{
			"username": user.Username,
			"link":     h.config.GetFrontendURL() + "/validate-email/" + emailToken,
		},
	})

	resp.User = user
	resp.Success = true
	if h.config.IsDevelopment() {
		resp.EmailToken = emailToken
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return NoopNotifier{}
	}
	return n
}
