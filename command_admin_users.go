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

type AdminCreateUserMessage struct {
	ActorID  uuid.UUID `json:"-"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     string    `json:"role"`
	// Message is included verbatim in the invitation notification.
	Message    string `json:"message"`
	OnResponse func(resp *AdminUserResponse)
}

func (e AdminCreateUserMessage) Type() string { return "admin.user.create" }

type AdminUpdateUserMessage struct {
	ActorID    uuid.UUID `json:"-"`
	UserID     uuid.UUID `json:"-"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	Role       string    `json:"role"`
	OnResponse func(resp *AdminUserResponse)
}

func (e AdminUpdateUserMessage) Type() string { return "admin.user.update" }

type AdminSetUserStatusMessage struct {
	ActorID uuid.UUID  `json:"-"`
	UserID  uuid.UUID  `json:"-"`
	Status  UserStatus `json:"status"`
	// Message is passed along in the suspension or deletion notice.
	Message    string `json:"message"`
	OnResponse func(resp *AdminUserResponse)
}

func (e AdminSetUserStatusMessage) Type() string { return "admin.user.set_status" }

type AdminUserResponse struct {
	User *User
	// EmailToken is only populated in development mode when the
	// operation minted a confirmation token.
	EmailToken string
	Success    bool
}

// AdminUsersHandler is the administrative overlay on the account
// lifecycle. Status changes bypass the transition table, an admin may
// move an account anywhere; suspension and deletion revoke every
// bearer token the target holds before the response goes out.
type AdminUsersHandler struct {
	repo         RepositoryManager
	tokens       TokenAuthority
	stateMachine UserStateMachine
	notifier     Notifier
	config       Config
}

func NewAdminUsersHandler(repo RepositoryManager, tokens TokenAuthority, sm UserStateMachine, notifier Notifier, config Config) *AdminUsersHandler {
	if sm == nil {
		sm = NewUserStateMachine(repo.Users())
	}
	return &AdminUsersHandler{
		repo:         repo,
		tokens:       tokens,
		stateMachine: sm,
		notifier:     normalizeNotifier(notifier),
		config:       config,
	}
}

func (h *AdminUsersHandler) ExecuteCreate(ctx context.Context, event AdminCreateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin user creation",
		)
	default:
		return h.executeCreate(ctx, event)
	}
}

func (h *AdminUsersHandler) executeCreate(ctx context.Context, event AdminCreateUserMessage) error {
	resp := &AdminUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	role, ok := ParseRole(event.Role)
	if !ok {
		return ValidationFailure("role", "enum")
	}

	email := strings.ToLower(strings.TrimSpace(event.Email))
	emailToken := NewToken()
	user := &User{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().FindByEmailTx(ctx, tx, email); err == nil {
			return ValidationFailure("email", "unique")
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}

		hash := ""
		if event.Password != "" {
			var err error
			if hash, err = HashPassword(event.Password); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
			}
		} else {
			// the invitee signs in through password recovery
			hash = RandomPasswordHash()
		}

		user.Username = strings.TrimSpace(event.Username)
		user.PasswordHash = hash
		// the invitee confirms the address themselves, the account
		// starts pending like any registration
		user.PendingEmail = email
		user.EmailToken = emailToken
		user.Role = role
		user.Status = UserStatusPending

		var err error
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "admin user creation transaction failed")
	}

	h.notifier.SendLater(Notification{
		Kind:    NotifyAccountCreated,
		To:      email,
		Subject: "An account has been created for you",
		Data: map[string]any{
			"username": user.Username,
			"message":  event.Message,
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

func (h *AdminUsersHandler) ExecuteUpdate(ctx context.Context, event AdminUpdateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin user update",
		)
	default:
		return h.executeUpdate(ctx, event)
	}
}

func (h *AdminUsersHandler) executeUpdate(ctx context.Context, event AdminUpdateUserMessage) error {
	resp := &AdminUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	var emailToken string
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

		if event.Role != "" {
			role, ok := ParseRole(event.Role)
			if !ok {
				return ValidationFailure("role", "enum")
			}
			if role != user.Role {
				user.Role = role
				columns = append(columns, "user_role")
			}
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

		if event.Password != "" {
			hash, err := HashPassword(event.Password)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
			}
			user.PasswordHash = hash
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

		// rebinding the account to a new address invalidates every
		// session; other admin edits leave the user signed in
		if emailChanged {
			if err := h.tokens.RevokeAllTx(ctx, tx, user.ID); err != nil {
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "admin user update transaction failed")
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

func (h *AdminUsersHandler) ExecuteSetStatus(ctx context.Context, event AdminSetUserStatusMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin status change",
		)
	default:
		return h.executeSetStatus(ctx, event)
	}
}

func (h *AdminUsersHandler) executeSetStatus(ctx context.Context, event AdminSetUserStatusMessage) error {
	resp := &AdminUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if !event.Status.IsValid() {
		return ValidationFailure("status", "enum")
	}

	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetWithRelationsTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		actor := ActorRef{ID: event.ActorID.String(), Type: "admin"}
		opts := []TransitionOption{
			WithTransitionDB(tx),
			WithForceTransition(),
		}
		if event.Message != "" {
			opts = append(opts, WithTransitionReason(event.Message))
		}

		if _, err := h.stateMachine.Transition(ctx, actor, user, event.Status, opts...); err != nil {
			return err
		}

		// a locked or deleted account keeps no live sessions
		if event.Status == UserStatusSuspended || event.Status == UserStatusDeleted {
			if err := h.tokens.RevokeAllTx(ctx, tx, user.ID); err != nil {
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "admin status change transaction failed")
	}

	h.notifyStatusChange(user, event)

	resp.User = user
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *AdminUsersHandler) notifyStatusChange(user *User, event AdminSetUserStatusMessage) {
	if user.Email == "" {
		return
	}

	switch event.Status {
	case UserStatusSuspended:
		h.notifier.SendLater(Notification{
			Kind:    NotifyAccountSuspended,
			To:      user.Email,
			Subject: "Your account has been suspended",
			Data: map[string]any{
				"username": user.Username,
				"message":  event.Message,
			},
		})
	case UserStatusDeleted:
		h.notifier.SendLater(Notification{
			Kind:    NotifyAccountDeleted,
			To:      user.Email,
			Subject: "Your account has been deleted",
			Data: map[string]any{
				"username": user.Username,
				"message":  event.Message,
			},
		})
	}
}
