package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RecoverPasswordMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *RecoverPasswordResponse)
}

func (e RecoverPasswordMessage) Type() string { return "account.recover_password" }

type RecoverPasswordResponse struct {
	// RecoveryToken is only populated in development mode.
	RecoveryToken string
	Success       bool
}

// RecoverPasswordHandler mints a single use recovery token for an
// active account and mails it out. Requests are rate limited per
// account; the cooldown window only ever moves forward.
type RecoverPasswordHandler struct {
	repo     RepositoryManager
	notifier Notifier
	config   Config
	activity ActivitySink
	now      func() time.Time
}

func NewRecoverPasswordHandler(repo RepositoryManager, notifier Notifier, config Config, sink ActivitySink) *RecoverPasswordHandler {
	return &RecoverPasswordHandler{
		repo:     repo,
		notifier: normalizeNotifier(notifier),
		config:   config,
		activity: normalizeActivitySink(sink),
		now:      time.Now,
	}
}

func (h *RecoverPasswordHandler) Execute(ctx context.Context, event RecoverPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password recovery",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RecoverPasswordHandler) execute(ctx context.Context, event RecoverPasswordMessage) error {
	resp := &RecoverPasswordResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(event.Email))
	recoveryToken := NewToken()

	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().FindByEmailTx(ctx, tx, email)
		if err != nil {
			if !repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
			}
			if _, pendErr := h.repo.Users().FindByPendingEmailTx(ctx, tx, email); pendErr == nil {
				return ErrEmailNotValidated
			}
			// a distinct not-found would confirm the address has no
			// account; outside admin surfaces that stays hidden
			return ErrInvalidCredentials
		}

		if !user.IsActive() {
			return ErrAccountNotActive
		}

		if user.RecoverRequestedAt != nil && !h.config.IsDevelopment() {
			cooldown := CooldownOrDefault(h.config.GetRecoveryCooldown())
			within, err := IsWithinThresholdPeriod(*user.RecoverRequestedAt, cooldown)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid recovery cooldown configuration")
			}
			if within {
				d, _ := time.ParseDuration(cooldown)
				return TooMuchRequest(user.RecoverRequestedAt.Add(d))
			}
		}

		now := h.now()
		user.AuthenticationToken = recoveryToken
		user.RecoverRequestedAt = &now

		err = h.repo.Users().UpdateColumnsTx(ctx, tx, user,
			"authentication_token", "recover_password_requested_at")
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store recovery token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password recovery transaction failed")
	}

	h.notifier.SendLater(Notification{
		Kind:    NotifyPasswordRecovery,
		To:      email,
		Subject: "Recover your password",
		Data: map[string]any{
			"username": user.Username,
			"link":     h.config.GetFrontendURL() + "/recover/" + recoveryToken,
		},
	})

	_ = h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventRecoveryRequested,
		Actor:      ActorRef{Type: "anonymous"},
		UserID:     user.ID.String(),
		OccurredAt: h.now(),
	})

	resp.Success = true
	if h.config.IsDevelopment() {
		resp.RecoveryToken = recoveryToken
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
