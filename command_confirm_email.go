package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ConfirmEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *ConfirmEmailResponse)
}

func (e ConfirmEmailMessage) Type() string { return "account.confirm_email" }

type ConfirmEmailResponse struct {
	User *User
	// Token is a freshly minted bearer credential; confirming an
	// address signs the account in.
	Token   string
	Success bool
}

// ConfirmEmailHandler redeems an email confirmation token: the pending
// address becomes the confirmed one, a pending account activates, and
// the caller walks away signed in. The token is single use, success
// and failure both consume nothing except a matched token.
type ConfirmEmailHandler struct {
	repo         RepositoryManager
	tokens       TokenAuthority
	stateMachine UserStateMachine
}

func NewConfirmEmailHandler(repo RepositoryManager, tokens TokenAuthority, sm UserStateMachine) *ConfirmEmailHandler {
	if sm == nil {
		sm = NewUserStateMachine(repo.Users())
	}
	return &ConfirmEmailHandler{
		repo:         repo,
		tokens:       tokens,
		stateMachine: sm,
	}
}

func (h *ConfirmEmailHandler) Execute(ctx context.Context, event ConfirmEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailHandler) execute(ctx context.Context, event ConfirmEmailMessage) error {
	resp := &ConfirmEmailResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrInvalidToken
	}

	var user *User
	var token string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().FindByEmailTokenTx(ctx, tx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up email token")
		}

		if user.IsSuspended() {
			return ErrAccountNotActive
		}

		// the address was free when submitted, it may not be anymore
		if other, err := h.repo.Users().FindByEmailTx(ctx, tx, user.PendingEmail); err == nil && other.ID != user.ID {
			return ValidationFailure("email", "unique")
		} else if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to re-check email uniqueness")
		}

		user.Email = user.PendingEmail
		user.PendingEmail = ""
		user.EmailToken = ""

		err = h.repo.Users().UpdateColumnsTx(ctx, tx, user,
			"email", "pending_email", "email_token")
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm email")
		}

		if user.IsPending() {
			if _, err := h.stateMachine.Transition(ctx, ActorRef{ID: user.ID.String(), Type: "user"},
				user, UserStatusActive,
				WithTransitionDB(tx),
				WithTransitionReason("email confirmed"),
			); err != nil {
				return err
			}
		}

		if token, err = h.tokens.GenerateTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint bearer token")
		}

		return touchSessionTx(ctx, tx, h.repo, user, nil)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email confirmation transaction failed")
	}

	resp.User = user
	resp.Token = token
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
